// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String renders the build metadata for --version and startup logs.
func String() string {
	return fmt.Sprintf("helm.avoid %s (%s, built %s)", Version, GitSHA, BuildTime)
}
