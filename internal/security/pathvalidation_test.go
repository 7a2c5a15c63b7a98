package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "plots"), 0o755))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing child", filepath.Join(dir, "plots"), false},
		{"new file", filepath.Join(dir, "priority.png"), false},
		{"new nested file", filepath.Join(dir, "plots", "a", "track.png"), false},
		{"dir itself", dir, false},
		{"dot dot", filepath.Join(dir, "..", "escape.png"), true},
		{"dot dot inside", dir + "/plots/../../escape.png", true},
		{"elsewhere", filepath.Join(os.TempDir(), "not-here", "x.png"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, dir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_Symlink(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(link, "new.html"), dir))
}

func TestValidatePathWithinDirectory_MissingDir(t *testing.T) {
	t.Parallel()
	missing := filepath.Join(t.TempDir(), "missing")
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(missing, "x"), missing))
}

// ----------------------------------------------------------------------------

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"avd_alpha", "avd_alpha"},
		{"avd-Alpha.2", "avd-Alpha.2"},
		{"../../etc/passwd", "etc_passwd"},
		{"a b\tc", "a_b_c"},
		{"a__b", "a_b"},
		{"kayak/ü", "kayak"},
		{"", "unknown"},
		{"...", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
	assert.LessOrEqual(t, len(SanitizeFilename(strings.Repeat("x", 500))), 128)
}

func TestOutputPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path, err := OutputPath(dir, "avd_alpha", "_surface.html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "avd_alpha_surface.html"), path)

	path, err = OutputPath(dir, "../up", ".html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "up.html"), path)
}
