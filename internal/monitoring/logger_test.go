package monitoring

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Tests here swap the package logger and so do not run in parallel.

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("cycle %d", 3)
	assert.Equal(t, []string{"cycle 3"}, got)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted %s", "line") })
	assert.Len(t, got, 1)
}

func TestSetOutput(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var buf bytes.Buffer
	SetOutput(&buf)
	Logf("helm: pruned %d stale world entries", 2)
	assert.Contains(t, buf.String(), "helm: pruned 2 stale world entries\n")
}

func TestPrefixed(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = fmt.Sprintf(format, v...) })
	Prefixed("avd_alpha")("range %.0f", 120.0)
	assert.Equal(t, "[avd_alpha] range 120", got)
}
