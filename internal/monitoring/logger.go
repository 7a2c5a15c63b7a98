// Package monitoring holds the process-wide diagnostic logger every helm
// package writes through.
package monitoring

import (
	"io"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetOutput sends log lines to w with microsecond timestamps, so cycle
// logs line up with the cycle records in the database.
func SetOutput(w io.Writer) {
	SetLogger(log.New(w, "", log.LstdFlags|log.Lmicroseconds).Printf)
}

// Prefixed returns a logger that tags every line, e.g. "[avd_alpha] ".
func Prefixed(tag string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf("["+tag+"] "+format, v...)
	}
}
