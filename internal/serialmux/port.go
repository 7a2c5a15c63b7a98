package serialmux

import "io"

// SerialPorter is the minimal port a SerialMux needs. go.bug.st/serial
// ports satisfy it, as do the test ports in mock.go.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
