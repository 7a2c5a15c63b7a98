package serialmux

import (
	"go.bug.st/serial"
)

// NewRealSerialMux opens the serial port at path with opts.
func NewRealSerialMux(path string, opts PortOptions, initCommands ...string) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewSerialMux[serial.Port](port, initCommands...), nil
}

// ListPorts returns the serial ports present on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
