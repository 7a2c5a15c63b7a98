package serialmux

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is the high-speed NMEA rate used by AIS bridges.
const DefaultBaudRate = 38400

// PortOptions are the serial line settings, loadable from JSON.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
	// InitCommands are written once the port is open.
	InitCommands []string `json:"init_commands,omitempty"`
}

// LoadPortOptions reads PortOptions from a JSON file.
func LoadPortOptions(path string) (PortOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PortOptions{}, fmt.Errorf("failed to read port options: %w", err)
	}
	var opts PortOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		return PortOptions{}, fmt.Errorf("failed to parse port options %s: %w", path, err)
	}
	return opts.Normalize()
}

// Normalize validates the options and fills unset values with 8N1 at
// DefaultBaudRate.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options for serial.Open.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}
