//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"errors"
)

// CaptureInterface needs libpcap; rebuild with -tags=pcap to enable it.
func CaptureInterface(ctx context.Context, iface string, udpPort int, out chan<- string) error {
	return errors.New("live capture not enabled: rebuild with -tags=pcap")
}
