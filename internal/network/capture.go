//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/helm.avoid/internal/monitoring"
)

// CaptureInterface sniffs report datagrams on a network interface with
// libpcap, for bridges that broadcast to a port another process already
// owns. Only available when built with the pcap tag.
func CaptureInterface(ctx context.Context, iface string, udpPort int, out chan<- string) error {
	handle, err := pcap.OpenLive(iface, 65536, true, pcap.BlockForever)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", iface, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp dst port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter %q: %w", filter, err)
	}
	monitoring.Logf("network: capturing %s on %s", filter, iface)

	stats := &PacketStats{}
	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for {
		select {
		case <-ctx.Done():
			stats.LogStats("network: capture")
			return ctx.Err()
		case packet, ok := <-source.Packets():
			if !ok {
				return nil
			}
			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok {
				continue
			}
			stats.AddPacket(len(udp.Payload))
			lines := SplitLines(udp.Payload)
			stats.AddLines(len(lines))
			if err := deliver(ctx, out, lines, stats); err != nil {
				return err
			}
		}
	}
}
