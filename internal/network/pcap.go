package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/helm.avoid/internal/monitoring"
)

// ReplayOptions control a capture replay.
type ReplayOptions struct {
	// UDPPort keeps only datagrams to this destination port; 0 keeps all.
	UDPPort int
	// Realtime sleeps between packets to reproduce capture timing, scaled
	// by Speed (2 is twice as fast). Zero Speed means 1.
	Realtime bool
	Speed    float64
}

// ReadPCAPFile replays the report lines in a pcap capture to out. It
// returns nil at end of file.
func ReadPCAPFile(ctx context.Context, path string, opts ReplayOptions, out chan<- string) (*PacketStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()
	return ReadPCAP(ctx, f, opts, out)
}

// ReadPCAP replays a pcap stream. Unlike the live listener it blocks on
// out rather than dropping lines.
func ReadPCAP(ctx context.Context, r io.Reader, opts ReplayOptions, out chan<- string) (*PacketStats, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCAP header: %w", err)
	}
	speed := opts.Speed
	if speed <= 0 {
		speed = 1
	}

	stats := &PacketStats{}
	source := gopacket.NewPacketSource(reader, reader.LinkType())
	var first, wallStart time.Time

	for {
		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			stats.LogStats("network: pcap replay")
			return stats, nil
		}
		if err != nil {
			monitoring.Logf("network: skipping unreadable packet: %v", err)
			continue
		}
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if opts.UDPPort != 0 && int(udp.DstPort) != opts.UDPPort {
			continue
		}

		if opts.Realtime {
			ts := packet.Metadata().Timestamp
			if first.IsZero() {
				first, wallStart = ts, time.Now()
			} else {
				due := wallStart.Add(time.Duration(float64(ts.Sub(first)) / speed))
				if wait := time.Until(due); wait > 0 {
					select {
					case <-ctx.Done():
						return stats, ctx.Err()
					case <-time.After(wait):
					}
				}
			}
		}

		stats.AddPacket(len(udp.Payload))
		lines := SplitLines(udp.Payload)
		stats.AddLines(len(lines))
		for _, line := range lines {
			select {
			case out <- line:
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}
}
