package network

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/helm.avoid/internal/monitoring"
)

// PacketForwarder copies received datagrams to another UDP address, e.g.
// a shoreside display. Forwarding never blocks the listener: a full queue
// drops the packet.
type PacketForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	logInterval time.Duration
	address     string
	dropped     atomic.Int64
}

func NewPacketForwarder(address string, logInterval time.Duration) (*PacketForwarder, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, 256),
		logInterval: logInterval,
		address:     address,
	}, nil
}

// Dropped is the number of packets not forwarded.
func (f *PacketForwarder) Dropped() int64 { return f.dropped.Load() }

// Start runs the sending goroutine until ctx is done, then closes the
// connection.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		defer f.conn.Close()
		var lastErr error
		var reported int64
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case packet := <-f.channel:
				if _, err := f.conn.Write(packet); err != nil {
					f.dropped.Add(1)
					lastErr = err
				}
			case <-ticker.C:
				if d := f.dropped.Load(); d > reported {
					monitoring.Logf("network: dropped %d forwarded packets (latest error: %v)", d-reported, lastErr)
					reported = d
				}
			}
		}
	}()
	monitoring.Logf("network: forwarding packets to %s", f.address)
}

// ForwardAsync queues a copy of packet.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	buf := make([]byte, len(packet))
	copy(buf, packet)
	select {
	case f.channel <- buf:
	default:
		f.dropped.Add(1)
	}
}
