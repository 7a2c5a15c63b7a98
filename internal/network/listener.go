// Package network receives report feed lines over UDP, either live from a
// socket or replayed from a packet capture. Each datagram carries one or
// more newline separated lines.
package network

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/banshee-data/helm.avoid/internal/monitoring"
)

// DefaultPort is the UDP port report bridges send to.
const DefaultPort = 9200

// PacketStats counts traffic through a listener or replay.
type PacketStats struct {
	packets atomic.Int64
	bytes   atomic.Int64
	lines   atomic.Int64
	dropped atomic.Int64
}

func (s *PacketStats) AddPacket(n int) {
	s.packets.Add(1)
	s.bytes.Add(int64(n))
}

func (s *PacketStats) AddLines(n int) { s.lines.Add(int64(n)) }
func (s *PacketStats) AddDropped()    { s.dropped.Add(1) }

// Snapshot returns packets, bytes, lines and dropped lines so far.
func (s *PacketStats) Snapshot() (packets, bytes, lines, dropped int64) {
	return s.packets.Load(), s.bytes.Load(), s.lines.Load(), s.dropped.Load()
}

func (s *PacketStats) LogStats(prefix string) {
	p, b, l, d := s.Snapshot()
	monitoring.Logf("%s: %d packets, %.1f KB, %d lines, %d dropped", prefix, p, float64(b)/1024, l, d)
}

// SplitLines returns the trimmed, non-empty lines of a datagram.
func SplitLines(payload []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(payload))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// deliver hands lines to out without blocking past ctx. Lines that find
// out full are dropped and counted.
func deliver(ctx context.Context, out chan<- string, lines []string, stats *PacketStats) error {
	for _, line := range lines {
		select {
		case out <- line:
		case <-ctx.Done():
			return ctx.Err()
		default:
			stats.AddDropped()
		}
	}
	return nil
}

// UDPListenerConfig configures a UDPListener.
type UDPListenerConfig struct {
	Address     string // host:port, ":9200" by default
	RcvBuf      int
	LogInterval time.Duration
	Forwarder   *PacketForwarder
}

// UDPListener reads datagrams and emits their lines.
type UDPListener struct {
	cfg   UDPListenerConfig
	stats PacketStats
	addr  atomic.Pointer[net.UDPAddr]
}

func NewUDPListener(cfg UDPListenerConfig) *UDPListener {
	if cfg.Address == "" {
		cfg.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if cfg.LogInterval == 0 {
		cfg.LogInterval = time.Minute
	}
	return &UDPListener{cfg: cfg}
}

// Stats returns the listener's counters.
func (l *UDPListener) Stats() *PacketStats { return &l.stats }

// LocalAddr is the bound address once Start has bound, else nil.
func (l *UDPListener) LocalAddr() *net.UDPAddr { return l.addr.Load() }

// Start binds and delivers lines to out until ctx is done.
func (l *UDPListener) Start(ctx context.Context, out chan<- string) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()
	l.addr.Store(conn.LocalAddr().(*net.UDPAddr))

	if l.cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(l.cfg.RcvBuf); err != nil {
			monitoring.Logf("network: failed to set UDP receive buffer to %d: %v", l.cfg.RcvBuf, err)
		}
	}
	monitoring.Logf("network: UDP listener started on %s", conn.LocalAddr())

	if l.cfg.Forwarder != nil {
		l.cfg.Forwarder.Start(ctx)
	}
	go l.logStats(ctx)

	buffer := make([]byte, 65536)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The deadline lets the loop notice cancellation.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			monitoring.Logf("network: UDP read error: %v", err)
			continue
		}
		packet := buffer[:n]
		l.stats.AddPacket(n)
		if l.cfg.Forwarder != nil {
			l.cfg.Forwarder.ForwardAsync(packet)
		}
		lines := SplitLines(packet)
		l.stats.AddLines(len(lines))
		if err := deliver(ctx, out, lines, &l.stats); err != nil {
			return err
		}
	}
}

func (l *UDPListener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats("network: udp")
		}
	}
}
