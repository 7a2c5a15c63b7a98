package serialmux

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// TestableSerialPort is an in-memory SerialPorter. Reads block until data
// is added or the port is closed.
type TestableSerialPort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer
	closed   bool

	// WriteError, when set, is returned by the next Write.
	WriteError error
}

// NewTestableSerialPort returns an empty open port.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.readBuf.Len() == 0 {
		p.readCond.Wait()
	}
	if p.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return p.readBuf.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("serial port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	return p.writeBuf.Write(b)
}

func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return nil
}

// AddLines queues lines for subsequent reads.
func (p *TestableSerialPort) AddLines(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range lines {
		p.readBuf.WriteString(l)
		p.readBuf.WriteByte('\n')
	}
	p.readCond.Broadcast()
}

// Written returns everything written to the port so far.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeBuf.String()
}

// NewReplaySerialMux returns a SerialMux fed with lines, one every period,
// looping until the mux is closed. It is the daemon's -dev feed.
func NewReplaySerialMux(lines []string, period time.Duration) *SerialMux[*TestableSerialPort] {
	port := NewTestableSerialPort()
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for i := 0; ; i++ {
			<-ticker.C
			port.mu.Lock()
			closed := port.closed
			port.mu.Unlock()
			if closed || len(lines) == 0 {
				return
			}
			port.AddLines(strings.TrimSpace(lines[i%len(lines)]))
		}
	}()
	return NewSerialMux(port)
}
