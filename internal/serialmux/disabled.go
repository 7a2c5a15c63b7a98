package serialmux

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/helm.avoid/internal/httputil"
)

// DisabledSerialMux stands in when no serial feed is configured and
// reports arrive by UDP or scenario replay instead. Subscriber channels are
// tracked so Close unblocks their readers.
type DisabledSerialMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{subscribers: make(map[string]chan string)}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

func (d *DisabledSerialMux) SendCommand(string) error { return nil }

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Initialize() error { return nil }

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/feed-stats", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, map[string]any{"serial": "disabled"})
	})
}

var (
	_ SerialMuxInterface = (*DisabledSerialMux)(nil)
	_ SerialMuxInterface = (*SerialMux[*TestableSerialPort])(nil)
)
