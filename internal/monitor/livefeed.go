package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/helm.avoid/internal/helm"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
)

const (
	writeWait    = 5 * time.Second
	clientBuffer = 16
)

// CycleMessage is what the live feed sends once per cycle.
type CycleMessage struct {
	Type      string            `json:"type"`
	RunID     string            `json:"run_id"`
	Cycle     int               `json:"cycle"`
	Time      time.Time         `json:"time"`
	OwnX      *float64          `json:"own_x,omitempty"`
	OwnY      *float64          `json:"own_y,omitempty"`
	Behaviors []BehaviorMessage `json:"behaviors"`
}

type BehaviorMessage struct {
	Name     string    `json:"name"`
	State    string    `json:"state"`
	Priority float64   `json:"priority"`
	Best     []float64 `json:"best,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
	Error    string    `json:"error,omitempty"`
}

func newCycleMessage(rec helm.CycleRecord) CycleMessage {
	msg := CycleMessage{Type: "cycle", RunID: rec.RunID, Cycle: rec.Cycle, Time: rec.Time}
	if rec.Ownship != nil {
		x, y := rec.Ownship.X, rec.Ownship.Y
		msg.OwnX, msg.OwnY = &x, &y
	}
	for _, br := range rec.Behaviors {
		msg.Behaviors = append(msg.Behaviors, BehaviorMessage{
			Name:     br.Behavior,
			State:    string(br.State),
			Priority: br.Priority,
			Best:     br.Best,
			Warnings: br.Warnings,
			Error:    br.Err,
		})
	}
	return msg
}

// LiveFeed broadcasts cycle summaries to websocket clients. A client that
// falls behind by more than its buffer is disconnected.
type LiveFeed struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

var _ helm.Recorder = (*LiveFeed)(nil)

func NewLiveFeed() *LiveFeed {
	return &LiveFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*feedClient]struct{}),
	}
}

// Clients is the number of connected clients.
func (f *LiveFeed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *LiveFeed) RecordCycle(_ context.Context, rec helm.CycleRecord) error {
	data, err := json.Marshal(newCycleMessage(rec))
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			monitoring.Logf("monitor: live feed client %s too slow, dropping", c.conn.RemoteAddr())
			f.removeLocked(c)
		}
	}
	return nil
}

func (f *LiveFeed) removeLocked(c *feedClient) {
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
}

func (f *LiveFeed) remove(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(c)
}

// ServeHTTP upgrades the request and streams cycles until the client
// goes away.
func (f *LiveFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("monitor: upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	c := &feedClient{conn: conn, send: make(chan []byte, clientBuffer)}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	go f.writeLoop(c)

	// Clients only listen; reading surfaces the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			f.remove(c)
			return
		}
	}
}

func (f *LiveFeed) writeLoop(c *feedClient) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			f.remove(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
