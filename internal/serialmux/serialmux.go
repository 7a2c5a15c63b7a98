// Package serialmux multiplexes a line-oriented report feed (a serial
// bridge carrying node reports, own-ship navigation and obstacle polygons)
// so that several readers can subscribe to it while commands are written
// back through a single port.
package serialmux

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"maps"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"tailscale.com/tsweb"

	"github.com/banshee-data/helm.avoid/internal/httputil"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
)

var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// SerialMux fans out lines read from one port to every subscriber.
type SerialMux[T SerialPorter] struct {
	port         T
	initCommands []string
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex

	countsMu sync.Mutex
	counts   map[string]int64 // lines read, by event type
}

// SerialMuxInterface is what the helm daemon needs from a report feed.
type SerialMuxInterface interface {
	// Subscribe returns an ID and a channel of lines read from the port.
	Subscribe() (string, chan string)
	// Unsubscribe closes and removes the channel with the given ID.
	Unsubscribe(string)
	// SendCommand writes one line to the port.
	SendCommand(string) error
	// Monitor reads lines until ctx is done or the port fails.
	Monitor(context.Context) error
	// Close closes every subscriber channel and the port.
	Close() error
	// Initialize writes the configured start-up commands.
	Initialize() error
	// AttachAdminRoutes mounts /debug/ send-command and tail routes.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux wraps port. initCommands are written, in order, by
// Initialize.
func NewSerialMux[T SerialPorter](port T, initCommands ...string) *SerialMux[T] {
	return &SerialMux[T]{
		port:         port,
		initCommands: initCommands,
		subscribers:  make(map[string]chan string),
		counts:       make(map[string]int64),
	}
}

// Counts returns how many lines of each event type Monitor has read.
func (s *SerialMux[T]) Counts() map[string]int64 {
	s.countsMu.Lock()
	defer s.countsMu.Unlock()
	return maps.Clone(s.counts)
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	// Buffered so a cycle boundary does not drop a burst of reports.
	ch := make(chan string, 64)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Initialize writes the start-up commands, e.g. a bridge subscription
// request.
func (s *SerialMux[T]) Initialize() error {
	for _, command := range s.initCommands {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand writes command followed by a newline.
func (s *SerialMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the port and hands each to every subscriber.
// Slow subscribers miss lines rather than stall the feed.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// scan.Scan blocks, so it runs apart from the loop watching ctx.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
				}
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			kind := ClassifyPayload(line)
			s.countsMu.Lock()
			s.counts[kind]++
			s.countsMu.Unlock()
			if kind == EventTypeUnknown {
				monitoring.Logf("serialmux: unrecognised line %q", line)
			}
			s.closingMu.Lock()
			closing := s.closing
			s.closingMu.Unlock()
			if closing {
				return nil
			}

			s.subscriberMu.Lock()
			for id, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
					monitoring.Logf("serialmux: subscriber %s full, dropped %q", id, line)
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "send a command to the report feed", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sendCommandTemplate.Execute(buf, nil); err != nil {
			httputil.InternalServerError(w, "failed to render template")
			return
		}
		io.Copy(w, buf)
	})

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			httputil.BadRequest(w, "missing command")
			return
		}
		if err := s.SendCommand(command); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to write command: %v", err))
			return
		}
		fmt.Fprintf(w, "Wrote command %q to serial port", command)
	})

	debug.HandleFunc("feed-stats", "report feed lines read, by type (JSON)", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.Counts())
	})

	// Server-sent events, one per line read from the port.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			httputil.InternalServerError(w, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			httputil.InternalServerError(w, "failed to open tail.js")
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
}
