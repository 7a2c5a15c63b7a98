package monitor

import (
	"bytes"
	"fmt"
	"html"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/helm.avoid/internal/httputil"
)

// WebServer serves the helm's debug views.
type WebServer struct {
	store *SurfaceStore
	feed  *LiveFeed
}

func NewWebServer(store *SurfaceStore, feed *LiveFeed) *WebServer {
	return &WebServer{store: store, feed: feed}
}

// AttachAdminRoutes mounts /debug/surface, /debug/cycle and the /ws/cycles
// live feed.
func (ws *WebServer) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("surface", "latest behavior surfaces as heatmaps", ws.handleSurface)
	debug.HandleFunc("cycle", "latest helm cycle (JSON)", ws.handleCycle)
	if ws.feed != nil {
		mux.Handle("/ws/cycles", ws.feed)
	}
}

func (ws *WebServer) handleSurface(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	name := r.URL.Query().Get("behavior")
	if name == "" {
		var buf bytes.Buffer
		buf.WriteString("<html><body><h3>Behavior surfaces</h3><ul>")
		for _, b := range ws.store.Behaviors() {
			e := html.EscapeString(b)
			fmt.Fprintf(&buf, `<li><a href="?behavior=%s">%s</a></li>`, e, e)
		}
		buf.WriteString("</ul></body></html>")
		httputil.WriteHTML(w, buf.Bytes())
		return
	}

	latest, ok := ws.store.Surface(name)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no surface for behavior %q", name))
		return
	}
	hm, err := SurfaceHeatmap(fmt.Sprintf("%s cycle %d", name, latest.Cycle), latest.Surface, latest.Priority)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}

func (ws *WebServer) handleCycle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, newCycleMessage(ws.store.LastCycle()))
}
