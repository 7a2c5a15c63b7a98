package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/db"
	"github.com/banshee-data/helm.avoid/internal/helm"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
	"github.com/banshee-data/helm.avoid/internal/nav"
	"github.com/banshee-data/helm.avoid/internal/surface"
)

func init() { monitoring.SetLogger(nil) }

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// rampSurface is course*speed over a small domain, so the maximum sits at
// the last cell.
func rampSurface(t *testing.T) *surface.Surface {
	t.Helper()
	course, err := surface.NewAxis(surface.Course, 0, 270, 4)
	require.NoError(t, err)
	speed, err := surface.NewAxis(surface.Speed, 0, 2, 3)
	require.NoError(t, err)
	d, err := surface.NewDomain(course, speed)
	require.NoError(t, err)
	s := surface.New(d)
	s.Fill(func(c []float64) float64 { return c[0] * c[1] })
	s.Weight = 42
	return s
}

func cycle(n int, s *surface.Surface) helm.CycleRecord {
	br := helm.BehaviorRecord{Behavior: "avd_alpha", State: contact.Running}
	if s != nil {
		br.Priority = 42
		br.Surface = s
		br.Best = s.Best()
	}
	return helm.CycleRecord{
		RunID:     "run-1",
		Cycle:     n,
		Time:      epoch.Add(time.Duration(n) * time.Second),
		Ownship:   &nav.State{X: 1, Y: float64(n)},
		Behaviors: []helm.BehaviorRecord{br},
	}
}

func localHostRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// ----------------------------------------------------------------------------
// Heatmap

func TestCells(t *testing.T) {
	t.Parallel()
	cells, err := Cells(rampSurface(t))
	require.NoError(t, err)
	require.Len(t, cells, 4)
	require.Len(t, cells[0], 3)
	assert.Equal(t, 0.0, cells[0][2])
	assert.Equal(t, 180.0, cells[1][2])
	assert.Equal(t, 540.0, cells[3][2])

	_, err = Cells(&surface.Surface{})
	assert.Error(t, err)
}

func TestCells_CollapsesExtraAxes(t *testing.T) {
	t.Parallel()
	a, _ := surface.NewAxis("a", 0, 1, 2)
	b, _ := surface.NewAxis("b", 0, 1, 2)
	c, _ := surface.NewAxis("c", 0, 3, 4)
	d, err := surface.NewDomain(a, b, c)
	require.NoError(t, err)
	s := surface.New(d)
	s.Fill(func(x []float64) float64 { return x[0]*100 + x[1]*10 + x[2] })

	cells, err := Cells(s)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3, 13}, {103, 113}}, cells)
}

func TestSurfaceHeatmap_Renders(t *testing.T) {
	t.Parallel()
	hm, err := SurfaceHeatmap("avd_alpha", rampSurface(t), 42)
	require.NoError(t, err)
	var sb strings.Builder
	require.NoError(t, hm.Render(&sb))
	assert.Contains(t, sb.String(), "avd_alpha")
	assert.Contains(t, sb.String(), "heatmap")
}

// ----------------------------------------------------------------------------
// Store and routes

func TestSurfaceStore(t *testing.T) {
	t.Parallel()
	store := NewSurfaceStore()
	s := rampSurface(t)
	require.NoError(t, store.RecordCycle(context.Background(), cycle(1, s)))
	require.NoError(t, store.RecordCycle(context.Background(), cycle(2, nil)))

	latest, ok := store.Surface("avd_alpha")
	require.True(t, ok)
	assert.Equal(t, 1, latest.Cycle)
	assert.NotSame(t, s, latest.Surface)

	s.Values[0] = -1
	assert.Equal(t, 0.0, latest.Surface.Values[0], "stored surfaces are copies")

	assert.Equal(t, []string{"avd_alpha"}, store.Behaviors())
	last := store.LastCycle()
	assert.Equal(t, 2, last.Cycle)
	assert.Nil(t, last.Behaviors[0].Surface)
}

func TestWebServer_Routes(t *testing.T) {
	t.Parallel()
	store := NewSurfaceStore()
	require.NoError(t, store.RecordCycle(context.Background(), cycle(7, rampSurface(t))))
	mux := http.NewServeMux()
	NewWebServer(store, nil).AttachAdminRoutes(mux)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/debug/surface", http.StatusOK, `?behavior=avd_alpha`},
		{"/debug/surface?behavior=avd_alpha", http.StatusOK, "avd_alpha cycle 7"},
		{"/debug/surface?behavior=nobody", http.StatusNotFound, "no surface"},
		{"/debug/cycle", http.StatusOK, `"cycle":7`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, localHostRequest(tt.path))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestWebServer_RejectsPost(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	NewWebServer(NewSurfaceStore(), nil).AttachAdminRoutes(mux)

	req := localHostRequest("/debug/cycle")
	req.Method = http.MethodPost
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "method not allowed")
}

// ----------------------------------------------------------------------------
// Live feed

func TestLiveFeed_Broadcasts(t *testing.T) {
	t.Parallel()
	feed := NewLiveFeed()
	srv := httptest.NewServer(feed)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return feed.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, feed.RecordCycle(context.Background(), cycle(3, rampSurface(t))))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg CycleMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "cycle", msg.Type)
	assert.Equal(t, 3, msg.Cycle)
	require.NotNil(t, msg.OwnY)
	assert.Equal(t, 3.0, *msg.OwnY)
	require.Len(t, msg.Behaviors, 1)
	assert.Equal(t, "running", msg.Behaviors[0].State)
	assert.Equal(t, []float64{270, 2}, msg.Behaviors[0].Best)

	conn.Close()
	require.Eventually(t, func() bool { return feed.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

// ----------------------------------------------------------------------------
// Plots

func TestPlotEncounters(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	series := map[string][]db.CyclePoint{
		"avd_alpha": {
			{Cycle: 1, Priority: 10, OwnX: 0, OwnY: 0, HasOwn: true},
			{Cycle: 2, Priority: 40, OwnX: 1, OwnY: 2, HasOwn: true},
		},
		"avd_rock": {
			{Cycle: 2, Priority: 75, OwnX: 1, OwnY: 2, HasOwn: true},
		},
	}
	paths, err := PlotEncounters(dir, []string{"avd_alpha", "avd_rock"}, series)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}

	_, err = PlotEncounters(dir, nil, series)
	assert.Error(t, err)
}
