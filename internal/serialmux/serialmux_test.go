package serialmux

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/helm.avoid/internal/monitoring"
	"github.com/banshee-data/helm.avoid/internal/world"
)

func init() { monitoring.SetLogger(nil) }

// localHostRequest makes a request tsweb.AllowDebugAccess accepts.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func recv(t *testing.T, c <-chan string) string {
	t.Helper()
	select {
	case line := <-c:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
	}
	return ""
}

// ----------------------------------------------------------------------------
// Classification and handlers

func TestClassifyPayload(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		want string
	}{
		{"NAME=alpha,X=0,Y=100,SPD=2,HDG=180", EventTypeNodeReport},
		{"name=alpha,x=0,y=100", EventTypeNodeReport},
		{"NAV_X=1,NAV_Y=2,NAV_HEADING=90", EventTypeOwnship},
		{"OBSTACLE=pts={0,0:10,0:10,10},label=rock", EventTypeObstacle},
		{"pts={0,0:10,0:10,10},label=rock", EventTypeObstacle},
		{"OBSTACLE_RESOLVED=rock", EventTypeObstacleResolved},
		{`{"uptime": 12}`, EventTypeStatus},
		{"$GPRMC,123519,A", EventTypeUnknown},
		{"", EventTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyPayload(tt.line), tt.line)
	}
}

func TestHandleEvent_World(t *testing.T) {
	t.Parallel()
	w := world.NewBuffer(nil)

	for _, line := range []string{
		"NAV_X=5,NAV_Y=-3,NAV_HEADING=45,NAV_SPEED=2",
		"NAME=alpha,X=0,Y=100,SPD=2,HDG=180",
		"OBSTACLE=pts={0,0:10,0:10,10:0,10},label=rock",
	} {
		_, err := HandleEvent(w, line)
		require.NoError(t, err, line)
	}

	own, err := world.Ownship(w)
	require.NoError(t, err)
	assert.Equal(t, 5.0, own.X)
	assert.Equal(t, 45.0, own.Heading)

	st, err := world.ContactReport(w, "alpha").State()
	require.NoError(t, err)
	assert.Equal(t, 100.0, st.Y)

	polys, _ := world.Obstacles(w)
	assert.Contains(t, polys, "ROCK")

	kind, err := HandleEvent(w, "OBSTACLE_RESOLVED=rock")
	require.NoError(t, err)
	assert.Equal(t, EventTypeObstacleResolved, kind)
	polys, _ = world.Obstacles(w)
	assert.Empty(t, polys)
}

func TestHandleEvent_Errors(t *testing.T) {
	t.Parallel()
	w := world.NewBuffer(nil)
	for _, line := range []string{
		"NAME=alpha,X=abc,Y=1",
		"NAV_X=north",
		"OBSTACLE=pts={0,0:10,0:10,10:0,10}",             // no label
		"OBSTACLE=pts={0,0:10,0:5,2:10,10:0,10},label=notch", // concave
		"OBSTACLE_RESOLVED=",
		"{not json",
	} {
		_, err := HandleEvent(w, line)
		assert.Error(t, err, line)
	}
	assert.Empty(t, w.Keys())
}

func TestHandleOwnship_BadFieldStoresNothing(t *testing.T) {
	t.Parallel()
	w := world.NewBuffer(nil)
	require.Error(t, HandleOwnship(w, "NAV_X=1,NAV_Y=2,NAV_HEADING=east,NAV_SPEED=3"))
	assert.Empty(t, w.Keys(), "a half-parsed line leaves the world untouched")

	require.NoError(t, HandleOwnship(w, "nav_x=1, NAV_Y=2,NAV_HEADING=90,NAV_SPEED=3"))
	own, err := world.Ownship(w)
	require.NoError(t, err)
	assert.Equal(t, 1.0, own.X)
	assert.Equal(t, 3.0, own.Speed)
	snap := w.Snapshot()
	age, ok := snap.Age(world.NavX)
	require.True(t, ok)
	speedAge, _ := snap.Age(world.NavSpeed)
	assert.Equal(t, age, speedAge, "fields of one line share a timestamp")
}

func TestHandleStatus(t *testing.T) {
	require.NoError(t, HandleStatus(`{"bridge":"ais-1","uptime":12}`))
	require.NoError(t, HandleStatus(`{"uptime":13}`))
	snap := CurrentState.Snapshot()
	assert.Equal(t, "ais-1", snap["bridge"])
	assert.Equal(t, 13.0, snap["uptime"])
}

// ----------------------------------------------------------------------------
// SerialMux

func TestSerialMux_InitializeAndSend(t *testing.T) {
	t.Parallel()
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, "SUBSCRIBE NODE_REPORT", "SUBSCRIBE OBSTACLE\n")

	require.NoError(t, mux.Initialize())
	assert.Equal(t, "SUBSCRIBE NODE_REPORT\nSUBSCRIBE OBSTACLE\n", port.Written())

	port.WriteError = errors.New("unplugged")
	err := mux.SendCommand("PING")
	assert.EqualError(t, err, "unplugged")
}

func TestSerialMux_MonitorFansOut(t *testing.T) {
	t.Parallel()
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	id1, c1 := mux.Subscribe()
	_, c2 := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddLines("NAME=alpha,X=0,Y=1", "", "  NAV_X=3  ")
	assert.Equal(t, "NAME=alpha,X=0,Y=1", recv(t, c1))
	assert.Equal(t, "NAME=alpha,X=0,Y=1", recv(t, c2))
	assert.Equal(t, "NAV_X=3", recv(t, c1), "blank lines are skipped and lines trimmed")
	assert.Equal(t, "NAV_X=3", recv(t, c2))
	assert.Equal(t, map[string]int64{EventTypeNodeReport: 1, EventTypeOwnship: 1}, mux.Counts())

	mux.Unsubscribe(id1)
	_, ok := <-c1
	assert.False(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
	require.NoError(t, mux.Close())
	_, ok = <-c2
	assert.False(t, ok)
}

func TestSerialMux_MonitorEOF(t *testing.T) {
	t.Parallel()
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	port.AddLines("NAV_X=1")
	require.NoError(t, port.Close())
	assert.NoError(t, mux.Monitor(context.Background()))
}

func TestAttachAdminRoutes_SendCommandAPI(t *testing.T) {
	t.Parallel()
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name   string
		method string
		form   url.Values
		status int
	}{
		{"valid", http.MethodPost, url.Values{"command": {"PING"}}, http.StatusOK},
		{"empty", http.MethodPost, url.Values{"command": {"  "}}, http.StatusBadRequest},
		{"get", http.MethodGet, nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := localHostRequest(tt.method, "/debug/send-command-api", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			httpMux.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, "PING\n", port.Written())
}

func TestAttachAdminRoutes_Pages(t *testing.T) {
	t.Parallel()
	mux := NewSerialMux(NewTestableSerialPort())
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/send-command", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "report feed")

	rec = httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/tail.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")
}

func TestDisabledSerialMux(t *testing.T) {
	t.Parallel()
	d := NewDisabledSerialMux()
	_, c := d.Subscribe()
	require.NoError(t, d.Close())
	_, ok := <-c
	assert.False(t, ok)

	_, c = d.Subscribe()
	_, ok = <-c
	assert.False(t, ok, "subscribing after close yields a closed channel")
}

func TestFeedStatsRoute(t *testing.T) {
	t.Parallel()
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	port.AddLines("OBSTACLE=pts={0,0:1,0:1,1},label=a", "garbage")
	require.NoError(t, port.Close())
	require.NoError(t, mux.Monitor(context.Background()))

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)
	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/feed-stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"obstacle":1,"unknown":1}`, rec.Body.String())

	disabled := http.NewServeMux()
	NewDisabledSerialMux().AttachAdminRoutes(disabled)
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/feed-stats", nil))
	assert.JSONEq(t, `{"serial":"disabled"}`, rec.Body.String())
}

func TestPortOptions(t *testing.T) {
	t.Parallel()
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	_, err = PortOptions{DataBits: 9}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.Normalize()
	assert.Error(t, err)

	mode, err := PortOptions{BaudRate: 4800, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 4800, mode.BaudRate)
}
