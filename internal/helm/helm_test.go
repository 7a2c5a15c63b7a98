package helm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/helm.avoid/internal/behavior"
	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
	"github.com/banshee-data/helm.avoid/internal/nav"
	"github.com/banshee-data/helm.avoid/internal/surface"
	"github.com/banshee-data/helm.avoid/internal/timeutil"
	"github.com/banshee-data/helm.avoid/internal/world"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func init() { monitoring.SetLogger(nil) }

type fakeRecorder struct {
	mu   sync.Mutex
	recs []CycleRecord
	err  error
}

func (f *fakeRecorder) RecordCycle(_ context.Context, rec CycleRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return f.err
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

type fakeReports struct {
	kinds []string
	times []time.Time
}

func (f *fakeReports) RecordReport(_ context.Context, _, kind, _ string, received time.Time) error {
	f.kinds = append(f.kinds, kind)
	f.times = append(f.times, received)
	return nil
}

// failing returns a surface together with an error; the helm must drop
// the surface.
type failing struct {
	domain surface.Domain
	state  contact.RunState
}

func (f *failing) Name() string            { return "broken" }
func (f *failing) OnActivate()             { f.state = contact.Running }
func (f *failing) OnDeactivate()           { f.state = contact.Idle }
func (f *failing) State() contact.RunState { return f.state }
func (f *failing) SetParam(string, string) error {
	return nil
}

func (f *failing) OnEvaluate(world.Reader, time.Time) (behavior.Output, error) {
	s := surface.New(f.domain)
	return behavior.Output{Surface: s, Priority: 50, Warnings: []string{"half done"}}, errors.New("sensor fault")
}

// peek records the own-ship it read and can write to the live world
// while it evaluates.
type peek struct {
	name  string
	write func()
	seen  []nav.State
}

func (p *peek) Name() string                  { return p.name }
func (p *peek) OnActivate()                   {}
func (p *peek) OnDeactivate()                 {}
func (p *peek) State() contact.RunState       { return contact.Running }
func (p *peek) SetParam(string, string) error { return nil }

func (p *peek) OnEvaluate(r world.Reader, _ time.Time) (behavior.Output, error) {
	if p.write != nil {
		p.write()
	}
	own, err := world.Ownship(r)
	if err != nil {
		return behavior.Output{}, err
	}
	p.seen = append(p.seen, own)
	return behavior.Output{}, nil
}

func setup(t *testing.T) (*Helm, *timeutil.MockClock, *MemoryPoster, *fakeRecorder) {
	t.Helper()
	clock := timeutil.NewMockClock(epoch)
	w := world.NewBuffer(clock)
	w.SetOwnship(nav.State{Heading: 0, Speed: 2})

	d, err := surface.CourseSpeed(5, 6)
	require.NoError(t, err)
	avd := behavior.NewAvoidCollision("avd_alpha", d)
	require.NoError(t, avd.SetParam("contact", "alpha"))

	poster := &MemoryPoster{}
	rec := &fakeRecorder{}
	h := New(w, []behavior.Behavior{avd, &failing{domain: d, state: contact.Idle}}, Options{
		Clock:     clock,
		Poster:    poster,
		Recorders: []Recorder{rec},
	})
	return h, clock, poster, rec
}

// ----------------------------------------------------------------------------
// Cycle

func TestCycle_IdleBehaviorsPostNothing(t *testing.T) {
	t.Parallel()
	h, clock, poster, rec := setup(t)

	cr, err := h.Cycle(context.Background(), clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, cr.Cycle)
	assert.Equal(t, h.RunID(), cr.RunID)
	require.NotNil(t, cr.Ownship)
	require.Len(t, cr.Behaviors, 2)

	// The idle failing behavior still reports its error.
	assert.Len(t, poster.Posts("surface"), 0)
	assert.Len(t, poster.Posts("error"), 1)
	assert.Equal(t, 1, rec.count())
}

func TestCycle_RunningEncounter(t *testing.T) {
	t.Parallel()
	h, clock, poster, rec := setup(t)
	_, err := h.IngestLine(context.Background(), "NAME=alpha,X=0,Y=100,SPD=2,HDG=180")
	require.NoError(t, err)

	h.Activate()
	cr, err := h.Cycle(context.Background(), clock.Now())
	require.NoError(t, err)

	avd := cr.Behaviors[0]
	assert.Equal(t, "avd_alpha", avd.Behavior)
	assert.Equal(t, contact.Running, avd.State)
	assert.Greater(t, avd.Priority, 0.0)
	assert.Equal(t, 100.0, avd.Summary.Max)
	require.NotNil(t, avd.Surface)
	assert.Len(t, avd.Best, 2)

	broken := cr.Behaviors[1]
	assert.Equal(t, "sensor fault", broken.Err)
	assert.Nil(t, broken.Surface)
	assert.Empty(t, broken.Warnings)

	surfaces := poster.Posts("surface")
	require.Len(t, surfaces, 1)
	assert.Equal(t, "avd_alpha", surfaces[0].Behavior)

	hints := poster.Posts("hint")
	require.Len(t, hints, 1)
	assert.Equal(t, behavior.HintSegList, hints[0].Hint.Kind)
	for _, p := range poster.Posts("warning") {
		assert.NotEqual(t, "broken", p.Behavior, "warnings of a failed evaluation are dropped")
	}
	assert.Equal(t, 1, rec.count())
}

func TestCycle_DeactivateErases(t *testing.T) {
	t.Parallel()
	h, clock, poster, _ := setup(t)
	_, err := h.IngestLine(context.Background(), "NAME=alpha,X=0,Y=100,SPD=2,HDG=180")
	require.NoError(t, err)
	h.Activate()
	_, err = h.Cycle(context.Background(), clock.Now())
	require.NoError(t, err)

	h.Deactivate()
	assert.Equal(t, contact.ToIdle, h.States()["avd_alpha"])
	clock.Advance(time.Second)
	_, err = h.Cycle(context.Background(), clock.Now())
	require.NoError(t, err)
	assert.Equal(t, contact.Idle, h.States()["avd_alpha"])

	hints := poster.Posts("hint")
	require.Len(t, hints, 2)
	assert.False(t, hints[1].Hint.Active)
	assert.Len(t, poster.Posts("surface"), 1)
}

func TestCycle_BehaviorsShareOneSnapshot(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(epoch)
	w := world.NewBuffer(clock)
	w.SetOwnship(nav.State{X: 1, Y: 1, Heading: 10, Speed: 1})
	first := &peek{name: "first"}
	first.write = func() { w.SetOwnship(nav.State{X: 2, Y: 2, Heading: 20, Speed: 2}) }
	second := &peek{name: "second"}
	h := New(w, []behavior.Behavior{first, second}, Options{Clock: clock, Poster: &MemoryPoster{}})

	rec, err := h.Cycle(context.Background(), clock.Now())
	require.NoError(t, err)
	require.Len(t, second.seen, 1)
	assert.Equal(t, 1.0, second.seen[0].X, "a write during the cycle is not visible until the next one")
	assert.Equal(t, first.seen, second.seen)
	require.NotNil(t, rec.Ownship)
	assert.Equal(t, 10.0, rec.Ownship.Heading)

	_, err = h.Cycle(context.Background(), clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 20.0, second.seen[1].Heading)
}

func TestCycle_PrunesStaleWorld(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(epoch)
	w := world.NewBuffer(clock)
	w.SetString("ALPHA_NAV_TYPE", "kayak")
	h := New(w, nil, Options{Clock: clock, Poster: &MemoryPoster{}, StaleAfter: time.Minute})

	clock.Advance(2 * time.Minute)
	cr, err := h.Cycle(context.Background(), clock.Now())
	require.NoError(t, err)
	assert.Nil(t, cr.Ownship)
	assert.Empty(t, w.Keys())
}

func TestCycle_CancelledContext(t *testing.T) {
	t.Parallel()
	h, clock, _, rec := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Cycle(ctx, clock.Now())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rec.count())
}

func TestCycle_RecorderErrorIsLogged(t *testing.T) {
	t.Parallel()
	h, clock, _, rec := setup(t)
	rec.err = errors.New("disk full")
	_, err := h.Cycle(context.Background(), clock.Now())
	assert.NoError(t, err)
}

// ----------------------------------------------------------------------------
// Run

func TestRun_CyclesOnTicks(t *testing.T) {
	t.Parallel()
	h, clock, _, rec := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, time.Second) }()

	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return rec.count() >= 3
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRun_RejectsBadPeriod(t *testing.T) {
	t.Parallel()
	h, _, _, _ := setup(t)
	assert.Error(t, h.Run(context.Background(), 0))
}

// ----------------------------------------------------------------------------
// Ingest

func TestIngest(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(epoch)
	reports := &fakeReports{}
	h := New(world.NewBuffer(clock), nil, Options{Clock: clock, Reports: reports})

	lines := make(chan string, 8)
	for _, l := range []string{
		"NAV_X=0,NAV_Y=0,NAV_HEADING=90,NAV_SPEED=0",
		"NAME=alpha,X=0,Y=100",
		"NAME=alpha,X=zero",
		"OBSTACLE=pts={0,0:10,0:10,10},label=rock",
		"$GPGGA,1",
	} {
		lines <- l
	}
	close(lines)

	stats, err := h.Ingest(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, IngestStats{"ownship": 1, "node_report": 1, "obstacle": 1, "error": 1, "unknown": 1}, stats)
	assert.Equal(t, []string{"ownship", "node_report", "obstacle"}, reports.kinds)
	assert.Equal(t, []time.Time{epoch, epoch, epoch}, reports.times, "lines are dated by the helm clock")

	own, err := world.Ownship(h.World())
	require.NoError(t, err)
	assert.Equal(t, 90.0, own.Heading)
}

func TestIngest_StopsOnCancel(t *testing.T) {
	t.Parallel()
	h := New(world.NewBuffer(nil), nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Ingest(ctx, make(chan string))
	assert.ErrorIs(t, err, context.Canceled)
}

// ----------------------------------------------------------------------------
// Health

func TestHealthReporter(t *testing.T) {
	t.Parallel()
	h, _, _, _ := setup(t)
	hr := NewHealthReporter()
	h.SetHealthReporter(hr)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := hr.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.Status
	}

	h.Activate()
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check("avd_alpha"))

	h.Deactivate()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check("avd_alpha"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
}

// ----------------------------------------------------------------------------
// Posters

func TestMultiPoster(t *testing.T) {
	t.Parallel()
	a, b := &MemoryPoster{}, &MemoryPoster{}
	mp := MultiPoster{a, b, LogPoster{Verbose: true}}
	mp.PostWarning("x", "careful")
	mp.PostError("x", errors.New("boom"))
	mp.PostHint("x", behavior.Hint{Kind: behavior.HintPolygon, Label: "rock_buff"})

	for _, p := range []*MemoryPoster{a, b} {
		assert.Len(t, p.Posts(""), 3)
		assert.Equal(t, "careful", p.Posts("warning")[0].Message)
		assert.Equal(t, "boom", p.Posts("error")[0].Message)
	}
}
