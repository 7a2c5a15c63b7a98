// Package helm runs the avoidance behaviors once per decision cycle against
// a snapshot of the world, and routes their surfaces, hints and warnings
// to whoever is listening.
package helm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/helm.avoid/internal/behavior"
	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
	"github.com/banshee-data/helm.avoid/internal/nav"
	"github.com/banshee-data/helm.avoid/internal/surface"
	"github.com/banshee-data/helm.avoid/internal/timeutil"
	"github.com/banshee-data/helm.avoid/internal/world"
)

// BehaviorRecord is one behavior's part of a cycle.
type BehaviorRecord struct {
	Behavior string
	State    contact.RunState
	Priority float64
	Summary  surface.Stats
	Best     []float64 // coordinates of the best domain point, nil without a surface
	Warnings []string
	Err      string

	Surface *surface.Surface `json:"-"`
}

// CycleRecord summarizes one decision cycle.
type CycleRecord struct {
	RunID     string
	Cycle     int
	Time      time.Time
	Ownship   *nav.State // nil when own-ship was unknown
	Behaviors []BehaviorRecord
	Duration  time.Duration
}

// Recorder observes finished cycles. Implementations must not retain
// surfaces beyond the call unless they clone them.
type Recorder interface {
	RecordCycle(ctx context.Context, rec CycleRecord) error
}

// ReportLogger observes every feed line the helm ingests, timestamped by
// the helm's clock.
type ReportLogger interface {
	RecordReport(ctx context.Context, runID, kind, line string, received time.Time) error
}

// Options configure a Helm. Zero values select the real clock, a
// LogPoster and no recorder.
type Options struct {
	Clock      timeutil.Clock
	Poster     Poster
	Recorders  []Recorder
	Reports    ReportLogger
	StaleAfter time.Duration // world entries older than this are pruned each cycle; 0 disables
}

// Helm owns the behaviors and the world they read. Cycle is not safe for
// concurrent use; Run calls it from a single goroutine.
type Helm struct {
	world     *world.Buffer
	behaviors []behavior.Behavior
	clock     timeutil.Clock
	poster    Poster
	recorders []Recorder
	reports   ReportLogger
	stale     time.Duration
	runID     string

	mu     sync.Mutex
	cycle  int
	states map[string]contact.RunState
	health *HealthReporter
}

// New creates a Helm over w. Behaviors are evaluated in the given order.
func New(w *world.Buffer, behaviors []behavior.Behavior, opts Options) *Helm {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Poster == nil {
		opts.Poster = LogPoster{}
	}
	return &Helm{
		world:     w,
		behaviors: behaviors,
		clock:     opts.Clock,
		poster:    opts.Poster,
		recorders: opts.Recorders,
		reports:   opts.Reports,
		stale:     opts.StaleAfter,
		runID:     uuid.NewString(),
		states:    make(map[string]contact.RunState),
	}
}

// RunID identifies this helm instance in cycle records.
func (h *Helm) RunID() string { return h.runID }

// World returns the world buffer the helm reads.
func (h *Helm) World() *world.Buffer { return h.world }

// Behaviors returns the managed behaviors.
func (h *Helm) Behaviors() []behavior.Behavior { return h.behaviors }

// SetHealthReporter attaches a health reporter updated after every cycle.
func (h *Helm) SetHealthReporter(r *HealthReporter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.health = r
	r.Update(h.snapshotStates())
}

// Activate moves every behavior to running.
func (h *Helm) Activate() {
	for _, b := range h.behaviors {
		b.OnActivate()
	}
	h.noteStates()
}

// Deactivate moves every running behavior to idle. The next cycle posts
// their erase hints.
func (h *Helm) Deactivate() {
	for _, b := range h.behaviors {
		b.OnDeactivate()
	}
	h.noteStates()
}

// Cycle evaluates every behavior once, in order, against one snapshot of
// the world taken after pruning. A behavior that returns
// an error contributes nothing: its partial output is discarded and the
// error posted. Cycle itself only fails when ctx is done.
func (h *Helm) Cycle(ctx context.Context, now time.Time) (CycleRecord, error) {
	if err := ctx.Err(); err != nil {
		return CycleRecord{}, err
	}
	start := h.clock.Now()
	if h.stale > 0 {
		if n := h.world.Prune(h.stale); n > 0 {
			monitoring.Logf("helm: pruned %d stale world entries", n)
		}
	}

	h.mu.Lock()
	h.cycle++
	rec := CycleRecord{RunID: h.runID, Cycle: h.cycle, Time: now}
	h.mu.Unlock()

	snap := h.world.Snapshot()
	if own, err := world.Ownship(snap); err == nil {
		rec.Ownship = &own
	}

	for _, b := range h.behaviors {
		br := BehaviorRecord{Behavior: b.Name()}
		out, err := b.OnEvaluate(snap, now)
		br.State = b.State()
		if err != nil {
			br.Err = err.Error()
			h.poster.PostError(b.Name(), err)
			rec.Behaviors = append(rec.Behaviors, br)
			continue
		}
		for _, w := range out.Warnings {
			h.poster.PostWarning(b.Name(), w)
		}
		for _, hint := range out.Hints {
			h.poster.PostHint(b.Name(), hint)
		}
		if out.Surface != nil {
			h.poster.PostSurface(b.Name(), out.Surface, out.Priority)
			br.Priority = out.Priority
			br.Summary = out.Surface.Summary()
			br.Best = out.Surface.Best()
			br.Surface = out.Surface
		}
		br.Warnings = out.Warnings
		rec.Behaviors = append(rec.Behaviors, br)
	}
	rec.Duration = h.clock.Since(start)
	h.noteStates()

	for _, r := range h.recorders {
		if err := r.RecordCycle(ctx, rec); err != nil {
			monitoring.Logf("helm: recorder: %v", err)
		}
	}
	return rec, nil
}

// Run cycles every period until ctx is done.
func (h *Helm) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("helm: cycle period must be positive, got %s", period)
	}
	ticker := h.clock.NewTicker(period)
	defer ticker.Stop()
	monitoring.Logf("helm: run %s cycling every %s with %d behaviors", h.runID, period, len(h.behaviors))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			if _, err := h.Cycle(ctx, now); err != nil {
				return err
			}
		}
	}
}

// States returns the current run state of every behavior by name.
func (h *Helm) States() map[string]contact.RunState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotStates()
}

func (h *Helm) snapshotStates() map[string]contact.RunState {
	out := make(map[string]contact.RunState, len(h.states))
	for k, v := range h.states {
		out[k] = v
	}
	return out
}

func (h *Helm) noteStates() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range h.behaviors {
		prev, seen := h.states[b.Name()]
		cur := b.State()
		if seen && prev != cur {
			monitoring.Logf("helm: %s %s -> %s", b.Name(), prev, cur)
		}
		h.states[b.Name()] = cur
	}
	if h.health != nil {
		h.health.Update(h.snapshotStates())
	}
}
