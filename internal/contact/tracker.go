package contact

import (
	"math"
	"strings"

	"github.com/banshee-data/helm.avoid/internal/config"
	"github.com/banshee-data/helm.avoid/internal/geom"
	"github.com/banshee-data/helm.avoid/internal/nav"
)

// RunState is the lifecycle state of a contact-driven behavior.
type RunState string

const (
	Idle      RunState = "idle"
	Running   RunState = "running"
	ToIdle    RunState = "to_idle"
	Completed RunState = "completed"
)

// IsTerminal reports whether no further activation is possible.
func (s RunState) IsTerminal() bool { return s == Completed }

// Config holds configuration for a single-contact tracker.
type Config struct {
	Name          string  // Contact name, matched case-insensitively
	InnerDist     float64 // Range at or inside which relevance is 1 (metres)
	OuterDist     float64 // Range at or beyond which relevance is 0 (metres)
	CompletedDist float64 // Range beyond which the encounter is over (metres)
	Grade         Grade   // Relevance curve between inner and outer
	Extrapolate   bool    // Project stale reports forward
	DecayStart    float64 // Seconds of full-speed extrapolation
	DecayEnd      float64 // Seconds after which extrapolation stops
}

// DefaultConfig returns the built-in collision tracker parameters.
func DefaultConfig() Config {
	return Config{
		InnerDist:     50,
		OuterDist:     200,
		CompletedDist: 500,
		Grade:         QuasiLinear,
		Extrapolate:   true,
		DecayStart:    15,
		DecayEnd:      30,
	}
}

// ConfigFromTuning builds a Config from the collision section of a loaded
// TuningConfig. Use this in production code where the TuningConfig is
// already loaded.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	c := cfg.GetCollision()
	grade, err := ParseGrade(c.GetPwtGrade())
	if err != nil {
		grade = QuasiLinear
	}
	start, end := c.GetDecay()
	return Config{
		Name:          c.GetContact(),
		InnerDist:     c.GetPwtInnerDist(),
		OuterDist:     c.GetPwtOuterDist(),
		CompletedDist: c.GetCompletedDist(),
		Grade:         grade,
		Extrapolate:   c.GetExtrapolate(),
		DecayStart:    start,
		DecayEnd:      end,
	}.Normalize()
}

// Normalize clamps the relevance band so inner never exceeds outer, and
// the decay window so start never exceeds end.
func (c Config) Normalize() Config {
	if c.InnerDist < 0 {
		c.InnerDist = 0
	}
	if c.OuterDist < c.InnerDist {
		c.OuterDist = c.InnerDist
	}
	if c.DecayStart < 0 {
		c.DecayStart = 0
	}
	if c.DecayEnd < c.DecayStart {
		c.DecayEnd = c.DecayStart
	}
	return c
}

// BearingLine is a visualization hint joining own-ship to the contact.
// Active false means erase any previously drawn line.
type BearingLine struct {
	Label     string
	From      geom.Point
	To        geom.Point
	Relevance float64
	Active    bool
}

// Tracker owns the kinematic view of one contact for one behavior. It is
// not safe for concurrent use: a behavior drives it from a single cycle.
type Tracker struct {
	cfg Config

	state RunState

	report    nav.State // last report as received
	current   nav.State // report after extrapolation
	ownship   nav.State
	haveInput bool
	rng       float64

	erasePending bool
	lineDrawn    bool
}

// NewTracker creates an idle Tracker with the given configuration.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg.Normalize(), state: Idle}
}

// Config returns the current configuration.
func (t *Tracker) Config() Config { return t.cfg }

// SetConfig replaces the configuration after normalizing it.
func (t *Tracker) SetConfig(cfg Config) { t.cfg = cfg.Normalize() }

// State returns the run state.
func (t *Tracker) State() RunState { return t.state }

// Activate moves an idle tracker to Running. Completed trackers stay
// completed.
func (t *Tracker) Activate() {
	if t.state.IsTerminal() {
		return
	}
	t.state = Running
	t.erasePending = false
}

// Deactivate moves a running tracker to ToIdle and queues the erase hint.
func (t *Tracker) Deactivate() {
	if t.state != Running {
		return
	}
	t.state = ToIdle
	t.erasePending = t.lineDrawn
}

// Matches reports whether name refers to this tracker's contact. An empty
// configured name matches nothing.
func (t *Tracker) Matches(name string) bool {
	return t.cfg.Name != "" && strings.EqualFold(strings.TrimSpace(name), t.cfg.Name)
}

// Update records a fresh contact report and own-ship snapshot. Missing or
// invalid fields yield a *Warning and leave previous inputs untouched.
func (t *Tracker) Update(report NodeReport, ownship nav.State) (nav.State, error) {
	if !t.Matches(report.Name) {
		return nav.State{}, &Warning{Kind: WrongContact, Contact: report.Name}
	}
	if !ownship.Valid() {
		return nav.State{}, &Warning{Kind: MissingField, Contact: t.cfg.Name, Field: "NAV"}
	}
	cn, err := report.State()
	if err != nil {
		return nav.State{}, err
	}
	t.report = cn
	t.current = cn
	t.ownship = ownship.Normalized()
	t.haveInput = true
	t.rng = nav.Range(t.ownship, t.current)
	return cn, nil
}

// Extrapolate projects the last report to now when extrapolation is
// enabled and refreshes the range. Outside the decay window the last
// known position is kept and a warning returned.
func (t *Tracker) Extrapolate(now float64) (nav.State, error) {
	if !t.haveInput {
		return nav.State{}, &Warning{Kind: MissingField, Contact: t.cfg.Name, Field: KeyX}
	}
	if !t.cfg.Extrapolate {
		t.current = t.report
		t.rng = nav.Range(t.ownship, t.current)
		return t.current, nil
	}
	x := Extrapolator{DecayStart: t.cfg.DecayStart, DecayEnd: t.cfg.DecayEnd}
	cn, err := x.Extrapolate(t.report, now)
	t.current = cn
	t.rng = nav.Range(t.ownship, t.current)
	return cn, err
}

// Ready reports whether both own-ship and contact are established.
func (t *Tracker) Ready() bool { return t.haveInput }

// Contact returns the contact state after extrapolation.
func (t *Tracker) Contact() nav.State { return t.current }

// Ownship returns the own-ship snapshot from the last Update.
func (t *Tracker) Ownship() nav.State { return t.ownship }

// Range returns the own-ship to contact range, or +Inf before any update.
func (t *Tracker) Range() float64 {
	if !t.haveInput {
		return math.Inf(1)
	}
	return t.rng
}

// Relevance grades the current range using the configured band.
func (t *Tracker) Relevance() float64 {
	if !t.haveInput {
		return 0
	}
	return Relevance(t.rng, t.cfg.InnerDist, t.cfg.OuterDist, t.cfg.Grade)
}

// Age returns the seconds between now and the last report timestamp.
func (t *Tracker) Age(now float64) float64 {
	if !t.haveInput {
		return math.Inf(1)
	}
	return now - t.report.Time
}

// CheckCompleted moves a running tracker to Completed once the range
// exceeds the completed distance. It reports whether the transition
// happened on this call.
func (t *Tracker) CheckCompleted() bool {
	if t.state != Running || !t.haveInput {
		return false
	}
	if t.rng <= t.cfg.CompletedDist {
		return false
	}
	t.state = Completed
	t.erasePending = t.lineDrawn
	return true
}

// BearingLineHint returns the hint to post this cycle. Running trackers
// draw a line from own-ship to the contact; after ToIdle or Completed a
// single erase hint is returned, then nothing. A ToIdle tracker settles
// to Idle once its erase has gone out.
func (t *Tracker) BearingLineHint(relevance float64) (BearingLine, bool) {
	label := t.cfg.Name + "_bearing"
	switch t.state {
	case Running:
		if !t.haveInput {
			return BearingLine{}, false
		}
		t.lineDrawn = true
		return BearingLine{
			Label:     label,
			From:      t.ownship.Pos(),
			To:        t.current.Pos(),
			Relevance: relevance,
			Active:    true,
		}, true
	case ToIdle, Completed:
		if t.state == ToIdle {
			t.state = Idle
		}
		if !t.erasePending {
			return BearingLine{}, false
		}
		t.erasePending = false
		t.lineDrawn = false
		return BearingLine{Label: label}, true
	}
	return BearingLine{}, false
}
