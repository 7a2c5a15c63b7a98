package scenario

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/helm.avoid/internal/behavior"
	"github.com/banshee-data/helm.avoid/internal/config"
	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/helm"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
	"github.com/banshee-data/helm.avoid/internal/nav"
	"github.com/banshee-data/helm.avoid/internal/surface"
	"github.com/banshee-data/helm.avoid/internal/timeutil"
	"github.com/banshee-data/helm.avoid/internal/world"
)

// Domain builds the course/speed decision domain the script asks for.
func (s *Scenario) Domain() (surface.Domain, error) {
	return surface.CourseSpeed(s.script.Domain.MaxSpeed, s.script.Domain.SpeedPoints)
}

// OwnshipAt returns own-ship's state at t from the start.
func (s *Scenario) OwnshipAt(t time.Duration) nav.State {
	return toState("", sample(s.script.Ownship.Keyframes, t))
}

// ContactAt returns the named contact's state at t.
func (s *Scenario) ContactAt(name string, t time.Duration) (nav.State, bool) {
	for _, c := range s.script.Contacts {
		if strings.EqualFold(c.Name, name) {
			return toState(c.Name, sample(c.Keyframes, t)), true
		}
	}
	return nav.State{}, false
}

func toState(name string, kf Keyframe) nav.State {
	return nav.State{
		Name:    name,
		X:       kf.X,
		Y:       kf.Y,
		Heading: kf.Heading,
		Speed:   kf.Speed,
		Depth:   kf.Depth,
	}.Normalized()
}

// Behaviors builds the script's behaviors over domain. With a tuning
// config each behavior starts from its defaults; script params are then
// applied in name order.
func (s *Scenario) Behaviors(domain surface.Domain, tuning *config.TuningConfig) ([]behavior.Behavior, error) {
	out := make([]behavior.Behavior, 0, len(s.script.Behaviors))
	for _, spec := range s.script.Behaviors {
		var (
			b   behavior.Behavior
			err error
		)
		switch spec.Kind {
		case KindAvoidCollision:
			if tuning != nil {
				b, err = behavior.NewAvoidCollisionFromTuning(spec.Name, domain, tuning)
			} else {
				b = behavior.NewAvoidCollision(spec.Name, domain)
			}
		case KindAvoidObstacle:
			if tuning != nil {
				b, err = behavior.NewAvoidObstacleFromTuning(spec.Name, domain, tuning)
			} else {
				b, err = behavior.NewAvoidObstacle(spec.Name, domain)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("scenario: behavior %s: %w", spec.Name, err)
		}

		keys := make([]string, 0, len(spec.Params))
		for k := range spec.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := b.SetParam(k, spec.Params[k]); err != nil {
				return nil, fmt.Errorf("scenario: behavior %s: %w", spec.Name, err)
			}
		}
		out = append(out, b)
	}
	return out, nil
}

// Player turns a scenario into feed lines, step by step.
type Player struct {
	sc       *Scenario
	start    time.Time
	appeared map[string]bool
	resolved map[string]bool
}

// NewPlayer starts playback with t=0 at start.
func NewPlayer(sc *Scenario, start time.Time) *Player {
	return &Player{
		sc:       sc,
		start:    start,
		appeared: make(map[string]bool),
		resolved: make(map[string]bool),
	}
}

// Step returns the feed lines describing the world elapsed into the run:
// one own-ship line, one node report per contact, and each obstacle
// announcement or resolution the first time it falls due.
func (p *Player) Step(elapsed time.Duration) []string {
	stamp := p.start.Add(elapsed)
	lines := []string{ownshipLine(p.sc.OwnshipAt(elapsed))}

	for _, c := range p.sc.script.Contacts {
		st := toState(c.Name, sample(c.Keyframes, elapsed))
		st.Time = timeutil.UnixSeconds(stamp)
		r := contact.ReportFromState(st)
		r.Type = c.Type
		lines = append(lines, r.String())
	}

	for i, o := range p.sc.script.Obstacles {
		if !p.appeared[o.Label] && elapsed >= o.Appear {
			p.appeared[o.Label] = true
			lines = append(lines, "OBSTACLE="+p.sc.obstacles[i].String())
		}
		if o.Resolve > 0 && p.appeared[o.Label] && !p.resolved[o.Label] && elapsed >= o.Resolve {
			p.resolved[o.Label] = true
			lines = append(lines, "OBSTACLE_RESOLVED="+o.Label)
		}
	}
	return lines
}

func ownshipLine(s nav.State) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return strings.Join([]string{
		world.NavX + "=" + f(s.X),
		world.NavY + "=" + f(s.Y),
		world.NavHeading + "=" + f(s.Heading),
		world.NavSpeed + "=" + f(s.Speed),
		world.NavDepth + "=" + f(s.Depth),
	}, ",")
}

// Replay plays sc through h one cycle at a time. h must have been built
// with clock, whose time is advanced by the script's cycle between
// cycles. Behaviors are activated before the first cycle.
func Replay(ctx context.Context, sc *Scenario, h *helm.Helm, clock *timeutil.MockClock) ([]helm.CycleRecord, error) {
	player := NewPlayer(sc, clock.Now())
	h.Activate()

	var records []helm.CycleRecord
	for elapsed := time.Duration(0); elapsed <= sc.Duration(); elapsed += sc.Cycle() {
		if elapsed > 0 {
			clock.Advance(sc.Cycle())
		}
		for _, line := range player.Step(elapsed) {
			if _, err := h.IngestLine(ctx, line); err != nil {
				monitoring.Logf("scenario: t=%s: %v", elapsed, err)
			}
		}
		rec, err := h.Cycle(ctx, clock.Now())
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}
