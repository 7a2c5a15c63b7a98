package behavior

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/helm.avoid/internal/config"
	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
	"github.com/banshee-data/helm.avoid/internal/objective"
	"github.com/banshee-data/helm.avoid/internal/surface"
	"github.com/banshee-data/helm.avoid/internal/timeutil"
	"github.com/banshee-data/helm.avoid/internal/world"
)

// AvoidCollision keeps own-ship clear of one named contact by scoring
// every candidate maneuver on the closest point of approach it produces.
type AvoidCollision struct {
	name     string
	tracker  *contact.Tracker
	builder  objective.CollisionBuilder
	priority float64
}

// NewAvoidCollision creates an idle behavior with the built-in defaults.
// The contact must be set with SetParam("contact", ...) before it can
// produce output.
func NewAvoidCollision(name string, domain surface.Domain) *AvoidCollision {
	return &AvoidCollision{
		name:    name,
		tracker: contact.NewTracker(contact.DefaultConfig()),
		builder: objective.CollisionBuilder{
			Domain:      domain,
			MinUtilDist: 10,
			MaxUtilDist: 75,
			TimeOnLeg:   120,
		},
		priority: 100,
	}
}

// NewAvoidCollisionFromTuning applies the collision section of cfg on top
// of the defaults.
func NewAvoidCollisionFromTuning(name string, domain surface.Domain, cfg *config.TuningConfig) (*AvoidCollision, error) {
	b := NewAvoidCollision(name, domain)
	if err := config.Apply(b, cfg.GetCollision().Params()); err != nil {
		return nil, fmt.Errorf("behavior %s: %w", name, err)
	}
	return b, nil
}

func (b *AvoidCollision) Name() string { return b.name }

func (b *AvoidCollision) State() contact.RunState { return b.tracker.State() }

func (b *AvoidCollision) OnActivate() { b.tracker.Activate() }

func (b *AvoidCollision) OnDeactivate() { b.tracker.Deactivate() }

// Contact returns the configured contact name.
func (b *AvoidCollision) Contact() string { return b.tracker.Config().Name }

// Tracker exposes the contact tracker for inspection.
func (b *AvoidCollision) Tracker() *contact.Tracker { return b.tracker }

// Builder returns the configured objective builder.
func (b *AvoidCollision) Builder() objective.CollisionBuilder { return b.builder }

// Priority returns the configured priority weight.
func (b *AvoidCollision) Priority() float64 { return b.priority }

// OnEvaluate implements Behavior.
func (b *AvoidCollision) OnEvaluate(w world.Reader, now time.Time) (out Output, err error) {
	var rel float64
	defer func() {
		if hint, ok := b.tracker.BearingLineHint(rel); ok && err == nil {
			out.Hints = append(out.Hints, bearingHint(hint))
		}
	}()
	if b.tracker.State() != contact.Running {
		return out, nil
	}
	name := b.tracker.Config().Name
	if name == "" {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: no contact configured", b.name))
		return out, nil
	}

	own, err := world.Ownship(w)
	if err != nil {
		return b.warn(out, err)
	}
	rep := world.ContactReport(w, name)
	if rep.Time == nil {
		// Untimed reports are dated by when they reached the world.
		if age, ok := world.ContactAge(w, name); ok {
			t := timeutil.UnixSeconds(now) - age.Seconds()
			rep.Time = &t
		}
	}
	if _, err := b.tracker.Update(rep, own); err != nil {
		return b.warn(out, err)
	}
	if _, err := b.tracker.Extrapolate(timeutil.UnixSeconds(now)); err != nil {
		if _, ok := contact.IsWarning(err); !ok {
			return Output{}, err
		}
		out.Warnings = append(out.Warnings, err.Error())
	}

	if b.tracker.CheckCompleted() {
		monitoring.Logf("[%s] encounter with %s completed at range %.1f", b.name, name, b.tracker.Range())
		return out, nil
	}
	rel = b.tracker.Relevance()
	if rel <= 0 {
		return out, nil
	}

	builder := b.builder
	if rng := b.tracker.Range(); rng <= builder.MinUtilDist {
		builder.MinUtilDist = rng / 2
	}
	s, err := builder.Build(b.tracker)
	if err != nil {
		if errors.Is(err, objective.ErrNotReady) {
			return b.warn(out, err)
		}
		return Output{}, fmt.Errorf("%s: %w", b.name, err)
	}
	out.Surface = objective.Finish(s, rel, b.priority)
	out.Priority = out.Surface.Weight
	return out, nil
}

func (b *AvoidCollision) warn(out Output, err error) (Output, error) {
	out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", b.name, err))
	return out, nil
}

// SetParam implements config.ParamSetter. A rejected value leaves the
// behavior unchanged.
func (b *AvoidCollision) SetParam(name, value string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	value = strings.TrimSpace(value)
	tc := b.tracker.Config()
	builder := b.builder

	switch name {
	case "contact", "them":
		if value == "" {
			return &config.Error{Param: name, Reason: "empty contact name"}
		}
		tc.Name = value
	case "pwt_inner_dist":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		tc.InnerDist = v
		if tc.OuterDist < v {
			tc.OuterDist = v
		}
	case "pwt_outer_dist":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		tc.OuterDist = v
		if tc.InnerDist > v {
			tc.InnerDist = v
		}
	case "completed_dist":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		tc.CompletedDist = v
	case "min_util_cpa_dist":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		builder.MinUtilDist = v
		if builder.MaxUtilDist < v {
			builder.MaxUtilDist = v
		}
	case "max_util_cpa_dist":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		builder.MaxUtilDist = v
		if builder.MinUtilDist > v {
			builder.MinUtilDist = v
		}
	case "pwt_grade":
		g, err := contact.ParseGrade(value)
		if err != nil {
			return &config.Error{Param: name, Reason: "unknown grade", Err: err}
		}
		tc.Grade = g
	case "time_on_leg":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		if v == 0 {
			return &config.Error{Param: name, Reason: "must be positive"}
		}
		builder.TimeOnLeg = v
	case "collision_depth":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		builder.CollisionDepth = &v
	case "extrapolate":
		v, err := config.ParseBoolParam(name, value)
		if err != nil {
			return err
		}
		tc.Extrapolate = v
	case "decay":
		start, end, err := config.ParseDecay(value)
		if err != nil {
			return err
		}
		tc.DecayStart, tc.DecayEnd = start, end
	case "priority":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		b.priority = v
		return nil
	default:
		return &config.Error{Param: name, Reason: "unknown parameter"}
	}

	b.tracker.SetConfig(tc)
	b.builder = builder
	return nil
}
