package behavior

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/helm.avoid/internal/config"
	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/geom"
	"github.com/banshee-data/helm.avoid/internal/objective"
	"github.com/banshee-data/helm.avoid/internal/obstacle"
	"github.com/banshee-data/helm.avoid/internal/surface"
	"github.com/banshee-data/helm.avoid/internal/world"
)

// AvoidObstacle steers clear of the obstacle polygons known to the world
// plus an optional fixed polygon set through the "polygon" parameter.
type AvoidObstacle struct {
	name  string
	set   *obstacle.Set
	state contact.RunState

	innerDist     float64
	outerDist     float64
	completedDist float64 // accepted for tuning files; obstacles never complete by range
	grade         contact.Grade
	priority      float64

	fromWorld map[string]bool // set keys mirrored from world OBSTACLE_ entries
	drawn     map[string]bool // buffered polygons with a live view hint
}

// NewAvoidObstacle creates an idle behavior with the built-in defaults.
// domain must have course and speed axes.
func NewAvoidObstacle(name string, domain surface.Domain) (*AvoidObstacle, error) {
	set, err := obstacle.NewSet(obstacle.DefaultConfig(), domain)
	if err != nil {
		return nil, fmt.Errorf("behavior %s: %w", name, err)
	}
	return &AvoidObstacle{
		name:          name,
		set:           set,
		state:         contact.Idle,
		innerDist:     20,
		outerDist:     30,
		completedDist: 75,
		grade:         contact.Linear,
		priority:      100,
		fromWorld:     make(map[string]bool),
		drawn:         make(map[string]bool),
	}, nil
}

// NewAvoidObstacleFromTuning applies the obstacle section of cfg on top of
// the defaults.
func NewAvoidObstacleFromTuning(name string, domain surface.Domain, cfg *config.TuningConfig) (*AvoidObstacle, error) {
	b, err := NewAvoidObstacle(name, domain)
	if err != nil {
		return nil, err
	}
	if err := config.Apply(b, cfg.GetObstacle().Params()); err != nil {
		return nil, fmt.Errorf("behavior %s: %w", name, err)
	}
	return b, nil
}

func (b *AvoidObstacle) Name() string { return b.name }

func (b *AvoidObstacle) State() contact.RunState { return b.state }

// Set exposes the obstacle set for inspection.
func (b *AvoidObstacle) Set() *obstacle.Set { return b.set }

// Priority returns the configured priority weight.
func (b *AvoidObstacle) Priority() float64 { return b.priority }

func (b *AvoidObstacle) OnActivate() {
	if !b.state.IsTerminal() {
		b.state = contact.Running
	}
}

func (b *AvoidObstacle) OnDeactivate() {
	if b.state == contact.Running {
		b.state = contact.ToIdle
	}
}

// OnEvaluate implements Behavior.
func (b *AvoidObstacle) OnEvaluate(w world.Reader, now time.Time) (Output, error) {
	var out Output
	if b.state != contact.Running {
		out.Hints = b.eraseAll()
		if b.state == contact.ToIdle {
			b.state = contact.Idle
		}
		return out, nil
	}

	own, err := world.Ownship(w)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", b.name, err))
		return out, nil
	}
	out.Warnings = append(out.Warnings, b.sync(w)...)
	if b.set.Len() == 0 {
		out.Hints = b.eraseAll()
		return out, nil
	}

	b.set.Refresh(own)
	for _, p := range b.set.Pairs() {
		if p.InOriginal {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: own-ship inside obstacle %s", b.name, p.Key))
			out.Hints = append(out.Hints, Hint{Kind: HintObstacleHit, Label: p.Key, Active: true})
		}
	}

	out.Hints = append(out.Hints, b.viewHints()...)

	rel := b.set.Relevance(b.innerDist, b.outerDist, b.grade)
	if rel <= 0 {
		return out, nil
	}
	s, err := b.set.Build()
	if err != nil {
		return Output{}, fmt.Errorf("%s: %w", b.name, err)
	}
	out.Surface = objective.Finish(s, rel, b.priority)
	out.Priority = out.Surface.Weight
	return out, nil
}

// sync mirrors the world's obstacle entries into the set. Obstacles
// resolved in the world are dropped; the "polygon" parameter entry is
// left alone.
func (b *AvoidObstacle) sync(w world.Reader) []string {
	var warnings []string
	polys, bad := world.Obstacles(w)
	for k, err := range bad {
		warnings = append(warnings, fmt.Sprintf("%s: %s: %v", b.name, k, err))
	}
	for k := range b.fromWorld {
		if _, ok := polys[k]; !ok {
			b.set.RemoveObstacle(k)
			delete(b.fromWorld, k)
		}
	}
	for k, p := range polys {
		if err := b.set.AddObstacle(k, p); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", b.name, err))
			continue
		}
		b.fromWorld[k] = true
	}
	sort.Strings(warnings)
	return warnings
}

func (b *AvoidObstacle) viewHints() []Hint {
	var hints []Hint
	live := make(map[string]bool)
	for _, p := range b.set.Pairs() {
		if !p.Pertinent {
			continue
		}
		label := b.hintLabel(p.Key)
		live[label] = true
		b.drawn[label] = true
		hints = append(hints, Hint{Kind: HintPolygon, Label: label, Spec: p.Buffered.WithLabel(label).String(), Active: true})
	}
	for _, label := range sortedKeys(b.drawn) {
		if !live[label] {
			delete(b.drawn, label)
			hints = append(hints, Hint{Kind: HintPolygon, Label: label})
		}
	}
	return hints
}

func (b *AvoidObstacle) eraseAll() []Hint {
	var hints []Hint
	for _, label := range sortedKeys(b.drawn) {
		hints = append(hints, Hint{Kind: HintPolygon, Label: label})
	}
	clear(b.drawn)
	return hints
}

func (b *AvoidObstacle) hintLabel(key string) string {
	return strings.ToLower(key) + "_buff"
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetParam implements config.ParamSetter. A rejected value leaves the
// behavior unchanged.
func (b *AvoidObstacle) SetParam(name, value string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	value = strings.TrimSpace(value)
	cfg := b.set.Config()

	switch name {
	case "polygon", "poly":
		p, err := geom.ParsePolygon(value)
		if err != nil {
			return &config.Error{Param: name, Reason: "unparseable polygon", Err: err}
		}
		return b.set.AddObstacle(obstacle.SingleKey, p)
	case "pwt_inner_dist":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		b.innerDist = v
		if b.outerDist < v {
			b.outerDist = v
		}
		return nil
	case "pwt_outer_dist":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		b.outerDist = v
		if b.innerDist > v {
			b.innerDist = v
		}
		return nil
	case "completed_dist":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		b.completedDist = v
		return nil
	case "pwt_grade":
		g, err := contact.ParseGrade(value)
		if err != nil {
			return &config.Error{Param: name, Reason: "unknown grade", Err: err}
		}
		b.grade = g
		return nil
	case "priority":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		b.priority = v
		return nil
	case "buffer_dist":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		cfg.BufferDist = v
	case "activation_dist":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		cfg.ActivationDist = v
	case "allowable_ttc":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		cfg.AllowableTTC = v
	case "abaft_angle":
		v, err := config.ParseFloatParam(name, value, true)
		if err != nil {
			return err
		}
		cfg.AbaftAngle = v
	default:
		return &config.Error{Param: name, Reason: "unknown parameter"}
	}
	return b.set.SetConfig(cfg)
}
