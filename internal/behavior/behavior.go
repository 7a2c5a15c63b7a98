// Package behavior holds the avoidance behaviors the helm runs each
// decision cycle. Each behavior reads the world, maintains its own run
// state and contributes at most one weighted utility surface.
package behavior

import (
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/geom"
	"github.com/banshee-data/helm.avoid/internal/surface"
	"github.com/banshee-data/helm.avoid/internal/world"
)

// Behavior is implemented by AvoidCollision and AvoidObstacle.
type Behavior interface {
	Name() string
	OnActivate()
	// OnEvaluate runs one decision cycle. A returned error means the
	// cycle's output must be discarded; recoverable input problems are
	// reported in Output.Warnings instead.
	OnEvaluate(w world.Reader, now time.Time) (Output, error)
	OnDeactivate()
	State() contact.RunState
	SetParam(name, value string) error
}

// Output is a behavior's contribution to one cycle. A nil Surface means
// no contribution.
type Output struct {
	Surface  *surface.Surface
	Priority float64
	Hints    []Hint
	Warnings []string
}

// Hint kinds.
const (
	HintSegList     = "VIEW_SEGLIST"
	HintPolygon     = "VIEW_POLYGON"
	HintObstacleHit = "OBSTACLE_HIT"
)

// Hint is a visualization or notification message. Inactive hints erase
// what an earlier hint with the same label drew.
type Hint struct {
	Kind   string
	Label  string
	Spec   string // pts={...} geometry, empty for erase and notifications
	Active bool
}

func (h Hint) String() string {
	var parts []string
	if h.Spec != "" {
		parts = append(parts, h.Spec)
	} else if h.Label != "" {
		parts = append(parts, "label="+h.Label)
	}
	parts = append(parts, "active="+strconv.FormatBool(h.Active))
	return h.Kind + "=" + strings.Join(parts, ",")
}

func bearingHint(l contact.BearingLine) Hint {
	h := Hint{Kind: HintSegList, Label: l.Label, Active: l.Active}
	if l.Active {
		h.Spec = "pts={" + fmtPoint(l.From) + ":" + fmtPoint(l.To) + "},label=" + l.Label
	}
	return h
}

func fmtPoint(p geom.Point) string {
	return strconv.FormatFloat(p.X, 'f', 1, 64) + "," + strconv.FormatFloat(p.Y, 'f', 1, 64)
}

var (
	_ Behavior = (*AvoidCollision)(nil)
	_ Behavior = (*AvoidObstacle)(nil)
)
