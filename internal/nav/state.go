// Package nav holds the kinematic state shared by own-ship and contacts.
package nav

import (
	"fmt"
	"math"

	"github.com/banshee-data/helm.avoid/internal/geom"
)

// State is a kinematic snapshot of one vessel.
//
// Time is seconds since the Unix epoch (fractional); zero means the source
// did not supply a timestamp. Depth is metres below the surface and is
// only meaningful for underwater vehicles.
type State struct {
	Name    string
	X       float64
	Y       float64
	Heading float64
	Speed   float64
	Depth   float64
	Time    float64
}

// Pos returns the position as a geom.Point.
func (s State) Pos() geom.Point { return geom.Point{X: s.X, Y: s.Y} }

// Normalized returns a copy with heading in [0,360) and non-negative speed.
func (s State) Normalized() State {
	s.Heading = geom.Angle360(s.Heading)
	if s.Speed < 0 || math.IsNaN(s.Speed) {
		s.Speed = 0
	}
	return s
}

// Valid reports whether every kinematic field is finite.
func (s State) Valid() bool {
	for _, v := range []float64{s.X, s.Y, s.Heading, s.Speed, s.Depth} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Range returns the distance between two states.
func Range(a, b State) float64 { return geom.Dist(a.Pos(), b.Pos()) }

// Advance returns the state after moving dt seconds along its heading at
// constant speed.
func (s State) Advance(dt float64) State {
	p := geom.ProjectPoint(s.Pos(), s.Heading, s.Speed*dt)
	s.X, s.Y = p.X, p.Y
	if s.Time != 0 {
		s.Time += dt
	}
	return s
}

func (s State) String() string {
	return fmt.Sprintf("%s x=%.1f y=%.1f hdg=%.1f spd=%.2f", s.Name, s.X, s.Y, s.Heading, s.Speed)
}
