package contact

import (
	"fmt"

	"github.com/banshee-data/helm.avoid/internal/geom"
	"github.com/banshee-data/helm.avoid/internal/nav"
)

// Extrapolator projects a stale contact report forward in time.
//
// For the first DecayStart seconds after the report the contact is assumed
// to hold course and speed. Between DecayStart and DecayEnd the assumed
// speed falls linearly to zero. Past DecayEnd the report is too old to
// project and the last known position is kept.
type Extrapolator struct {
	DecayStart float64 // seconds of full-speed projection
	DecayEnd   float64 // seconds after which projection stops
}

// Distance returns how far the model moves a contact of the given speed in
// elapsed seconds. ok is false when elapsed is negative or beyond
// DecayEnd.
func (x Extrapolator) Distance(speed, elapsed float64) (dist float64, ok bool) {
	if elapsed < 0 {
		return 0, false
	}
	if elapsed <= x.DecayStart {
		return speed * elapsed, true
	}
	if elapsed > x.DecayEnd {
		return 0, false
	}
	window := x.DecayEnd - x.DecayStart
	full := speed * x.DecayStart
	if window <= 0 {
		return full, true
	}
	// Area under a speed that ramps from speed at DecayStart to zero at
	// DecayEnd.
	dt := elapsed - x.DecayStart
	return full + speed*dt - speed*dt*dt/(2*window), true
}

// Extrapolate projects last to time now (seconds, same clock as
// last.Time). On failure it returns last unchanged together with an
// Extrapolation warning wrapping ErrExtrapolationWindow.
func (x Extrapolator) Extrapolate(last nav.State, now float64) (nav.State, error) {
	elapsed := now - last.Time
	dist, ok := x.Distance(last.Speed, elapsed)
	if !ok {
		return last, &Warning{
			Kind:    Extrapolation,
			Contact: last.Name,
			Err:     fmt.Errorf("%w: elapsed %.1fs, window [0,%.1f]", ErrExtrapolationWindow, elapsed, x.DecayEnd),
		}
	}
	p := geom.ProjectPoint(last.Pos(), last.Heading, dist)
	out := last
	out.X, out.Y = p.X, p.Y
	out.Time = now
	return out, nil
}
