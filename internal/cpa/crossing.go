package cpa

import (
	"github.com/banshee-data/helm.avoid/internal/geom"
)

// crossing describes where a candidate own-ship track meets the contact's
// bow-stern line.
type crossing struct {
	point     geom.Point
	osTime    float64 // seconds until own-ship reaches the point
	cnDist    float64 // contact's present distance to the point
	cnFore    bool    // point lies ahead of the contact
	cnStopped bool
}

// crossPoint intersects the candidate own-ship ray with the contact's
// bow-stern line. The point must lie within crossingCone of own-ship's
// heading.
func (e *Engine) crossPoint(osh, osv float64) (crossing, bool) {
	if osv <= 0 {
		return crossing{}, false
	}
	osh = geom.Angle360(osh)
	osFar := geom.ProjectPoint(e.osPos, osh, 100)
	x, ok := geom.LinesCross(e.osPos, osFar, e.cnLine1, e.cnLine2)
	if !ok {
		return crossing{}, false
	}

	osDist := geom.Dist(e.osPos, x)
	if osDist <= geom.Epsilon {
		// Own-ship already sits on the line; callers handle that case.
		return crossing{}, false
	}
	if geom.AngleDiff(osh, geom.RelAng(e.osPos, x)) > crossingCone {
		return crossing{}, false
	}

	c := crossing{
		point:     x,
		osTime:    osDist / osv,
		cnDist:    geom.Dist(e.cnPos, x),
		cnStopped: e.cn.Speed <= 0,
	}
	c.cnFore = c.cnDist <= geom.Epsilon ||
		geom.AngleDiff(e.cn.Heading, geom.RelAng(e.cnPos, x)) < crossingCone
	return c, true
}

// CrossesBow reports whether own-ship on course osh at speed osv crosses
// the contact's bow line ahead of the contact, and the contact's distance
// from the crossing point at the moment own-ship reaches it.
//
// A stationary contact has no bow or stern: any crossing of its line
// counts, and dist is the contact's distance to the crossing point.
func (e *Engine) CrossesBow(osh, osv float64) (dist float64, ok bool) {
	if e.osOnContact {
		return 0, true
	}
	if e.osOnBowline {
		return e.rng, true
	}
	c, ok := e.crossPoint(osh, osv)
	if !ok {
		return 0, false
	}
	if c.cnStopped {
		return c.cnDist, true
	}

	cnTime := c.cnDist / e.cn.Speed
	// The contact is past the point already, or gets there first.
	if !c.cnFore || cnTime < c.osTime {
		return 0, false
	}
	return c.cnDist - c.osTime*e.cn.Speed, true
}

// CrossesStern reports whether own-ship on course osh at speed osv crosses
// the contact's line behind the contact, and how far behind the contact
// own-ship is when it does so.
func (e *Engine) CrossesStern(osh, osv float64) (dist float64, ok bool) {
	if e.osOnContact {
		return 0, true
	}
	if e.osOnSternline {
		return e.rng, true
	}
	c, ok := e.crossPoint(osh, osv)
	if !ok {
		return 0, false
	}
	if c.cnStopped {
		return c.cnDist, true
	}

	cnTime := c.cnDist / e.cn.Speed
	// Own-ship reaches a point ahead of the contact first: bow crossing.
	if c.cnFore && c.osTime < cnTime {
		return 0, false
	}
	travelled := c.osTime * e.cn.Speed
	if c.cnFore {
		return travelled - c.cnDist, true
	}
	return c.cnDist + travelled, true
}

// CrossesBowOrStern reports whether the candidate crosses the contact's
// bow-stern line at all.
func (e *Engine) CrossesBowOrStern(osh, osv float64) bool {
	if e.osOnContact || e.osOnBowline || e.osOnSternline {
		return true
	}
	_, ok := e.crossPoint(osh, osv)
	return ok
}

// CrossesLines reports whether own-ship's track line for heading osh and
// the contact's bow-stern line meet at all, including the collinear case.
func (e *Engine) CrossesLines(osh float64) bool {
	if !geom.SameAngle(osh, e.cn.Heading) && !geom.SameAngle(osh, e.cn.Heading+180) {
		return true
	}
	if e.osOnContact {
		return true
	}
	bng := geom.RelAng(e.osPos, e.cnPos)
	return geom.SameAngle(bng, osh) || geom.SameAngle(bng, osh+180)
}

// TurnsRight reports whether moving from present to heading is a turn to
// starboard.
func TurnsRight(present, heading float64) bool {
	d := geom.Angle360(heading - present)
	return d > 0 && d < 180
}

// TurnsLeft reports whether moving from present to heading is a turn to
// port.
func TurnsLeft(present, heading float64) bool {
	return geom.Angle360(heading-present) > 180
}
