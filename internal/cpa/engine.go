// Package cpa computes closest-point-of-approach and crossing geometry
// between own-ship and a single contact.
//
// Squared separation under constant velocities is a quadratic in elapsed
// time, k2*t^2 + k1*t + k0. The contact-only parts of the coefficients are
// computed once per Engine (the snapshot) and each candidate own-ship
// course/speed adds its own terms.
package cpa

import (
	"math"

	"github.com/banshee-data/helm.avoid/internal/geom"
	"github.com/banshee-data/helm.avoid/internal/nav"
)

// crossingCone is the half-angle (degrees) within which the bow-stern line
// crossing point must lie ahead of own-ship, and ahead of the contact for
// it to count as "fore of contact".
const crossingCone = 10.0

// speedTolerance is the tolerance (m/s) for treating two speeds as equal.
const speedTolerance = 1e-9

// Engine is a CPA snapshot for one own-ship/contact pair. It is immutable
// between calls to Reset and safe for concurrent reads.
type Engine struct {
	os nav.State
	cn nav.State

	osPos geom.Point
	cnPos geom.Point

	cosCN float64
	sinCN float64

	statK2 float64
	statK1 float64
	statK0 float64

	// Contact bow-stern line, as two points on it.
	cnLine1 geom.Point
	cnLine2 geom.Point

	rng           float64
	osOnContact   bool
	osOnBowline   bool
	osOnSternline bool

	generation uint64
}

// NewEngine builds a snapshot for the given contact and own-ship states.
func NewEngine(contact, ownship nav.State) *Engine {
	e := &Engine{}
	e.Reset(contact, ownship)
	return e
}

// Reset recomputes the snapshot for new kinematics and bumps the
// generation. Every change in contact or own-ship position, heading or
// speed must go through Reset before the next evaluation.
func (e *Engine) Reset(contact, ownship nav.State) {
	cn := contact.Normalized()
	os := ownship.Normalized()

	e.cn, e.os = cn, os
	e.cnPos, e.osPos = cn.Pos(), os.Pos()

	rad := geom.Radians(cn.Heading)
	e.cosCN = math.Cos(rad)
	e.sinCN = math.Sin(rad)

	e.statK2 = cn.Speed * cn.Speed
	e.statK1 = -2*os.Y*e.cosCN*cn.Speed -
		2*os.X*e.sinCN*cn.Speed +
		2*cn.Y*e.cosCN*cn.Speed +
		2*cn.X*e.sinCN*cn.Speed
	dy := os.Y - cn.Y
	dx := os.X - cn.X
	e.statK0 = dy*dy + dx*dx

	e.cnLine1 = e.cnPos
	e.cnLine2 = geom.ProjectPoint(e.cnPos, cn.Heading, 100)

	e.rng = geom.Dist(e.osPos, e.cnPos)
	e.osOnContact = e.osPos.Equal(e.cnPos)
	e.osOnBowline, e.osOnSternline = false, false
	if !e.osOnContact {
		bng := geom.RelAng(e.cnPos, e.osPos)
		switch {
		case geom.SameAngle(bng, cn.Heading):
			e.osOnBowline = true
		case geom.SameAngle(bng, cn.Heading+180):
			e.osOnSternline = true
		}
	}

	e.generation++
}

// Generation counts how many times the snapshot has been computed.
func (e *Engine) Generation() uint64 { return e.generation }

// Contact returns the normalised contact state.
func (e *Engine) Contact() nav.State { return e.cn }

// Ownship returns the normalised own-ship state.
func (e *Engine) Ownship() nav.State { return e.os }

// Range returns the present own-ship/contact separation.
func (e *Engine) Range() float64 { return e.rng }

// coefficients returns the full quadratic for a candidate maneuver.
func (e *Engine) coefficients(osh, osv float64) (k2, k1, k0 float64) {
	rad := geom.Radians(geom.Angle360(osh))
	cosOS, sinOS := math.Cos(rad), math.Sin(rad)
	cnv := e.cn.Speed

	k2 = e.statK2 +
		osv*osv -
		2*cosOS*osv*e.cosCN*cnv -
		2*sinOS*osv*e.sinCN*cnv
	k1 = e.statK1 +
		2*cosOS*osv*e.os.Y +
		2*sinOS*osv*e.os.X -
		2*cosOS*osv*e.cn.Y -
		2*sinOS*osv*e.cn.X
	return k2, k1, e.statK0
}

// sameMotion reports whether the candidate matches the contact's motion,
// in which case the separation never changes.
func (e *Engine) sameMotion(osh, osv float64) bool {
	if math.Abs(osv-e.cn.Speed) > speedTolerance {
		return false
	}
	return osv == 0 || geom.SameAngle(osh, e.cn.Heading)
}

// EvaluateCPA returns the smallest separation reachable within
// [0, timeOnLeg] if own-ship holds course osh at speed osv, and the
// initial rate of closure (m/s, positive when closing).
//
// When the candidate matches the contact's course and speed the
// separation is constant: the present range is returned with zero closure.
func (e *Engine) EvaluateCPA(osh, osv, timeOnLeg float64) (dist, roc float64) {
	if e.sameMotion(osh, osv) {
		return e.rng, 0
	}
	k2, k1, k0 := e.coefficients(osh, osv)
	roc = e.closure(k1)

	// Relative velocity is effectively zero.
	if k2 <= speedTolerance*speedTolerance {
		return e.rng, roc
	}

	minT := -k1 / (2 * k2)
	if minT <= 0 || timeOnLeg <= 0 {
		return math.Sqrt(k0), roc
	}
	if minT > timeOnLeg {
		minT = timeOnLeg
	}
	d2 := k2*minT*minT + k1*minT + k0
	if d2 < 0 {
		return 0, roc
	}
	return math.Sqrt(d2), roc
}

// EvaluateROC returns only the initial rate of closure for a candidate.
func (e *Engine) EvaluateROC(osh, osv float64) float64 {
	if e.sameMotion(osh, osv) {
		return 0
	}
	_, k1, _ := e.coefficients(osh, osv)
	return e.closure(k1)
}

// closure converts the linear coefficient d(r^2)/dt into dr/dt, negated.
func (e *Engine) closure(k1 float64) float64 {
	if e.rng <= geom.Epsilon {
		return 0
	}
	return -k1 / (2 * e.rng)
}

// RangeAt returns the separation t seconds from now for a candidate.
func (e *Engine) RangeAt(osh, osv, t float64) float64 {
	if t <= 0 || e.sameMotion(osh, osv) {
		return e.rng
	}
	k2, k1, k0 := e.coefficients(osh, osv)
	d2 := k2*t*t + k1*t + k0
	if d2 < 0 {
		return 0
	}
	return math.Sqrt(d2)
}

// MinMaxROC samples headingClicks evenly spaced headings at the given
// speed and returns the smallest and largest rates of closure together
// with the heading producing the largest.
func (e *Engine) MinMaxROC(speed float64, headingClicks int) (minROC, maxROC, maxHeading float64) {
	if headingClicks <= 0 {
		headingClicks = 360
	}
	delta := 360.0 / float64(headingClicks)
	for i := 0; i < headingClicks; i++ {
		h := float64(i) * delta
		r := e.EvaluateROC(h, speed)
		if i == 0 || r > maxROC {
			maxROC, maxHeading = r, h
		}
		if i == 0 || r < minROC {
			minROC = r
		}
	}
	return minROC, maxROC, maxHeading
}

// ClosingSpeed returns the present rate at which two vessels close on
// each other along the line between them (m/s, negative when opening).
func ClosingSpeed(ownship, contact nav.State) float64 {
	ovx, ovy := geom.Velocity(ownship.Heading, ownship.Speed)
	cvx, cvy := geom.Velocity(contact.Heading, contact.Speed)
	h, spd := geom.HeadingOf(ovx-cvx, ovy-cvy)
	if spd == 0 || ownship.Pos().Equal(contact.Pos()) {
		return 0
	}
	return geom.SpeedInHeading(h, spd, geom.RelAng(ownship.Pos(), contact.Pos()))
}
