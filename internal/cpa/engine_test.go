package cpa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/helm.avoid/internal/geom"
	"github.com/banshee-data/helm.avoid/internal/nav"
)

func vessel(x, y, hdg, spd float64) nav.State {
	return nav.State{X: x, Y: y, Heading: hdg, Speed: spd}
}

// rotated turns a state about the origin by deg, keeping its geometry
// relative to everything else rotated the same way.
func rotated(s nav.State, deg float64) nav.State {
	o := geom.Pt(0, 0)
	p := s.Pos()
	if d := geom.Dist(o, p); d > 0 {
		p = geom.ProjectPoint(o, geom.RelAng(o, p)+deg, d)
	}
	s.X, s.Y = p.X, p.Y
	s.Heading = geom.Angle360(s.Heading + deg)
	return s
}

// headOn is own-ship at the origin heading north at 2 m/s with the contact
// 100m dead ahead heading south at 2 m/s.
func headOn() *Engine {
	return NewEngine(vessel(0, 100, 180, 2), vessel(0, 0, 0, 2))
}

// ---------------------------------------------------------------------------
// EvaluateCPA
// ---------------------------------------------------------------------------

func TestEvaluateCPAHeadOn(t *testing.T) {
	t.Parallel()
	e := headOn()

	dist, roc := e.EvaluateCPA(0, 2, 60)
	assert.InDelta(t, 0.0, dist, 1e-6)
	assert.InDelta(t, 4.0, roc, 1e-9)

	// The meeting happens at t=25s; a shorter leg stops short of it.
	dist, _ = e.EvaluateCPA(0, 2, 10)
	assert.InDelta(t, 60.0, dist, 1e-6)

	assert.InDelta(t, 0.0, e.RangeAt(0, 2, 25), 1e-6)
	assert.InDelta(t, 100.0, e.RangeAt(0, 2, 0), 1e-9)
}

func TestEvaluateCPAMatchingMotion(t *testing.T) {
	t.Parallel()
	contact := vessel(50, 30, 45, 3)
	e := NewEngine(contact, vessel(0, 0, 10, 1))
	want := math.Hypot(50, 30)

	for _, h := range []float64{45, 405, -315} {
		dist, roc := e.EvaluateCPA(h, 3, 60)
		assert.InDelta(t, want, dist, 1e-9, "heading %v", h)
		assert.Zero(t, roc)
		assert.False(t, math.IsNaN(dist))
	}

	// Both vessels stopped.
	e = NewEngine(vessel(50, 30, 45, 0), vessel(0, 0, 10, 0))
	dist, roc := e.EvaluateCPA(200, 0, 60)
	assert.InDelta(t, want, dist, 1e-9)
	assert.Zero(t, roc)
}

func TestEvaluateCPAOpening(t *testing.T) {
	t.Parallel()
	e := headOn()
	// Running away faster than the contact approaches: range grows from
	// now on, so the present separation is the CPA.
	dist, roc := e.EvaluateCPA(180, 5, 120)
	assert.InDelta(t, 100.0, dist, 1e-9)
	assert.InDelta(t, -3.0, roc, 1e-9)

	dist, _ = e.EvaluateCPA(0, 2, 0)
	assert.InDelta(t, 100.0, dist, 1e-9, "zero time on leg")
}

func TestEvaluateCPAMonotoneInTimeOnLeg(t *testing.T) {
	t.Parallel()
	e := NewEngine(vessel(300, 200, 250, 3), vessel(0, 0, 30, 2.5))

	prev := math.Inf(1)
	var atMin float64
	for tol := 0.0; tol <= 400; tol += 2 {
		dist, _ := e.EvaluateCPA(60, 2.5, tol)
		require.LessOrEqual(t, dist, prev+1e-9, "time on leg %v", tol)
		prev = dist
		if tol == 300 {
			atMin = dist
		}
	}
	// Past the unconstrained minimum the answer no longer changes.
	dist, _ := e.EvaluateCPA(60, 2.5, 10000)
	assert.InDelta(t, atMin, dist, 1e-9)
}

func TestEvaluateCPAAxisHeadingsAgree(t *testing.T) {
	t.Parallel()
	cn := vessel(40, 120, 200, 1.5)
	os := vessel(0, 0, 0, 2)
	base := NewEngine(cn, os)
	for _, rot := range []float64{90, 180, 270, 33.3} {
		e := NewEngine(rotated(cn, rot), rotated(os, rot))
		for _, h := range []float64{0, 45, 90, 180, 270} {
			want, wantROC := base.EvaluateCPA(h, 2, 90)
			got, gotROC := e.EvaluateCPA(h+rot, 2, 90)
			assert.InDelta(t, want, got, 1e-6, "rot %v heading %v", rot, h)
			assert.InDelta(t, wantROC, gotROC, 1e-6, "rot %v heading %v", rot, h)
		}
	}
}

func TestResetBumpsGeneration(t *testing.T) {
	t.Parallel()
	e := headOn()
	g := e.Generation()
	e.Reset(vessel(0, 200, 180, 2), vessel(0, 0, 0, 2))
	assert.Equal(t, g+1, e.Generation())
	assert.InDelta(t, 200.0, e.Range(), 1e-9)
	dist, _ := e.EvaluateCPA(0, 2, 30)
	assert.InDelta(t, 80.0, dist, 1e-6)
}

func TestMinMaxROC(t *testing.T) {
	t.Parallel()
	minROC, maxROC, maxHeading := headOn().MinMaxROC(2, 360)
	assert.InDelta(t, 4.0, maxROC, 1e-9)
	assert.InDelta(t, 0.0, maxHeading, 1e-9)
	assert.InDelta(t, 0.0, minROC, 1e-9)
}

func TestClosingSpeed(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 4.0, ClosingSpeed(vessel(0, 0, 0, 2), vessel(0, 100, 180, 2)), 1e-9)
	assert.InDelta(t, 0.0, ClosingSpeed(vessel(0, 0, 0, 2), vessel(50, 0, 0, 2)), 1e-9)
	// Contact crossing ahead left to right: only the along-line part counts.
	assert.InDelta(t, 2.0, ClosingSpeed(vessel(0, 0, 0, 2), vessel(0, 100, 90, 5)), 1e-9)
	assert.Zero(t, ClosingSpeed(vessel(0, 0, 0, 2), vessel(0, 0, 90, 1)))
}
