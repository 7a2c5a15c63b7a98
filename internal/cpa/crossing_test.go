package cpa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// Bow and stern crossings
// ---------------------------------------------------------------------------

// The contact sits at the origin heading north at 1 m/s in all of these.
func TestCrossings(t *testing.T) {
	t.Parallel()
	contact := vessel(0, 0, 0, 1)

	cases := []struct {
		name       string
		osX, osY   float64
		osh, osv   float64
		bow        bool
		bowDist    float64
		stern      bool
		sternDist  float64
		bowOrStern bool
	}{
		{
			name: "fast own-ship crosses ahead",
			osX:  100, osY: 50, osh: 270, osv: 5,
			bow: true, bowDist: 30, bowOrStern: true,
		},
		{
			name: "slow own-ship crosses behind, point ahead of contact",
			osX:  100, osY: 50, osh: 270, osv: 1,
			stern: true, sternDist: 50, bowOrStern: true,
		},
		{
			name: "crossing point already astern of contact",
			osX:  100, osY: -50, osh: 270, osv: 5,
			stern: true, sternDist: 70, bowOrStern: true,
		},
		{
			name: "own-ship heading away from the line",
			osX:  100, osY: 50, osh: 90, osv: 5,
		},
		{
			name: "crossing point behind own-ship",
			osX:  100, osY: 50, osh: 20, osv: 5,
		},
		{
			name: "stopped own-ship never crosses",
			osX:  100, osY: 50, osh: 270, osv: 0,
		},
		{
			name: "parallel track",
			osX:  100, osY: 50, osh: 0, osv: 5,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := NewEngine(contact, vessel(tc.osX, tc.osY, tc.osh, tc.osv))

			d, ok := e.CrossesBow(tc.osh, tc.osv)
			assert.Equal(t, tc.bow, ok, "bow")
			if tc.bow {
				assert.InDelta(t, tc.bowDist, d, 1e-6)
			}

			d, ok = e.CrossesStern(tc.osh, tc.osv)
			assert.Equal(t, tc.stern, ok, "stern")
			if tc.stern {
				assert.InDelta(t, tc.sternDist, d, 1e-6)
			}

			assert.Equal(t, tc.bowOrStern, e.CrossesBowOrStern(tc.osh, tc.osv))
		})
	}
}

func TestCrossingsAxisHeadingsAgree(t *testing.T) {
	t.Parallel()
	cn := vessel(0, 0, 0, 1)
	os := vessel(100, 50, 270, 5)
	for _, rot := range []float64{0, 90, 180, 270, 17} {
		e := NewEngine(rotated(cn, rot), rotated(os, rot))
		d, ok := e.CrossesBow(270+rot, 5)
		assert.True(t, ok, "rot %v", rot)
		assert.InDelta(t, 30.0, d, 1e-6, "rot %v", rot)
		_, ok = e.CrossesStern(270+rot, 5)
		assert.False(t, ok, "rot %v", rot)
	}
}

func TestCrossingSpecialCases(t *testing.T) {
	t.Parallel()

	t.Run("own-ship on the contact", func(t *testing.T) {
		e := NewEngine(vessel(10, 10, 0, 1), vessel(10, 10, 90, 2))
		d, ok := e.CrossesBow(90, 2)
		assert.True(t, ok)
		assert.Zero(t, d)
		d, ok = e.CrossesStern(90, 0)
		assert.True(t, ok)
		assert.Zero(t, d)
	})

	t.Run("own-ship on the bow line", func(t *testing.T) {
		e := NewEngine(vessel(0, 0, 0, 1), vessel(0, 100, 90, 2))
		d, ok := e.CrossesBow(90, 2)
		assert.True(t, ok)
		assert.InDelta(t, 100.0, d, 1e-9)
		_, ok = e.CrossesStern(90, 2)
		assert.False(t, ok)
		assert.True(t, e.CrossesBowOrStern(90, 0))
	})

	t.Run("own-ship on the stern line", func(t *testing.T) {
		e := NewEngine(vessel(0, 0, 90, 1), vessel(-40, 0, 0, 2))
		d, ok := e.CrossesStern(0, 2)
		assert.True(t, ok)
		assert.InDelta(t, 40.0, d, 1e-9)
		_, ok = e.CrossesBow(0, 2)
		assert.False(t, ok)
	})

	t.Run("stationary contact has no bow or stern", func(t *testing.T) {
		e := NewEngine(vessel(0, 0, 0, 0), vessel(100, 50, 270, 5))
		d, ok := e.CrossesBow(270, 5)
		assert.True(t, ok)
		assert.InDelta(t, 50.0, d, 1e-6)
		d, ok = e.CrossesStern(270, 5)
		assert.True(t, ok)
		assert.InDelta(t, 50.0, d, 1e-6)
	})
}

func TestCrossesLines(t *testing.T) {
	t.Parallel()
	e := NewEngine(vessel(0, 0, 0, 1), vessel(100, 50, 270, 5))
	assert.True(t, e.CrossesLines(270))
	assert.False(t, e.CrossesLines(0), "parallel and offset")
	assert.False(t, e.CrossesLines(180), "anti-parallel and offset")

	e = NewEngine(vessel(0, 0, 0, 1), vessel(0, -50, 0, 5))
	assert.True(t, e.CrossesLines(0), "collinear")
	assert.True(t, e.CrossesLines(180), "collinear, reversed")
}

func TestTurns(t *testing.T) {
	t.Parallel()
	assert.True(t, TurnsRight(350, 10))
	assert.False(t, TurnsLeft(350, 10))
	assert.True(t, TurnsLeft(10, 350))
	assert.False(t, TurnsRight(10, 10))
	assert.False(t, TurnsLeft(10, 10))
	assert.False(t, TurnsRight(0, 180))
	assert.False(t, TurnsLeft(0, 180))
}
