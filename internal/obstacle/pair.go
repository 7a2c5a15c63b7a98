package obstacle

import (
	"github.com/banshee-data/helm.avoid/internal/geom"
)

// shrinkSteps is the number of growth fractions tried when own-ship sits
// inside the full buffer.
const shrinkSteps = 100

// Pair is an obstacle as reported together with the buffered polygon used
// for avoidance.
type Pair struct {
	Key       string
	Original  geom.Polygon
	Buffered  geom.Polygon
	Pertinent bool

	// Shrunk is set when the buffer was reduced so own-ship sits outside it.
	Shrunk bool
	// InOriginal is set when own-ship is inside the reported polygon itself.
	InOriginal bool
	// InBuffer is set when own-ship was inside the full-size buffer.
	InBuffer bool
}

// buildPair derives the buffered polygon and pertinence for own-ship at os
// with the given heading. It never returns a pertinent pair whose
// Buffered polygon contains os.
func buildPair(key string, orig geom.Polygon, os geom.Point, heading float64, cfg Config) Pair {
	full := orig
	if cfg.BufferDist > 0 {
		full = orig.Grow(cfg.BufferDist)
	}
	p := Pair{Key: key, Original: orig, Buffered: full, Pertinent: true}

	if full.Aft(os, heading, cfg.AbaftAngle) {
		p.Pertinent = false
	}
	if full.Dist(os) > cfg.ActivationDist {
		p.Pertinent = false
	}

	p.InOriginal = orig.Contains(os)
	p.InBuffer = full.Contains(os)
	switch {
	case p.InOriginal:
		// Nothing sensible to avoid from inside; drop it.
		p.Buffered = orig
		p.Pertinent = false
	case p.InBuffer:
		p.Buffered = shrinkBack(orig, os, cfg.BufferDist)
		p.Shrunk = true
	}
	return p
}

// shrinkBack returns the largest buffer, in steps of buffer/shrinkSteps,
// that leaves os outside. orig must not contain os; it is the fallback
// when every positive step does.
func shrinkBack(orig geom.Polygon, os geom.Point, buffer float64) geom.Polygon {
	grow := func(j int) geom.Polygon {
		if j == 0 {
			return orig
		}
		return orig.Grow(float64(j) / shrinkSteps * buffer)
	}
	// lo never contains os, hi always does.
	lo, hi := 0, shrinkSteps
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if grow(mid).Contains(os) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return grow(lo)
}

// portSide reports whether pt lies to port of a vessel at os pointing
// along heading. Dead ahead and dead astern count as starboard.
func portSide(os geom.Point, heading float64, pt geom.Point) bool {
	return geom.RelBearing(os, heading, pt) > 180
}
