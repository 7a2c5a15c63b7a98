// Package objective turns CPA geometry into utility surfaces over the
// helm's decision domain.
package objective

import (
	"errors"
	"fmt"

	"github.com/banshee-data/helm.avoid/internal/cpa"
	"github.com/banshee-data/helm.avoid/internal/nav"
	"github.com/banshee-data/helm.avoid/internal/surface"
)

var (
	// ErrNotReady means own-ship or contact kinematics were not
	// established this cycle.
	ErrNotReady = errors.New("objective: own-ship or contact not established")
	// ErrNoCourseAxis means the domain cannot be evaluated.
	ErrNoCourseAxis = errors.New("objective: domain has no course axis")
)

// Utility range of every surface this package builds.
const (
	MinUtility = 0
	MaxUtility = 100
)

// Source supplies the kinematics a build needs. contact.Tracker
// implements it.
type Source interface {
	Ready() bool
	Ownship() nav.State
	Contact() nav.State
}

// CollisionBuilder scores each (course, speed[, depth]) point by the CPA
// distance it would produce against one contact.
type CollisionBuilder struct {
	Domain      surface.Domain
	MinUtilDist float64 // CPA at or below this scores 0 (metres)
	MaxUtilDist float64 // CPA at or above this scores 100 (metres)
	TimeOnLeg   float64 // Maneuver horizon (seconds)

	// CollisionDepth partitions a depth axis: points shallower than it
	// score 0; deeper points are clear of a surface contact and score
	// 90 plus up to 10 for staying near the surface. Nil disables
	// depth handling.
	CollisionDepth *float64
}

// Metric maps a CPA distance to utility with a clamped linear ramp.
func (b CollisionBuilder) Metric(dist float64) float64 {
	lo, hi := b.MinUtilDist, b.MaxUtilDist
	if dist <= lo {
		return MinUtility
	}
	if dist >= hi {
		return MaxUtility
	}
	return MaxUtility * (dist - lo) / (hi - lo)
}

// depthUtility scores a depth point. maxDepth is the depth axis high
// bound.
func (b CollisionBuilder) depthUtility(depth, maxDepth float64) float64 {
	if depth < *b.CollisionDepth {
		return MinUtility
	}
	bonus := 0.0
	if maxDepth > 0 {
		d := depth
		if d < 0 {
			d = 0
		}
		if d > maxDepth {
			d = maxDepth
		}
		bonus = 10 * (maxDepth - d) / maxDepth
	}
	return 90 + bonus
}

// Build evaluates the domain for src. The returned surface is
// unnormalized with zero weight; see Finish.
func (b CollisionBuilder) Build(src Source) (*surface.Surface, error) {
	if src == nil || !src.Ready() {
		return nil, ErrNotReady
	}
	return b.BuildStates(src.Ownship(), src.Contact())
}

// BuildStates evaluates the domain for explicit own-ship and contact
// states. A fresh CPA engine is built on every call.
func (b CollisionBuilder) BuildStates(ownship, contact nav.State) (*surface.Surface, error) {
	if !ownship.Valid() || !contact.Valid() {
		return nil, ErrNotReady
	}
	crsIx, ok := b.Domain.AxisIndex(surface.Course)
	if !ok {
		return nil, ErrNoCourseAxis
	}
	spdIx, hasSpeed := b.Domain.AxisIndex(surface.Speed)
	depIx, hasDepth := b.Domain.AxisIndex(surface.Depth)
	hasDepth = hasDepth && b.CollisionDepth != nil
	var maxDepth float64
	if hasDepth {
		ax, _ := b.Domain.Axis(surface.Depth)
		maxDepth = ax.High
	}
	if b.MaxUtilDist < b.MinUtilDist {
		return nil, fmt.Errorf("objective: min_util_cpa_dist %g exceeds max_util_cpa_dist %g", b.MinUtilDist, b.MaxUtilDist)
	}

	engine := cpa.NewEngine(contact, ownship)
	s := surface.New(b.Domain)
	s.Fill(func(c []float64) float64 {
		if hasDepth {
			return b.depthUtility(c[depIx], maxDepth)
		}
		spd := ownship.Speed
		if hasSpeed {
			spd = c[spdIx]
		}
		dist, _ := engine.EvaluateCPA(c[crsIx], spd, b.TimeOnLeg)
		return b.Metric(dist)
	})
	return s, nil
}

// Finish normalizes s into the global utility range and applies the
// relevance × priority weight.
func Finish(s *surface.Surface, relevance, priority float64) *surface.Surface {
	s.Normalize(MinUtility, MaxUtility)
	s.Weight = relevance * priority
	return s
}
