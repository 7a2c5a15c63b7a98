// Package obstacle keeps the obstacle polygons near own-ship, their safety
// buffers and the per-heading distance cache used to score maneuvers
// against them.
package obstacle

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/helm.avoid/internal/config"
	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/geom"
	"github.com/banshee-data/helm.avoid/internal/nav"
	"github.com/banshee-data/helm.avoid/internal/surface"
)

// Utility bounds of Evaluate.
const (
	MinUtility = 0
	MaxUtility = 100
)

// ErrNotRefreshed is returned by Build before the first Refresh.
var ErrNotRefreshed = errors.New("obstacle: set not refreshed for own-ship")

// Config holds the obstacle avoidance parameters.
type Config struct {
	BufferDist     float64 // Outward growth of each polygon (metres)
	ActivationDist float64 // Buffered obstacles farther than this are ignored (metres)
	AllowableTTC   float64 // Time to collision below which a heading is blocked (seconds)
	AbaftAngle     float64 // Degrees abaft the beam an obstacle must lie to count as behind
}

// DefaultConfig returns the built-in obstacle parameters.
func DefaultConfig() Config {
	return Config{BufferDist: 10, ActivationDist: 200, AllowableTTC: 20}
}

// ConfigFromTuning builds a Config from the obstacle section of a loaded
// TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	o := cfg.GetObstacle()
	return Config{
		BufferDist:     o.GetBufferDist(),
		ActivationDist: o.GetActivationDist(),
		AllowableTTC:   o.GetAllowableTTC(),
	}
}

// Validate rejects configurations Refresh cannot work with.
func (c Config) Validate() error {
	switch {
	case c.BufferDist < 0:
		return &config.Error{Param: "buffer_dist", Reason: fmt.Sprintf("must be non-negative, got %g", c.BufferDist)}
	case c.ActivationDist <= 0:
		return &config.Error{Param: "activation_dist", Reason: fmt.Sprintf("must be positive, got %g", c.ActivationDist)}
	case c.AllowableTTC <= 0:
		return &config.Error{Param: "allowable_ttc", Reason: fmt.Sprintf("must be positive, got %g", c.AllowableTTC)}
	}
	return nil
}

// SingleKey is the key SetObstacle stores its polygon under.
const SingleKey = "obstacle"

type rayHit struct {
	dist float64
	ok   bool
}

// cacheKey captures every input of the per-heading cache.
type cacheKey struct {
	generation uint64
	x, y, hdg  float64
}

// Set holds one or more obstacles and their derived state. A Set is owned
// by a single behavior and is not safe for concurrent use.
type Set struct {
	cfg    Config
	domain surface.Domain
	crsIx  int
	spdIx  int
	crsAx  surface.Axis

	originals map[string]geom.Polygon
	pairs     []Pair // sorted by key, rebuilt by Refresh

	generation uint64
	refreshed  bool
	key        cacheKey
	ownship    nav.State
	rays       []rayHit // per course index, min over pertinent buffers
}

// NewSet creates an empty set over a domain with course and speed axes.
func NewSet(cfg Config, domain surface.Domain) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	crsIx, ok := domain.AxisIndex(surface.Course)
	if !ok {
		return nil, fmt.Errorf("obstacle: domain %s has no %s axis", domain, surface.Course)
	}
	spdIx, ok := domain.AxisIndex(surface.Speed)
	if !ok {
		return nil, fmt.Errorf("obstacle: domain %s has no %s axis", domain, surface.Speed)
	}
	crsAx, _ := domain.Axis(surface.Course)
	return &Set{
		cfg:       cfg,
		domain:    domain,
		crsIx:     crsIx,
		spdIx:     spdIx,
		crsAx:     crsAx,
		originals: make(map[string]geom.Polygon),
	}, nil
}

// Config returns the active configuration.
func (s *Set) Config() Config { return s.cfg }

// SetConfig replaces the configuration. An invalid configuration is
// rejected and the previous one kept.
func (s *Set) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg != s.cfg {
		s.cfg = cfg
		s.generation++
	}
	return nil
}

// Generation increments on every change to obstacles or configuration.
func (s *Set) Generation() uint64 { return s.generation }

// Len returns the number of stored obstacles.
func (s *Set) Len() int { return len(s.originals) }

// Keys returns the obstacle keys in sorted order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.originals))
	for k := range s.originals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetObstacle replaces every stored obstacle with poly.
func (s *Set) SetObstacle(poly geom.Polygon) error {
	if err := checkPolygon(poly); err != nil {
		return err
	}
	if len(s.originals) == 1 {
		if cur, ok := s.originals[SingleKey]; ok && samePolygon(cur, poly) {
			return nil
		}
	}
	s.originals = map[string]geom.Polygon{SingleKey: poly}
	s.generation++
	return nil
}

// AddObstacle stores poly under key, replacing any previous polygon with
// that key. Re-adding an identical polygon is a no-op.
func (s *Set) AddObstacle(key string, poly geom.Polygon) error {
	if key == "" {
		return &config.Error{Param: "polygon", Reason: "empty obstacle key"}
	}
	if err := checkPolygon(poly); err != nil {
		return err
	}
	if cur, ok := s.originals[key]; ok && samePolygon(cur, poly) {
		return nil
	}
	s.originals[key] = poly
	s.generation++
	return nil
}

// RemoveObstacle drops key, reporting whether it was present.
func (s *Set) RemoveObstacle(key string) bool {
	if _, ok := s.originals[key]; !ok {
		return false
	}
	delete(s.originals, key)
	s.generation++
	return true
}

func checkPolygon(poly geom.Polygon) error {
	if !poly.IsConvex() {
		return &config.Error{Param: "polygon", Reason: fmt.Sprintf("%s is not a convex polygon", poly)}
	}
	return nil
}

func samePolygon(a, b geom.Polygon) bool {
	if a.Label() != b.Label() || a.Size() != b.Size() {
		return false
	}
	av, bv := a.Vertices(), b.Vertices()
	for i := range av {
		if av[i] != bv[i] {
			return false
		}
	}
	return true
}

// Refresh rebuilds buffers, pertinence and the per-heading cache for
// own-ship. It does nothing when neither own-ship's pose nor the set has
// changed since the previous call.
func (s *Set) Refresh(ownship nav.State) {
	ownship = ownship.Normalized()
	key := cacheKey{generation: s.generation, x: ownship.X, y: ownship.Y, hdg: ownship.Heading}
	if s.refreshed && key == s.key {
		return
	}
	s.key = key
	s.ownship = ownship
	s.refreshed = true

	os := ownship.Pos()
	keys := s.Keys()
	s.pairs = s.pairs[:0]
	for _, k := range keys {
		s.pairs = append(s.pairs, buildPair(k, s.originals[k], os, ownship.Heading, s.cfg))
	}

	s.rays = make([]rayHit, s.crsAx.Points)
	for i := range s.rays {
		s.rays[i] = s.rayDist(s.crsAx.Value(i))
	}
}

// rayDist is the distance along course to the nearest pertinent buffer.
func (s *Set) rayDist(course float64) rayHit {
	var best rayHit
	os := s.ownship.Pos()
	for _, p := range s.pairs {
		if !p.Pertinent {
			continue
		}
		if d, ok := p.Buffered.RayDist(os, course); ok && (!best.ok || d < best.dist) {
			best = rayHit{dist: d, ok: true}
		}
	}
	return best
}

// Pairs returns the derived obstacle pairs from the last Refresh.
func (s *Set) Pairs() []Pair { return append([]Pair(nil), s.pairs...) }

// Pair returns the derived pair for key.
func (s *Set) Pair(key string) (Pair, bool) {
	for _, p := range s.pairs {
		if p.Key == key {
			return p, true
		}
	}
	return Pair{}, false
}

// Pertinent returns how many obstacles take part in evaluation.
func (s *Set) Pertinent() int {
	n := 0
	for _, p := range s.pairs {
		if p.Pertinent {
			n++
		}
	}
	return n
}

// RayDist returns the cached distance along course to the nearest
// pertinent buffered obstacle. ok is false when no obstacle lies on that
// heading.
func (s *Set) RayDist(course float64) (float64, bool) {
	h := s.lookup(course)
	return h.dist, h.ok
}

func (s *Set) lookup(course float64) rayHit {
	if i, ok := s.crsAx.Index(course); ok && s.rays != nil && geom.SameAngle(s.crsAx.Value(i), course) {
		return s.rays[i]
	}
	return s.rayDist(geom.Angle360(course))
}

// ttcUtility blocks a maneuver that reaches an obstacle buffer sooner than
// the allowable time to collision.
func (s *Set) ttcUtility(course, speed float64) float64 {
	h := s.lookup(course)
	if !h.ok || speed <= 0 {
		return MaxUtility
	}
	if h.dist/speed > s.cfg.AllowableTTC {
		return MaxUtility
	}
	return MinUtility
}

// sideUtility blocks a course that would swap the side an obstacle lies
// on relative to the present heading.
func (s *Set) sideUtility(course float64) float64 {
	os := s.ownship.Pos()
	for _, p := range s.pairs {
		if !p.Pertinent {
			continue
		}
		c := p.Original.Centroid()
		if portSide(os, s.ownship.Heading, c) != portSide(os, course, c) {
			return MinUtility
		}
	}
	return MaxUtility
}

// Evaluate scores one candidate maneuver. The time-to-collision and side
// signals carry equal weight. A candidate at rest goes nowhere, so it
// neither closes on an obstacle nor swaps its side: it scores the maximum.
func (s *Set) Evaluate(course, speed float64) float64 {
	if speed <= 0 {
		return MaxUtility
	}
	a := s.ttcUtility(course, speed)
	b := s.sideUtility(course)
	return (2*a + 2*b) / 4
}

// Build evaluates every domain point. The surface is unnormalized with
// zero weight.
func (s *Set) Build() (*surface.Surface, error) {
	if !s.refreshed {
		return nil, ErrNotRefreshed
	}
	out := surface.New(s.domain)
	out.Fill(func(c []float64) float64 {
		return s.Evaluate(c[s.crsIx], c[s.spdIx])
	})
	return out, nil
}

// Relevance grades the nearest pertinent obstacle: 0 when every obstacle
// is behind, out of range or around own-ship.
func (s *Set) Relevance(inner, outer float64, grade contact.Grade) float64 {
	os := s.ownship.Pos()
	best := 0.0
	for _, p := range s.pairs {
		if !p.Pertinent || p.Original.Aft(os, s.ownship.Heading, s.cfg.AbaftAngle) {
			continue
		}
		d := p.Original.Dist(os)
		if d <= 0 {
			continue
		}
		if r := contact.Relevance(d, inner, outer, grade); r > best {
			best = r
		}
	}
	return best
}

// Ownship returns the pose used by the last Refresh.
func (s *Set) Ownship() nav.State { return s.ownship }
