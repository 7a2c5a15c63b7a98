package world

import (
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/geom"
	"github.com/banshee-data/helm.avoid/internal/nav"
)

// Own-ship navigation keys.
const (
	NavX       = "NAV_X"
	NavY       = "NAV_Y"
	NavHeading = "NAV_HEADING"
	NavSpeed   = "NAV_SPEED"
	NavDepth   = "NAV_DEPTH"
)

// Contact key suffixes, prefixed by the upper-cased contact name.
const (
	suffixX       = "_NAV_X"
	suffixY       = "_NAV_Y"
	suffixHeading = "_NAV_HEADING"
	suffixSpeed   = "_NAV_SPEED"
	suffixDepth   = "_NAV_DEPTH"
	suffixTime    = "_NAV_UTC"
	suffixType    = "_NAV_TYPE"
)

// ObstaclePrefix prefixes obstacle polygon entries: OBSTACLE_<LABEL>.
const ObstaclePrefix = "OBSTACLE_"

// ContactKey returns the world key for one field of a contact, e.g.
// ContactKey("alpha", "_NAV_X") is "ALPHA_NAV_X".
func ContactKey(name, suffix string) string {
	return strings.ToUpper(strings.TrimSpace(name)) + suffix
}

// NavKeys reports whether key is one of the own-ship navigation keys.
func NavKeys(key string) bool {
	switch normKey(key) {
	case NavX, NavY, NavHeading, NavSpeed, NavDepth:
		return true
	}
	return false
}

// Ownship reads the own-ship state. X, Y, heading and speed are required;
// a missing depth reads as zero.
func Ownship(r Reader) (nav.State, error) {
	var s nav.State
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{NavX, &s.X}, {NavY, &s.Y}, {NavHeading, &s.Heading}, {NavSpeed, &s.Speed},
	} {
		v, ok := r.GetDouble(f.key)
		if !ok {
			return nav.State{}, &contact.Warning{Kind: contact.MissingField, Contact: "ownship", Field: f.key}
		}
		*f.dst = v
	}
	s.Depth, _ = r.GetDouble(NavDepth)
	s.Name = "ownship"
	if !s.Valid() {
		return nav.State{}, &contact.Warning{Kind: contact.InvalidValue, Contact: "ownship", Field: "NAV"}
	}
	return s.Normalized(), nil
}

// SetOwnship writes every own-ship navigation key under one lock.
func (b *Buffer) SetOwnship(s nav.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	for _, f := range []struct {
		key string
		v   float64
	}{
		{NavX, s.X}, {NavY, s.Y}, {NavHeading, s.Heading}, {NavSpeed, s.Speed}, {NavDepth, s.Depth},
	} {
		b.setLocked(f.key, entry{num: f.v, updated: now})
	}
}

// ApplyReport stores a contact report under <NAME>_NAV_* keys in one
// write. Fields absent from the report are left untouched.
func (b *Buffer) ApplyReport(r contact.NodeReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	set := func(suffix string, v *float64) {
		if v != nil {
			b.setLocked(ContactKey(r.Name, suffix), entry{num: *v, updated: now})
		}
	}
	set(suffixX, r.X)
	set(suffixY, r.Y)
	set(suffixHeading, r.Heading)
	set(suffixSpeed, r.Speed)
	set(suffixDepth, r.Depth)
	set(suffixTime, r.Time)
	if r.Type != "" {
		b.setLocked(ContactKey(r.Name, suffixType), entry{str: r.Type, isStr: true, updated: now})
	}
}

// ContactReport rebuilds the latest report for name from the world.
// Fields never reported are nil.
func ContactReport(r Reader, name string) contact.NodeReport {
	get := func(suffix string) *float64 {
		if v, ok := r.GetDouble(ContactKey(name, suffix)); ok {
			return &v
		}
		return nil
	}
	rep := contact.NodeReport{
		Name:    name,
		X:       get(suffixX),
		Y:       get(suffixY),
		Heading: get(suffixHeading),
		Speed:   get(suffixSpeed),
		Depth:   get(suffixDepth),
		Time:    get(suffixTime),
	}
	rep.Type, _ = r.GetString(ContactKey(name, suffixType))
	return rep
}

// SetObstacle stores a polygon under OBSTACLE_<label>. The polygon must
// carry a label.
func (b *Buffer) SetObstacle(p geom.Polygon) error {
	if p.Label() == "" {
		return fmt.Errorf("world: obstacle %s has no label", p)
	}
	b.SetString(ObstaclePrefix+p.Label(), p.String())
	return nil
}

// ResolveObstacle removes an obstacle by label.
func (b *Buffer) ResolveObstacle(label string) bool {
	return b.Delete(ObstaclePrefix + label)
}

// Obstacles parses every stored obstacle polygon, keyed by upper-cased
// label. Unparseable entries are returned in bad.
func Obstacles(r Reader) (polys map[string]geom.Polygon, bad map[string]error) {
	polys = make(map[string]geom.Polygon)
	for k, spec := range r.Strings(ObstaclePrefix) {
		p, err := geom.ParsePolygon(spec)
		if err != nil {
			if bad == nil {
				bad = make(map[string]error)
			}
			bad[k] = err
			continue
		}
		polys[strings.TrimPrefix(k, ObstaclePrefix)] = p
	}
	return polys, bad
}

// ContactAge returns how long ago the contact's position was last written.
func ContactAge(r Reader, name string) (time.Duration, bool) {
	return r.Age(ContactKey(name, suffixX))
}
