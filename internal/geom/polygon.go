package geom

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrTooFewVertices is returned for polygons with fewer than three vertices.
	ErrTooFewVertices = errors.New("polygon needs at least three vertices")
	// ErrNotConvex is returned when a polygon is not convex.
	ErrNotConvex = errors.New("polygon is not convex")
)

// Polygon is an immutable convex polygon. Methods never modify the
// receiver; Grow and friends return new polygons.
type Polygon struct {
	vertices []Point
	label    string
}

// NewPolygon builds a convex polygon from its vertices, in either winding
// order.
func NewPolygon(label string, vertices ...Point) (Polygon, error) {
	if len(vertices) < 3 {
		return Polygon{}, ErrTooFewVertices
	}
	p := Polygon{vertices: append([]Point(nil), vertices...), label: label}
	if !p.IsConvex() {
		return Polygon{}, ErrNotConvex
	}
	return p, nil
}

// MustPolygon is NewPolygon that panics on error, for fixtures.
func MustPolygon(label string, vertices ...Point) Polygon {
	p, err := NewPolygon(label, vertices...)
	if err != nil {
		panic(err)
	}
	return p
}

// Label returns the polygon label.
func (p Polygon) Label() string { return p.label }

// WithLabel returns a copy of p with a new label.
func (p Polygon) WithLabel(label string) Polygon {
	return Polygon{vertices: p.vertices, label: label}
}

// Size returns the number of vertices.
func (p Polygon) Size() int { return len(p.vertices) }

// Vertices returns a copy of the vertex list.
func (p Polygon) Vertices() []Point {
	return append([]Point(nil), p.vertices...)
}

// IsZero reports whether p has no vertices.
func (p Polygon) IsZero() bool { return len(p.vertices) == 0 }

// IsConvex reports whether the polygon is convex with non-zero area.
// Collinear consecutive vertices are tolerated.
func (p Polygon) IsConvex() bool {
	n := len(p.vertices)
	if n < 3 {
		return false
	}
	var pos, neg bool
	for i := 0; i < n; i++ {
		o := orientation(p.vertices[i], p.vertices[(i+1)%n], p.vertices[(i+2)%n])
		if o > 0 {
			pos = true
		} else if o < 0 {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return pos || neg
}

// Centroid returns the mean of the vertices.
func (p Polygon) Centroid() Point {
	if len(p.vertices) == 0 {
		return Point{}
	}
	var c Point
	for _, v := range p.vertices {
		c.X += v.X
		c.Y += v.Y
	}
	n := float64(len(p.vertices))
	return Point{X: c.X / n, Y: c.Y / n}
}

// Contains reports whether q lies inside the polygon or on its boundary.
func (p Polygon) Contains(q Point) bool {
	n := len(p.vertices)
	if n < 3 {
		return false
	}
	var pos, neg bool
	for i := 0; i < n; i++ {
		o := orientation(p.vertices[i], p.vertices[(i+1)%n], q)
		if o > 0 {
			pos = true
		} else if o < 0 {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}

// Dist returns the distance from q to the polygon, 0 when q is inside.
func (p Polygon) Dist(q Point) float64 {
	if p.Contains(q) {
		return 0
	}
	best := math.Inf(1)
	n := len(p.vertices)
	for i := 0; i < n; i++ {
		d := DistPointToSeg(q, p.vertices[i], p.vertices[(i+1)%n])
		if d < best {
			best = d
		}
	}
	return best
}

// RayDist returns the distance from q along heading to the first polygon
// edge the ray meets. ok is false when the ray misses the polygon.
func (p Polygon) RayDist(q Point, heading float64) (dist float64, ok bool) {
	n := len(p.vertices)
	for i := 0; i < n; i++ {
		d, hit := RaySegmentDist(q, heading, p.vertices[i], p.vertices[(i+1)%n])
		if hit && (!ok || d < dist) {
			dist, ok = d, true
		}
	}
	return dist, ok
}

// Grow returns a copy of p with every vertex pushed radially away from the
// centroid by amt metres. Negative amounts shrink.
func (p Polygon) Grow(amt float64) Polygon {
	c := p.Centroid()
	out := make([]Point, len(p.vertices))
	for i, v := range p.vertices {
		d := Dist(c, v)
		if d <= Epsilon {
			out[i] = v
			continue
		}
		out[i] = ProjectPoint(v, RelAng(c, v), amt)
	}
	return Polygon{vertices: out, label: p.label}
}

// Aft reports whether every vertex lies abaft the beam of a vessel at q
// pointing along heading. xbng widens the notion of "aft": with xbng=10 a
// vertex must be at least 10 degrees abaft the beam. xbng is clamped to
// [-90,90].
func (p Polygon) Aft(q Point, heading, xbng float64) bool {
	if len(p.vertices) == 0 {
		return false
	}
	xbng = math.Max(-90, math.Min(90, xbng))
	for _, v := range p.vertices {
		rb := RelBearing(q, heading, v)
		if rb <= 90+xbng || rb >= 270-xbng {
			return false
		}
	}
	return true
}

// String formats the polygon in the report notation
// "pts={x,y:x,y:...},label=name".
func (p Polygon) String() string {
	var b strings.Builder
	b.WriteString("pts={")
	for i, v := range p.vertices {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.FormatFloat(v.X, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(v.Y, 'f', -1, 64))
	}
	b.WriteByte('}')
	if p.label != "" {
		b.WriteString(",label=")
		b.WriteString(p.label)
	}
	return b.String()
}

// ParsePolygon parses the report notation produced by String, e.g.
//
//	pts={120,-80:120,-50:150,-50:150,-80},label=a
//
// Whitespace around numbers is ignored. The polygon must be convex.
func ParsePolygon(spec string) (Polygon, error) {
	spec = strings.TrimSpace(spec)
	start := strings.Index(spec, "pts={")
	if start < 0 {
		return Polygon{}, fmt.Errorf("polygon %q: missing pts={...}", spec)
	}
	end := strings.Index(spec[start:], "}")
	if end < 0 {
		return Polygon{}, fmt.Errorf("polygon %q: unterminated pts", spec)
	}
	body := spec[start+len("pts={") : start+end]
	rest := spec[:start] + spec[start+end+1:]

	var pts []Point
	for _, pair := range strings.Split(body, ":") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xy := strings.Split(pair, ",")
		if len(xy) < 2 {
			return Polygon{}, fmt.Errorf("polygon %q: bad vertex %q", spec, pair)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("polygon %q: bad x in %q: %w", spec, pair, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("polygon %q: bad y in %q: %w", spec, pair, err)
		}
		pts = append(pts, Point{X: x, Y: y})
	}

	var label string
	for _, field := range strings.Split(rest, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(field), "=")
		if found && strings.EqualFold(strings.TrimSpace(k), "label") {
			label = strings.TrimSpace(v)
		}
	}

	p, err := NewPolygon(label, pts...)
	if err != nil {
		return Polygon{}, fmt.Errorf("polygon %q: %w", spec, err)
	}
	return p, nil
}
