package geom

import "math"

func cross(ax, ay, bx, by float64) float64 { return ax*by - ay*bx }

// orientation returns >0 when c lies left of a->b, <0 when right and 0
// when the three points are collinear within tolerance.
func orientation(a, b, c Point) float64 {
	v := cross(b.X-a.X, b.Y-a.Y, c.X-a.X, c.Y-a.Y)
	if math.Abs(v) <= Epsilon*math.Max(1, Dist(a, b)*Dist(a, c)) {
		return 0
	}
	return v
}

// LinesCross intersects the infinite line through a1,a2 with the infinite
// line through b1,b2. Parallel and collinear lines report no crossing.
func LinesCross(a1, a2, b1, b2 Point) (Point, bool) {
	dax, day := a2.X-a1.X, a2.Y-a1.Y
	dbx, dby := b2.X-b1.X, b2.Y-b1.Y

	den := cross(dax, day, dbx, dby)
	scale := math.Hypot(dax, day) * math.Hypot(dbx, dby)
	if scale <= Epsilon || math.Abs(den) <= 1e-12*scale {
		return Point{}, false
	}

	t := cross(b1.X-a1.X, b1.Y-a1.Y, dbx, dby) / den
	return Point{X: a1.X + t*dax, Y: a1.Y + t*day}, true
}

func onSegment(p, s1, s2 Point) bool {
	return p.X >= math.Min(s1.X, s2.X)-Epsilon && p.X <= math.Max(s1.X, s2.X)+Epsilon &&
		p.Y >= math.Min(s1.Y, s2.Y)-Epsilon && p.Y <= math.Max(s1.Y, s2.Y)+Epsilon
}

// SegmentsCross reports whether segment a1-a2 touches or crosses segment
// b1-b2.
func SegmentsCross(a1, a2, b1, b2 Point) bool {
	o1 := orientation(a1, a2, b1)
	o2 := orientation(a1, a2, b2)
	o3 := orientation(b1, b2, a1)
	o4 := orientation(b1, b2, a2)

	if ((o1 > 0 && o2 < 0) || (o1 < 0 && o2 > 0)) &&
		((o3 > 0 && o4 < 0) || (o3 < 0 && o4 > 0)) {
		return true
	}

	switch {
	case o1 == 0 && onSegment(b1, a1, a2):
		return true
	case o2 == 0 && onSegment(b2, a1, a2):
		return true
	case o3 == 0 && onSegment(a1, b1, b2):
		return true
	case o4 == 0 && onSegment(a2, b1, b2):
		return true
	}
	return false
}

// DistPointToSeg returns the shortest distance from p to segment s1-s2.
func DistPointToSeg(p, s1, s2 Point) float64 {
	dx, dy := s2.X-s1.X, s2.Y-s1.Y
	l2 := dx*dx + dy*dy
	if l2 <= Epsilon*Epsilon {
		return Dist(p, s1)
	}
	t := ((p.X-s1.X)*dx + (p.Y-s1.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return Dist(p, Point{X: s1.X + t*dx, Y: s1.Y + t*dy})
}

// DistPointToLine returns the perpendicular distance from p to the
// infinite line through l1,l2.
func DistPointToLine(p, l1, l2 Point) float64 {
	d := Dist(l1, l2)
	if d <= Epsilon {
		return Dist(p, l1)
	}
	return math.Abs(cross(l2.X-l1.X, l2.Y-l1.Y, p.X-l1.X, p.Y-l1.Y)) / d
}

// RaySegmentDist returns the distance travelled from p along heading
// before reaching segment s1-s2. ok is false when the ray misses.
func RaySegmentDist(p Point, heading float64, s1, s2 Point) (dist float64, ok bool) {
	rx, ry := Velocity(heading, 1)
	sx, sy := s2.X-s1.X, s2.Y-s1.Y
	qx, qy := s1.X-p.X, s1.Y-p.Y

	den := cross(rx, ry, sx, sy)
	segLen := math.Hypot(sx, sy)

	if math.Abs(den) <= 1e-12*math.Max(1, segLen) {
		// Parallel. Only a collinear segment can be hit.
		if math.Abs(cross(qx, qy, rx, ry)) > Epsilon*math.Max(1, math.Hypot(qx, qy)) {
			return 0, false
		}
		t0 := qx*rx + qy*ry
		t1 := (s2.X-p.X)*rx + (s2.Y-p.Y)*ry
		lo, hi := math.Min(t0, t1), math.Max(t0, t1)
		switch {
		case hi < -Epsilon:
			return 0, false
		case lo <= 0:
			return 0, true
		default:
			return lo, true
		}
	}

	t := cross(qx, qy, sx, sy) / den
	u := cross(qx, qy, rx, ry) / den
	if t < -Epsilon || u < -Epsilon || u > 1+Epsilon {
		return 0, false
	}
	return math.Max(0, t), true
}
