package geom

import "math"

// Epsilon is the distance tolerance (metres) used for coincidence tests.
const Epsilon = 1e-9

// AngleTolerance is the tolerance (degrees) used when deciding that two
// bearings are the same, e.g. own-ship sitting on a contact's bow line.
const AngleTolerance = 1e-6

// Point is a position in the local planar frame.
type Point struct {
	X float64
	Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Equal reports whether two points coincide within Epsilon.
func (p Point) Equal(q Point) bool {
	return math.Abs(p.X-q.X) <= Epsilon && math.Abs(p.Y-q.Y) <= Epsilon
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Angle360 normalises an angle to [0,360).
func Angle360(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	// math.Mod of a tiny negative value can round back up to 360.
	if a >= 360 {
		a = 0
	}
	return a
}

// Angle180 normalises an angle to (-180,180].
func Angle180(deg float64) float64 {
	a := Angle360(deg)
	if a > 180 {
		a -= 360
	}
	return a
}

// AngleDiff returns the smallest absolute difference between two headings,
// in [0,180].
func AngleDiff(a, b float64) float64 {
	return math.Abs(Angle180(a - b))
}

// SameAngle reports whether two headings are equal within AngleTolerance,
// treating 0 and 360 as the same heading.
func SameAngle(a, b float64) bool {
	return AngleDiff(a, b) <= AngleTolerance
}

// RelAng returns the absolute bearing from p to q in [0,360). The bearing
// between coincident points is 0.
func RelAng(p, q Point) float64 {
	dx := q.X - p.X
	dy := q.Y - p.Y
	if math.Abs(dx) <= Epsilon && math.Abs(dy) <= Epsilon {
		return 0
	}
	return Angle360(Degrees(math.Atan2(dx, dy)))
}

// RelBearing returns the bearing to q as seen from p while pointing at
// heading, in [0,360). 0 is dead ahead, 90 is the starboard beam.
func RelBearing(p Point, heading float64, q Point) float64 {
	return Angle360(RelAng(p, q) - heading)
}

// ProjectPoint returns the point dist metres from p along heading.
func ProjectPoint(p Point, heading, dist float64) Point {
	rad := Radians(Angle360(heading))
	return Point{
		X: p.X + math.Sin(rad)*dist,
		Y: p.Y + math.Cos(rad)*dist,
	}
}

// Dist returns the euclidean distance between two points.
func Dist(p, q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// SpeedInHeading returns the component of a velocity (speed along
// velHeading) that lies along heading. The result is negative when the
// velocity points away from heading.
func SpeedInHeading(velHeading, speed, heading float64) float64 {
	if speed == 0 {
		return 0
	}
	return speed * math.Cos(Radians(AngleDiff(velHeading, heading)))
}

// Velocity returns the x/y components of a speed along a heading.
func Velocity(heading, speed float64) (vx, vy float64) {
	rad := Radians(Angle360(heading))
	return math.Sin(rad) * speed, math.Cos(rad) * speed
}

// HeadingOf returns the heading and speed of an x/y velocity vector.
func HeadingOf(vx, vy float64) (heading, speed float64) {
	speed = math.Hypot(vx, vy)
	if speed <= Epsilon {
		return 0, 0
	}
	return Angle360(Degrees(math.Atan2(vx, vy))), speed
}
