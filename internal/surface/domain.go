// Package surface defines the decision domain the helm searches and the
// utility surfaces behaviors produce over it.
package surface

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Standard axis names.
const (
	Course = "course"
	Speed  = "speed"
	Depth  = "depth"
)

var (
	ErrEmptyDomain   = errors.New("surface: domain has no axes")
	ErrDuplicateAxis = errors.New("surface: duplicate axis")
	ErrAxisPoints    = errors.New("surface: axis needs at least one point")
)

// Axis is one evenly spaced dimension of the decision domain. A single
// point axis holds only Low.
type Axis struct {
	Name   string
	Low    float64
	High   float64
	Points int
}

// NewAxis validates and returns an axis.
func NewAxis(name string, low, high float64, points int) (Axis, error) {
	if points < 1 {
		return Axis{}, fmt.Errorf("%w: %s has %d", ErrAxisPoints, name, points)
	}
	if math.IsNaN(low) || math.IsNaN(high) || high < low {
		return Axis{}, fmt.Errorf("surface: axis %s has bad range [%g,%g]", name, low, high)
	}
	return Axis{Name: name, Low: low, High: high, Points: points}, nil
}

// Delta is the spacing between adjacent points.
func (a Axis) Delta() float64 {
	if a.Points <= 1 {
		return 0
	}
	return (a.High - a.Low) / float64(a.Points-1)
}

// Value returns the i'th point of the axis.
func (a Axis) Value(i int) float64 { return a.Low + float64(i)*a.Delta() }

// Index returns the index of the grid point nearest v. ok is false when v
// falls outside [Low-delta/2, High+delta/2].
func (a Axis) Index(v float64) (int, bool) {
	d := a.Delta()
	if d == 0 {
		return 0, v == a.Low
	}
	i := int(math.Round((v - a.Low) / d))
	if i < 0 || i >= a.Points {
		return 0, false
	}
	return i, true
}

// Domain is an ordered set of axes. Points are addressed by a flat index
// with the last axis varying fastest.
type Domain struct {
	axes []Axis
}

// NewDomain builds a domain from one or more uniquely named axes.
func NewDomain(axes ...Axis) (Domain, error) {
	if len(axes) == 0 {
		return Domain{}, ErrEmptyDomain
	}
	seen := make(map[string]bool, len(axes))
	for _, a := range axes {
		if a.Points < 1 {
			return Domain{}, fmt.Errorf("%w: %s", ErrAxisPoints, a.Name)
		}
		if seen[a.Name] {
			return Domain{}, fmt.Errorf("%w: %s", ErrDuplicateAxis, a.Name)
		}
		seen[a.Name] = true
	}
	return Domain{axes: append([]Axis(nil), axes...)}, nil
}

// CourseSpeed returns the usual helm domain: course 0..359 in one degree
// steps and speed 0..maxSpeed over speedPoints points.
func CourseSpeed(maxSpeed float64, speedPoints int) (Domain, error) {
	course, err := NewAxis(Course, 0, 359, 360)
	if err != nil {
		return Domain{}, err
	}
	speed, err := NewAxis(Speed, 0, maxSpeed, speedPoints)
	if err != nil {
		return Domain{}, err
	}
	return NewDomain(course, speed)
}

// Axes returns a copy of the axes.
func (d Domain) Axes() []Axis { return append([]Axis(nil), d.axes...) }

// Dim is the number of axes.
func (d Domain) Dim() int { return len(d.axes) }

// Size is the number of grid points.
func (d Domain) Size() int {
	if len(d.axes) == 0 {
		return 0
	}
	n := 1
	for _, a := range d.axes {
		n *= a.Points
	}
	return n
}

// IsZero reports whether the domain was never built.
func (d Domain) IsZero() bool { return len(d.axes) == 0 }

// AxisIndex returns the position of the named axis.
func (d Domain) AxisIndex(name string) (int, bool) {
	for i, a := range d.axes {
		if a.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Axis returns the named axis.
func (d Domain) Axis(name string) (Axis, bool) {
	i, ok := d.AxisIndex(name)
	if !ok {
		return Axis{}, false
	}
	return d.axes[i], true
}

// Coords writes the axis values of flat point idx into dst, growing it if
// needed, and returns it.
func (d Domain) Coords(idx int, dst []float64) []float64 {
	if cap(dst) < len(d.axes) {
		dst = make([]float64, len(d.axes))
	}
	dst = dst[:len(d.axes)]
	for i := len(d.axes) - 1; i >= 0; i-- {
		a := d.axes[i]
		dst[i] = a.Value(idx % a.Points)
		idx /= a.Points
	}
	return dst
}

// Flat returns the flat index of the grid point nearest coords.
func (d Domain) Flat(coords ...float64) (int, bool) {
	if len(coords) != len(d.axes) {
		return 0, false
	}
	idx := 0
	for i, a := range d.axes {
		j, ok := a.Index(coords[i])
		if !ok {
			return 0, false
		}
		idx = idx*a.Points + j
	}
	return idx, true
}

// Equal reports whether two domains have identical axes.
func (d Domain) Equal(o Domain) bool {
	if len(d.axes) != len(o.axes) {
		return false
	}
	for i := range d.axes {
		if d.axes[i] != o.axes[i] {
			return false
		}
	}
	return true
}

func (d Domain) String() string {
	parts := make([]string, len(d.axes))
	for i, a := range d.axes {
		parts[i] = fmt.Sprintf("%s,%g,%g,%d", a.Name, a.Low, a.High, a.Points)
	}
	return strings.Join(parts, ":")
}
