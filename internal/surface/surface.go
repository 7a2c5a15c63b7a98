package surface

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Surface is a utility value for every point of a Domain together with
// the weight (relevance × priority) the optimizer should give it.
type Surface struct {
	Domain Domain
	Values []float64
	Weight float64
}

// New allocates a zeroed surface over d.
func New(d Domain) *Surface {
	return &Surface{Domain: d, Values: make([]float64, d.Size())}
}

// Fill evaluates fn at every domain point. The coords slice is reused
// between calls.
func (s *Surface) Fill(fn func(coords []float64) float64) {
	var coords []float64
	for i := range s.Values {
		coords = s.Domain.Coords(i, coords)
		s.Values[i] = fn(coords)
	}
}

// At returns the value at the grid point nearest coords.
func (s *Surface) At(coords ...float64) (float64, bool) {
	i, ok := s.Domain.Flat(coords...)
	if !ok {
		return 0, false
	}
	return s.Values[i], true
}

// Normalize linearly rescales values so the minimum maps to lo and the
// maximum to hi. A flat surface is only clamped into [lo,hi], so a surface
// that is uniformly safe stays at its level instead of collapsing to lo.
func (s *Surface) Normalize(lo, hi float64) {
	if len(s.Values) == 0 {
		return
	}
	vmin, vmax := floats.Min(s.Values), floats.Max(s.Values)
	if vmax-vmin <= 0 {
		for i, v := range s.Values {
			s.Values[i] = math.Max(lo, math.Min(hi, v))
		}
		return
	}
	floats.AddConst(-vmin, s.Values)
	floats.Scale((hi-lo)/(vmax-vmin), s.Values)
	floats.AddConst(lo, s.Values)
}

// Argmax returns the flat index and value of the best point. Ties resolve
// to the lowest index.
func (s *Surface) Argmax() (int, float64) {
	if len(s.Values) == 0 {
		return -1, math.NaN()
	}
	i := floats.MaxIdx(s.Values)
	return i, s.Values[i]
}

// Best returns the coordinates of the best point.
func (s *Surface) Best() []float64 {
	i, _ := s.Argmax()
	if i < 0 {
		return nil
	}
	return s.Domain.Coords(i, nil)
}

// Stats summarizes a surface for cycle records.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Summary returns min, max, mean and standard deviation of the values.
func (s *Surface) Summary() Stats {
	if len(s.Values) == 0 {
		return Stats{}
	}
	mean, std := stat.MeanStdDev(s.Values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return Stats{
		Min:    floats.Min(s.Values),
		Max:    floats.Max(s.Values),
		Mean:   mean,
		StdDev: std,
	}
}

// Clone returns a deep copy.
func (s *Surface) Clone() *Surface {
	return &Surface{
		Domain: s.Domain,
		Values: append([]float64(nil), s.Values...),
		Weight: s.Weight,
	}
}
