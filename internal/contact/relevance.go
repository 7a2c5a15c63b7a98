package contact

import (
	"fmt"
	"math"
	"strings"
)

// Grade selects the curve used to fade relevance between the inner and
// outer distances.
type Grade int

const (
	Linear      Grade = iota // relevance falls linearly with range
	Quadratic                // squared, drops quickly once past inner
	QuasiLinear              // exponent 1.5
)

func (g Grade) String() string {
	switch g {
	case Linear:
		return "linear"
	case Quadratic:
		return "quadratic"
	case QuasiLinear:
		return "quasi"
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// ParseGrade accepts "linear", "quadratic" or "quasi" (also
// "quasi-linear"), case-insensitively.
func ParseGrade(s string) (Grade, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return Linear, nil
	case "quadratic":
		return Quadratic, nil
	case "quasi", "quasi-linear", "quasilinear":
		return QuasiLinear, nil
	}
	return Linear, fmt.Errorf("unknown grade %q: expected linear, quadratic or quasi", s)
}

// MarshalText implements encoding.TextMarshaler.
func (g Grade) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Grade) UnmarshalText(b []byte) error {
	v, err := ParseGrade(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// Relevance grades a contact range into [0,1]: 1 at or inside inner, 0 at
// or beyond outer, and shaped by grade in between. The result never
// increases with range. Callers clamp inner/outer at configuration time;
// if they still arrive inverted the step at outer is used.
func Relevance(rng, inner, outer float64, grade Grade) float64 {
	if math.IsNaN(rng) {
		return 0
	}
	if rng >= outer {
		return 0
	}
	if rng <= inner {
		return 1
	}
	span := outer - inner
	if span <= 0 {
		return 0
	}
	pct := (outer - rng) / span
	switch grade {
	case Quadratic:
		return pct * pct
	case QuasiLinear:
		return math.Pow(pct, 1.5)
	default:
		return pct
	}
}
