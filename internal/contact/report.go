package contact

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/helm.avoid/internal/nav"
)

// Node report field keys.
const (
	KeyName    = "NAME"
	KeyType    = "TYPE"
	KeyX       = "X"
	KeyY       = "Y"
	KeySpeed   = "SPD"
	KeyHeading = "HDG"
	KeyDepth   = "DEP"
	KeyTime    = "TIME"
)

// NodeReport is one position report for a vessel, as carried on the
// report feed:
//
//	NAME=alpha,TYPE=kayak,X=10,Y=-20,SPD=2.5,HDG=90,DEP=0,TIME=1700000000.5
//
// Optional numeric fields are nil when absent from the line.
type NodeReport struct {
	Name    string
	Type    string
	X       *float64
	Y       *float64
	Speed   *float64
	Heading *float64
	Depth   *float64
	Time    *float64
}

// IsNodeReport reports whether a line looks like a node report.
func IsNodeReport(line string) bool {
	up := strings.ToUpper(strings.TrimSpace(line))
	return strings.HasPrefix(up, KeyName+"=") && strings.Contains(up, ","+KeyX+"=")
}

// ParseNodeReport parses a comma separated key=value node report. Keys are
// case-insensitive; unknown keys (LAT, LON, LENGTH...) are ignored. A
// missing NAME is an error; missing kinematic fields are left nil and
// surface later as MissingField warnings.
func ParseNodeReport(line string) (NodeReport, error) {
	var r NodeReport
	for _, field := range strings.Split(line, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			return NodeReport{}, fmt.Errorf("node report field %q: missing '='", field)
		}
		k = strings.ToUpper(strings.TrimSpace(k))
		v = strings.TrimSpace(v)

		var dst **float64
		switch k {
		case KeyName:
			r.Name = v
			continue
		case KeyType:
			r.Type = v
			continue
		case KeyX:
			dst = &r.X
		case KeyY:
			dst = &r.Y
		case KeySpeed:
			dst = &r.Speed
		case KeyHeading:
			dst = &r.Heading
		case KeyDepth:
			dst = &r.Depth
		case KeyTime:
			dst = &r.Time
		default:
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return NodeReport{}, fmt.Errorf("node report field %s: %w", k, err)
		}
		*dst = &f
	}
	if r.Name == "" {
		return NodeReport{}, fmt.Errorf("node report %q: missing %s", line, KeyName)
	}
	return r, nil
}

// State converts the report to a kinematic state. Every one of X, Y, SPD
// and HDG must be present and finite; DEP and TIME default to zero.
func (r NodeReport) State() (nav.State, error) {
	required := []struct {
		key string
		v   *float64
	}{
		{KeyX, r.X}, {KeyY, r.Y}, {KeySpeed, r.Speed}, {KeyHeading, r.Heading},
	}
	for _, f := range required {
		if f.v == nil {
			return nav.State{}, &Warning{Kind: MissingField, Contact: r.Name, Field: f.key}
		}
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			return nav.State{}, &Warning{Kind: InvalidValue, Contact: r.Name, Field: f.key}
		}
	}
	s := nav.State{
		Name:    r.Name,
		X:       *r.X,
		Y:       *r.Y,
		Speed:   *r.Speed,
		Heading: *r.Heading,
	}
	if r.Depth != nil {
		s.Depth = *r.Depth
	}
	if r.Time != nil {
		s.Time = *r.Time
	}
	return s.Normalized(), nil
}

// ReportFromState builds a complete report from a state.
func ReportFromState(s nav.State) NodeReport {
	f := func(v float64) *float64 { return &v }
	return NodeReport{
		Name:    s.Name,
		X:       f(s.X),
		Y:       f(s.Y),
		Speed:   f(s.Speed),
		Heading: f(s.Heading),
		Depth:   f(s.Depth),
		Time:    f(s.Time),
	}
}

// String formats the report in the wire format, omitting nil fields.
func (r NodeReport) String() string {
	parts := []string{KeyName + "=" + r.Name}
	if r.Type != "" {
		parts = append(parts, KeyType+"="+r.Type)
	}
	add := func(k string, v *float64) {
		if v != nil {
			parts = append(parts, k+"="+strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}
	add(KeyX, r.X)
	add(KeyY, r.Y)
	add(KeySpeed, r.Speed)
	add(KeyHeading, r.Heading)
	add(KeyDepth, r.Depth)
	add(KeyTime, r.Time)
	return strings.Join(parts, ",")
}
