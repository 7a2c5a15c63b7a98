package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Error is a configuration-time rejection. The component that returned it
// keeps its previous configuration.
type Error struct {
	Param  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Param, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError reports whether err is (or wraps) a *Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Param is one named option in SetParam form.
type Param struct {
	Name  string
	Value string
}

// ParamSetter is implemented by anything configurable by name, value
// pairs (the avoidance behaviors).
type ParamSetter interface {
	SetParam(name, value string) error
}

// Apply feeds params to p in order, stopping at the first rejection.
func Apply(p ParamSetter, params []Param) error {
	for _, kv := range params {
		if err := p.SetParam(kv.Name, kv.Value); err != nil {
			return err
		}
	}
	return nil
}

func appendFloat(out []Param, name string, v *float64) []Param {
	if v == nil {
		return out
	}
	return append(out, Param{Name: name, Value: strconv.FormatFloat(*v, 'f', -1, 64)})
}

func appendString(out []Param, name string, v *string) []Param {
	if v == nil {
		return out
	}
	return append(out, Param{Name: name, Value: *v})
}

// Params lists the options set in this section. Outer distances come
// before inner ones so SetParam clamping sees the final outer bound.
func (c *CollisionTuning) Params() []Param {
	if c == nil {
		return nil
	}
	var out []Param
	out = appendString(out, "contact", c.Contact)
	out = appendFloat(out, "pwt_outer_dist", c.PwtOuterDist)
	out = appendFloat(out, "pwt_inner_dist", c.PwtInnerDist)
	out = appendFloat(out, "completed_dist", c.CompletedDist)
	out = appendFloat(out, "max_util_cpa_dist", c.MaxUtilCPADist)
	out = appendFloat(out, "min_util_cpa_dist", c.MinUtilCPADist)
	out = appendString(out, "pwt_grade", c.PwtGrade)
	out = appendFloat(out, "time_on_leg", c.TimeOnLeg)
	out = appendFloat(out, "collision_depth", c.CollisionDepth)
	if c.Extrapolate != nil {
		out = append(out, Param{Name: "extrapolate", Value: strconv.FormatBool(*c.Extrapolate)})
	}
	out = appendString(out, "decay", c.Decay)
	out = appendFloat(out, "priority", c.Priority)
	return out
}

// Params lists the options set in this section.
func (o *ObstacleTuning) Params() []Param {
	if o == nil {
		return nil
	}
	var out []Param
	out = appendFloat(out, "pwt_outer_dist", o.PwtOuterDist)
	out = appendFloat(out, "pwt_inner_dist", o.PwtInnerDist)
	out = appendFloat(out, "completed_dist", o.CompletedDist)
	out = appendString(out, "pwt_grade", o.PwtGrade)
	out = appendFloat(out, "buffer_dist", o.BufferDist)
	out = appendFloat(out, "activation_dist", o.ActivationDist)
	out = appendFloat(out, "allowable_ttc", o.AllowableTTC)
	out = appendFloat(out, "priority", o.Priority)
	return out
}

// ParseFloatParam parses a numeric SetParam value, rejecting NaN/Inf and,
// when nonNegative is set, negative values.
func ParseFloatParam(name, value string, nonNegative bool) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &Error{Param: name, Reason: fmt.Sprintf("not a number: %q", value), Err: err}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &Error{Param: name, Reason: "must be finite"}
	}
	if nonNegative && f < 0 {
		return 0, &Error{Param: name, Reason: fmt.Sprintf("must be non-negative, got %g", f)}
	}
	return f, nil
}

// ParseBoolParam parses a boolean SetParam value.
func ParseBoolParam(name, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, &Error{Param: name, Reason: fmt.Sprintf("not a boolean: %q", value), Err: err}
	}
	return b, nil
}
