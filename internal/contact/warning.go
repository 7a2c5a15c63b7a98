package contact

import (
	"errors"
	"fmt"
)

// WarningKind classifies recoverable tracker problems.
type WarningKind string

const (
	MissingField  WarningKind = "missing_field"  // A required kinematic field was absent
	Extrapolation WarningKind = "extrapolation"  // Extrapolation window exceeded or time ran backwards
	WrongContact  WarningKind = "wrong_contact"  // Report names a different contact
	InvalidValue  WarningKind = "invalid_value"  // Field present but NaN/Inf
)

// ErrExtrapolationWindow is wrapped by extrapolation warnings.
var ErrExtrapolationWindow = errors.New("contact report outside extrapolation window")

// Warning is a recoverable, cycle-scoped problem. The behavior producing it
// contributes nothing this cycle but keeps running.
type Warning struct {
	Kind    WarningKind
	Contact string
	Field   string
	Err     error
}

func (w *Warning) Error() string {
	switch {
	case w.Field != "" && w.Err != nil:
		return fmt.Sprintf("%s: %s %s: %v", w.Kind, w.Contact, w.Field, w.Err)
	case w.Field != "":
		return fmt.Sprintf("%s: %s %s", w.Kind, w.Contact, w.Field)
	case w.Err != nil:
		return fmt.Sprintf("%s: %s: %v", w.Kind, w.Contact, w.Err)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Contact)
}

func (w *Warning) Unwrap() error { return w.Err }

// IsWarning reports whether err carries a *Warning, and returns it.
func IsWarning(err error) (*Warning, bool) {
	var w *Warning
	if errors.As(err, &w) {
		return w, true
	}
	return nil, false
}
