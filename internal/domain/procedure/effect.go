package procedure

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEffect is returned when an operation names an effect that does not exist.
var ErrUnknownEffect = errors.New("unknown operation effect")

// Effect enumerates the terminal effects an operation can apply once every
// required step has been completed.
type Effect string

const (
	// EffectNone completes the operation without touching the target.
	EffectNone Effect = ""
	// EffectAmputation detaches the target part from its body.
	EffectAmputation Effect = "amputation"
	// EffectOrganExtraction removes the surgeon's selected organ from the target part.
	EffectOrganExtraction Effect = "organ_extraction"
)

// ParseEffect validates an effect name from the catalog.
func ParseEffect(s string) (Effect, error) {
	e := Effect(strings.TrimSpace(s))
	switch e {
	case EffectNone, EffectAmputation, EffectOrganExtraction:
		return e, nil
	default:
		return EffectNone, fmt.Errorf("%w: %q", ErrUnknownEffect, s)
	}
}

// IsNone reports whether the effect is a no-op.
func (e Effect) IsNone() bool {
	return e == EffectNone
}

// String returns the effect name.
func (e Effect) String() string {
	if e == EffectNone {
		return "none"
	}
	return string(e)
}
