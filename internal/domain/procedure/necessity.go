package procedure

import (
	"errors"
	"fmt"
	"strings"
)

// Necessity errors.
var (
	ErrUnknownNecessity = errors.New("unknown necessity kind")
	ErrEmptyFeature     = errors.New("necessity feature cannot be empty")
)

// Subject is the read-only view of a surgery target that necessity
// predicates are evaluated against.
type Subject interface {
	HasFeature(feature string) bool
}

// NecessityKind enumerates the supported necessity predicates.
type NecessityKind string

const (
	// NecessityAlways marks a step that is required regardless of target state.
	NecessityAlways NecessityKind = ""
	// NecessityFeaturePresent requires the step only while the target has the feature.
	NecessityFeaturePresent NecessityKind = "feature_present"
	// NecessityFeatureAbsent requires the step only while the target lacks the feature.
	NecessityFeatureAbsent NecessityKind = "feature_absent"
)

// Necessity decides whether a step applies to a target's current state.
// It is a pure function of the subject and may be evaluated repeatedly.
type Necessity struct {
	kind    NecessityKind
	feature string
}

// Always returns the predicate that is true for every target.
func Always() Necessity {
	return Necessity{}
}

// FeaturePresent returns a predicate satisfied when the target has feature.
func FeaturePresent(feature string) Necessity {
	return Necessity{kind: NecessityFeaturePresent, feature: feature}
}

// FeatureAbsent returns a predicate satisfied when the target lacks feature.
func FeatureAbsent(feature string) Necessity {
	return Necessity{kind: NecessityFeatureAbsent, feature: feature}
}

// ParseNecessity builds a predicate from its catalog representation.
func ParseNecessity(kind, feature string) (Necessity, error) {
	k := NecessityKind(strings.TrimSpace(kind))
	switch k {
	case NecessityAlways:
		return Always(), nil
	case NecessityFeaturePresent, NecessityFeatureAbsent:
		if strings.TrimSpace(feature) == "" {
			return Necessity{}, fmt.Errorf("%w: %s", ErrEmptyFeature, k)
		}
		return Necessity{kind: k, feature: feature}, nil
	default:
		return Necessity{}, fmt.Errorf("%w: %q", ErrUnknownNecessity, kind)
	}
}

// Kind returns the predicate kind.
func (n Necessity) Kind() NecessityKind {
	return n.kind
}

// Feature returns the feature the predicate inspects, if any.
func (n Necessity) Feature() string {
	return n.feature
}

// Necessary evaluates the predicate. A nil subject has no features.
func (n Necessity) Necessary(subject Subject) bool {
	switch n.kind {
	case NecessityFeaturePresent:
		return subject != nil && subject.HasFeature(n.feature)
	case NecessityFeatureAbsent:
		return subject == nil || !subject.HasFeature(n.feature)
	default:
		return true
	}
}

// String returns a human readable description.
func (n Necessity) String() string {
	switch n.kind {
	case NecessityFeaturePresent:
		return "if " + n.feature
	case NecessityFeatureAbsent:
		return "unless " + n.feature
	default:
		return "always"
	}
}
