package surgery

import (
	"testing"

	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type features map[string]bool

func (f features) HasFeature(feature string) bool {
	return f[feature]
}

func mustStep(t *testing.T, id string, n procedure.Necessity) procedure.Step {
	t.Helper()
	s, err := procedure.NewStep(procedure.StepID(id))
	require.NoError(t, err)
	return s.WithNecessity(n)
}

func TestResolveProgress(t *testing.T) {
	t.Parallel()

	a := mustStep(t, "a", procedure.Always())
	b := mustStep(t, "b", procedure.FeaturePresent("b"))
	c := mustStep(t, "c", procedure.Always())
	d := mustStep(t, "d", procedure.FeaturePresent("d"))

	op, err := procedure.NewOperation("op", "", []procedure.Step{a, b, c, d})
	require.NoError(t, err)

	tests := []struct {
		name      string
		completed []procedure.StepID
		subject   features
		wantNext  procedure.StepID
		complete  bool
	}{
		{name: "fresh", wantNext: "a", subject: features{"b": true, "d": true}},
		{name: "skips unnecessary step", completed: []procedure.StepID{"a"}, wantNext: "c"},
		{name: "includes necessary step", completed: []procedure.StepID{"a"}, subject: features{"b": true}, wantNext: "b"},
		{name: "resumes after a skip", completed: []procedure.StepID{"a", "c"}, subject: features{"d": true}, wantNext: "d"},
		{name: "complete after skips", completed: []procedure.StepID{"a", "c"}, complete: true},
		{
			name:      "feature appears after skip",
			completed: []procedure.StepID{"a", "c"},
			subject:   features{"b": true, "d": true},
			wantNext:  "d",
		},
		{name: "all performed", completed: []procedure.StepID{"a", "b", "c", "d"}, complete: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := resolveProgress(op, tt.completed, tt.subject)
			assert.Equal(t, tt.complete, p.complete(len(tt.completed)))
			if tt.wantNext == "" {
				assert.False(t, p.hasNext)
				return
			}
			require.True(t, p.hasNext)
			assert.Equal(t, tt.wantNext, p.next.ID())
		})
	}
}

func TestResolveProgress_MismatchedHistoryIsNotComplete(t *testing.T) {
	t.Parallel()

	a := mustStep(t, "a", procedure.Always())
	b := mustStep(t, "b", procedure.Always())
	op, err := procedure.NewOperation("op", "", []procedure.Step{a, b})
	require.NoError(t, err)

	p := resolveProgress(op, []procedure.StepID{"b", "a"}, nil)
	assert.False(t, p.hasNext)
	assert.False(t, p.complete(2))
}

func TestResolveProgress_ReportsSkipped(t *testing.T) {
	t.Parallel()

	a := mustStep(t, "a", procedure.FeatureAbsent("healed"))
	b := mustStep(t, "b", procedure.Always())
	op, err := procedure.NewOperation("op", "", []procedure.Step{a, b})
	require.NoError(t, err)

	p := resolveProgress(op, nil, features{"healed": true})
	require.True(t, p.hasNext)
	assert.Equal(t, procedure.StepID("b"), p.next.ID())
	assert.Equal(t, []procedure.StepID{"a"}, p.skipped)
}
