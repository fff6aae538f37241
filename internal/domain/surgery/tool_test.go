package surgery

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/stretchr/testify/assert"
)

func TestParseBehaviorKind(t *testing.T) {
	t.Parallel()

	k, err := ParseBehaviorKind(" Cauterize ")
	assert.NoError(t, err)
	assert.Equal(t, BehaviorCauterize, k)

	_, err = ParseBehaviorKind("staple")
	assert.ErrorIs(t, err, ErrUnknownBehavior)
}

func TestTool_Validate(t *testing.T) {
	t.Parallel()
	cat := testCatalog(t)

	tests := []struct {
		name string
		tool Tool
		want error
	}{
		{name: "step tool", tool: StepTool("incision", time.Second)},
		{name: "cautery", tool: CauteryTool(0)},
		{name: "selection", tool: SelectionTool()},
		{name: "unknown step", tool: StepTool("stapling", 0), want: procedure.ErrUnknownStep},
		{name: "missing step", tool: Tool{Name: "blank", Behavior: BehaviorStep}, want: ErrToolWithoutStep},
		{name: "negative delay", tool: StepTool("incision", -time.Second), want: ErrNegativeDelay},
		{name: "bad behavior", tool: Tool{Name: "x", Behavior: "staple", Step: "incision"}, want: ErrUnknownBehavior},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.tool.Validate(cat)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTool_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "incision (step incision, 2s)", StepTool("incision", 2*time.Second).String())
	assert.Equal(t, "cautery (cauterize cauterization)", CauteryTool(0).String())
}
