package testutil

import (
	"gopkg.in/yaml.v3"
)

// ScenarioBuilder builds scenario documents for runner and CLI tests.
type ScenarioBuilder struct {
	Name    string           `yaml:"name"`
	Actions []map[string]any `yaml:"actions"`
}

// NewScenarioBuilder starts a scenario called name.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{Name: name}
}

// Action appends a raw action; fields are written next to the action key.
func (b *ScenarioBuilder) Action(kind string, fields map[string]any) *ScenarioBuilder {
	a := map[string]any{"action": kind}
	for k, v := range fields {
		a[k] = v
	}
	b.Actions = append(b.Actions, a)
	return b
}

// Spawn adds a body; each part name is created without organs.
func (b *ScenarioBuilder) Spawn(body string, parts ...string) *ScenarioBuilder {
	fields := map[string]any{"body": body}
	if len(parts) > 0 {
		list := make([]map[string]any, 0, len(parts))
		for _, p := range parts {
			list = append(list, map[string]any{"name": p})
		}
		fields["parts"] = list
	}
	return b.Action("spawn", fields)
}

// Drape starts an operation.
func (b *ScenarioBuilder) Drape(surgeon, target, operation string) *ScenarioBuilder {
	return b.Action("drape", map[string]any{"surgeon": surgeon, "target": target, "operation": operation})
}

// Use applies a tool and waits for the final outcome, which must be outcome.
func (b *ScenarioBuilder) Use(surgeon, target, tool, outcome string) *ScenarioBuilder {
	return b.Action("use", map[string]any{
		"surgeon": surgeon, "target": target, "tool": tool, "await": true, "outcome": outcome,
	})
}

// ExpectPerforming checks whether the surgeon is operating.
func (b *ScenarioBuilder) ExpectPerforming(surgeon string, performing bool) *ScenarioBuilder {
	return b.Action("expect", map[string]any{"surgeon": surgeon, "performing": performing})
}

// ToYAML renders the scenario.
func (b *ScenarioBuilder) ToYAML() string {
	out, err := yaml.Marshal(b)
	if err != nil {
		panic(err)
	}
	return string(out)
}
