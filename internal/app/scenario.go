package app

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario is returned for scenario files that cannot be run.
var ErrInvalidScenario = errors.New("invalid scenario")

// ActionKind names a scenario action.
type ActionKind string

// Scenario actions.
const (
	ActionSpawn     ActionKind = "spawn"
	ActionDrape     ActionKind = "drape"
	ActionUse       ActionKind = "use"
	ActionChoose    ActionKind = "choose"
	ActionInterrupt ActionKind = "interrupt"
	ActionWait      ActionKind = "wait"
	ActionDespawn   ActionKind = "despawn"
	ActionExpect    ActionKind = "expect"
)

// Scenario is a scripted sequence of host interactions.
type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Actions     []Action `yaml:"actions"`
}

// PartSpec describes a part created by a spawn action.
type PartSpec struct {
	Name     string   `yaml:"name"`
	Features []string `yaml:"features,omitempty"`
	Organs   []string `yaml:"organs,omitempty"`
}

// Action is one scenario line. Which fields apply depends on Kind; names
// refer to world entities.
type Action struct {
	Kind ActionKind `yaml:"action"`

	// spawn
	Body  string     `yaml:"body,omitempty"`
	Parts []PartSpec `yaml:"parts,omitempty"`

	Surgeon   string `yaml:"surgeon,omitempty"`
	Target    string `yaml:"target,omitempty"`
	Operation string `yaml:"operation,omitempty"`
	Tool      string `yaml:"tool,omitempty"`
	Organ     string `yaml:"organ,omitempty"`
	Reason    string `yaml:"reason,omitempty"`
	Duration  string `yaml:"duration,omitempty"`

	// use: wait for the final outcome before moving on.
	Await bool `yaml:"await,omitempty"`

	// Expectations. Empty means unchecked.
	Result     string   `yaml:"result,omitempty"`
	Outcome    string   `yaml:"outcome,omitempty"`
	Error      string   `yaml:"error,omitempty"`
	Performing *bool    `yaml:"performing,omitempty"`
	Phase      string   `yaml:"phase,omitempty"`
	NextStep   *string  `yaml:"next_step,omitempty"`
	Features   []string `yaml:"features,omitempty"`
	Organs     []string `yaml:"organs,omitempty"`
	Exists     *bool    `yaml:"exists,omitempty"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and checks a scenario. Unknown keys are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that every action carries the fields it needs.
func (s *Scenario) Validate() error {
	if len(s.Actions) == 0 {
		return fmt.Errorf("%w: no actions", ErrInvalidScenario)
	}
	var errs []error
	for i, a := range s.Actions {
		if err := a.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: action %d (%s): %w", ErrInvalidScenario, i+1, a.Kind, err))
		}
	}
	return errors.Join(errs...)
}

func (a Action) validate() error {
	need := func(fields map[string]string) error {
		var missing []string
		for name, v := range fields {
			if strings.TrimSpace(v) == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		slices.Sort(missing)
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}

	switch a.Kind {
	case ActionSpawn:
		if err := need(map[string]string{"body": a.Body}); err != nil {
			return err
		}
		for _, p := range a.Parts {
			if strings.TrimSpace(p.Name) == "" {
				return errors.New("part without a name")
			}
		}
		return nil
	case ActionDrape:
		return need(map[string]string{"surgeon": a.Surgeon, "target": a.Target, "operation": a.Operation})
	case ActionUse:
		return need(map[string]string{"surgeon": a.Surgeon, "target": a.Target, "tool": a.Tool})
	case ActionChoose:
		return need(map[string]string{"surgeon": a.Surgeon, "organ": a.Organ})
	case ActionInterrupt:
		return need(map[string]string{"surgeon": a.Surgeon, "reason": a.Reason})
	case ActionWait:
		if a.Duration == "" {
			return nil
		}
		_, err := a.waitFor()
		return err
	case ActionDespawn:
		return need(map[string]string{"target": a.Target})
	case ActionExpect:
		if a.Surgeon == "" && a.Target == "" {
			return errors.New("expect needs a surgeon or a target")
		}
		if (a.Performing != nil || a.Phase != "") && a.Surgeon == "" {
			return errors.New("performing and phase need a surgeon")
		}
		if (a.NextStep != nil || a.Features != nil || a.Organs != nil || a.Exists != nil) && a.Target == "" {
			return errors.New("next_step, features, organs and exists need a target")
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", a.Kind)
	}
}

func (a Action) waitFor() (time.Duration, error) {
	d, err := time.ParseDuration(a.Duration)
	if err != nil {
		return 0, fmt.Errorf("bad duration %q: %w", a.Duration, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", a.Duration)
	}
	return d, nil
}
