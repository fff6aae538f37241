// Package toolfile loads tool bindings (which behavior and step a tool
// performs, and how long it takes) from INI files.
package toolfile

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/felixgeelhaar/theatre/internal/domain/surgery"
	"gopkg.in/ini.v1"
)

//go:embed tools.ini
var defaultTools []byte

// ErrUnknownTool is returned when a tool name has no binding.
var ErrUnknownTool = errors.New("unknown tool")

// Set is an immutable collection of tool bindings keyed by name.
type Set struct {
	tools map[string]surgery.Tool
}

// Default returns the built-in bindings.
func Default() (*Set, error) {
	return Parse(defaultTools)
}

// Load reads bindings from an INI file.
func Load(path string) (*Set, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool file %s: %w", path, err)
	}
	return fromINI(cfg)
}

// Parse reads bindings from INI data.
func Parse(data []byte) (*Set, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tool file: %w", err)
	}
	return fromINI(cfg)
}

func fromINI(cfg *ini.File) (*Set, error) {
	set := &Set{tools: make(map[string]surgery.Tool)}
	for _, section := range cfg.Sections() {
		name := strings.TrimSpace(section.Name())
		if name == ini.DefaultSection {
			if len(section.Keys()) > 0 {
				return nil, errors.New("tool file: keys outside a [tool] section")
			}
			continue
		}
		tool, err := parseSection(name, section)
		if err != nil {
			return nil, err
		}
		set.tools[name] = tool
	}
	return set, nil
}

func parseSection(name string, section *ini.Section) (surgery.Tool, error) {
	behavior, err := surgery.ParseBehaviorKind(section.Key("behavior").MustString(string(surgery.BehaviorStep)))
	if err != nil {
		return surgery.Tool{}, fmt.Errorf("tool %s: %w", name, err)
	}

	var delay time.Duration
	if raw := strings.TrimSpace(section.Key("delay").String()); raw != "" {
		delay, err = time.ParseDuration(raw)
		if err != nil {
			return surgery.Tool{}, fmt.Errorf("tool %s: invalid delay %q: %w", name, raw, err)
		}
	}

	return surgery.Tool{
		Name:     name,
		Behavior: behavior,
		Step:     procedure.StepID(strings.TrimSpace(section.Key("step").String())),
		Delay:    delay,
	}, nil
}

// Find returns the binding for name.
func (s *Set) Find(name string) (surgery.Tool, error) {
	t, ok := s.tools[name]
	if !ok {
		return surgery.Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// All returns every binding sorted by name.
func (s *Set) All() []surgery.Tool {
	out := make([]surgery.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of bindings.
func (s *Set) Len() int {
	return len(s.tools)
}

// Validate checks every binding against the step catalog.
func (s *Set) Validate(steps procedure.StepLookup) error {
	var errs []error
	for _, t := range s.All() {
		if err := t.Validate(steps); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
