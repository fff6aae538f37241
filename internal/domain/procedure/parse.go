package procedure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// SupportedMajor is the catalog schema major version this package reads.
const SupportedMajor = "v1"

// Format identifies a catalog document encoding.
type Format string

// Supported catalog formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath infers the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported catalog file extension %q", filepath.Ext(path))
	}
}

// documentDTO is the data transfer object shared by the YAML and TOML decoders.
type documentDTO struct {
	Version    string         `yaml:"version" toml:"version"`
	Steps      []stepDTO      `yaml:"steps" toml:"steps"`
	Operations []operationDTO `yaml:"operations" toml:"operations"`
}

type stepDTO struct {
	ID                string          `yaml:"id" toml:"id"`
	Conditional       *conditionalDTO `yaml:"conditional" toml:"conditional"`
	RequiresSelection bool            `yaml:"requires_selection" toml:"requires_selection"`
}

type conditionalDTO struct {
	Type    string `yaml:"type" toml:"type"`
	Feature string `yaml:"feature" toml:"feature"`
}

type operationDTO struct {
	ID          string   `yaml:"id" toml:"id"`
	Name        string   `yaml:"name" toml:"name"`
	Description string   `yaml:"description" toml:"description"`
	Hidden      bool     `yaml:"hidden" toml:"hidden"`
	Effect      string   `yaml:"effect" toml:"effect"`
	Steps       []string `yaml:"steps" toml:"steps"`
}

// LoadFile reads and validates a catalog file. The format is chosen by extension.
func LoadFile(path string) (*Catalog, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	cat, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a catalog document and validates every operation against the
// step definitions. Any error is a load-time failure.
func Parse(data []byte, format Format) (*Catalog, error) {
	var dto documentDTO
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &dto); err != nil {
			return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &dto); err != nil {
			return nil, fmt.Errorf("failed to parse catalog TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}

	if err := checkVersion(dto.Version); err != nil {
		return nil, err
	}

	cat := NewCatalog()

	for _, s := range dto.Steps {
		step, err := parseStep(s)
		if err != nil {
			return nil, err
		}
		if err := cat.AddStep(step); err != nil {
			return nil, err
		}
	}

	for _, o := range dto.Operations {
		op, err := parseOperation(o, cat)
		if err != nil {
			return nil, err
		}
		if err := cat.AddOperation(op); err != nil {
			return nil, err
		}
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

func checkVersion(v string) error {
	if v == "" {
		return nil
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return &DefinitionError{Kind: ErrUnsupportedVersion, Detail: fmt.Sprintf("%q is not a semantic version", v)}
	}
	if semver.Major(v) != SupportedMajor {
		return &DefinitionError{Kind: ErrUnsupportedVersion, Detail: fmt.Sprintf("%s (supported: %s.x)", v, SupportedMajor)}
	}
	return nil
}

func parseStep(dto stepDTO) (Step, error) {
	step, err := NewStep(StepID(strings.TrimSpace(dto.ID)))
	if err != nil {
		return Step{}, &DefinitionError{Kind: ErrInvalidDefinition, Detail: err.Error()}
	}
	if dto.Conditional != nil {
		n, err := ParseNecessity(dto.Conditional.Type, dto.Conditional.Feature)
		if err != nil {
			return Step{}, &DefinitionError{Kind: ErrInvalidDefinition, Step: step.ID(), Detail: err.Error()}
		}
		step = step.WithNecessity(n)
	}
	return step.WithRequiresSelection(dto.RequiresSelection), nil
}

// parseOperation resolves step references against the steps loaded so far.
// Unknown references are kept as bare steps so Validate reports them.
func parseOperation(dto operationDTO, steps StepLookup) (Operation, error) {
	refs := make([]Step, 0, len(dto.Steps))
	for _, raw := range dto.Steps {
		id := StepID(strings.TrimSpace(raw))
		if def, ok := steps.FindStep(id); ok {
			refs = append(refs, def)
			continue
		}
		if id.IsZero() {
			return Operation{}, &DefinitionError{Kind: ErrInvalidOperation, Operation: dto.ID, Detail: "empty step reference"}
		}
		refs = append(refs, Step{id: id})
	}

	op, err := NewOperation(strings.TrimSpace(dto.ID), dto.Name, refs)
	if err != nil {
		return Operation{}, err
	}

	effect, err := ParseEffect(dto.Effect)
	if err != nil {
		return Operation{}, &DefinitionError{Kind: ErrInvalidOperation, Operation: op.ID(), Detail: err.Error()}
	}

	return op.
		WithDescription(dto.Description).
		WithHidden(dto.Hidden).
		WithEffect(effect), nil
}
