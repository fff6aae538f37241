// Package embedded provides the built-in surgical catalog and its loader.
package embedded

import (
	_ "embed"
	"fmt"

	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
)

//go:embed catalog.yaml
var catalogYAML []byte

// LoadCatalog parses and validates the embedded catalog.
func LoadCatalog() (*procedure.Catalog, error) {
	cat, err := procedure.Parse(catalogYAML, procedure.FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded catalog: %w", err)
	}
	return cat, nil
}

// MustLoadCatalog is LoadCatalog for process start-up, where a broken
// built-in catalog is unrecoverable.
func MustLoadCatalog() *procedure.Catalog {
	cat, err := LoadCatalog()
	if err != nil {
		panic(err)
	}
	return cat
}
