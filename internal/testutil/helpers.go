// Package testutil provides fixtures and helpers shared by theatre tests.
package testutil

import (
	"embed"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/theatre/internal/domain/procedure"
	"github.com/stretchr/testify/require"
)

//go:embed fixtures/*
var fixturesFS embed.FS

// WriteTempFile writes content to a file in dir and returns its path.
func WriteTempFile(t testing.TB, dir, filename, content string) string {
	t.Helper()

	p := filepath.Join(dir, filename)
	err := os.WriteFile(p, []byte(content), 0o644)
	require.NoError(t, err, "failed to write temp file: %s", filename)

	return p
}

// LoadFixture loads a file from the embedded fixtures directory.
func LoadFixture(t testing.TB, name string) []byte {
	t.Helper()

	content, err := fixturesFS.ReadFile(path.Join("fixtures", name))
	require.NoError(t, err, "failed to load fixture: %s", name)

	return content
}

// WriteFixtureToDir copies a fixture into dir under destName.
func WriteFixtureToDir(t testing.TB, dir, fixtureName, destName string) string {
	t.Helper()

	return WriteTempFile(t, dir, destName, string(LoadFixture(t, fixtureName)))
}

// FixtureCatalog parses fixtures/catalog.yaml: a biopsy, a drainage whose
// middle step is skipped on "dry" targets, and a hidden rehearsal.
func FixtureCatalog(t testing.TB) *procedure.Catalog {
	t.Helper()

	cat, err := procedure.Parse(LoadFixture(t, "catalog.yaml"), procedure.FormatYAML)
	require.NoError(t, err)
	return cat
}
