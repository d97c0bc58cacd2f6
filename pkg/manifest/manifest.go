// Package manifest models the kit manifest: the versioned descriptor
// shipped at a fixed location inside every kit release that declares how
// each file is treated during an upgrade.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/upkeephq/upkeep/pkg/schema"
)

// Filename is the fixed relative location of the manifest under a kit root.
const Filename = "kit.manifest.json"

// SchemaName identifies the embedded schema manifests are validated against.
const SchemaName = "kit-manifest-v1.0.0"

// FileCategories holds the four glob pattern lists. Every list is optional;
// a missing list means the category claims nothing.
type FileCategories struct {
	AlwaysReplace  []string `json:"alwaysReplace,omitempty"`
	NeverTouch     []string `json:"neverTouch,omitempty"`
	MergeIfChanged []string `json:"mergeIfChanged,omitempty"`
	AddOnly        []string `json:"addOnly,omitempty"`
}

// Manifest is the immutable descriptor attached to a specific kit version.
// Unknown fields in the source document are ignored so older binaries can
// read manifests written for newer tools.
type Manifest struct {
	Version        string         `json:"version"`
	PackageName    string         `json:"packageName,omitempty"`
	FileCategories FileCategories `json:"fileCategories,omitempty"`
}

// Parse decodes and validates manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("manifest is not valid JSON: %w", err)
	}

	res, err := schema.Validate(raw, SchemaName)
	if err != nil {
		return nil, fmt.Errorf("manifest schema validation failed: %w", err)
	}
	if !res.Valid {
		first := res.Errors[0]
		return nil, fmt.Errorf("invalid manifest: %s: %s", first.Path, first.Message)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("invalid manifest: version is required")
	}
	return &m, nil
}

// Load reads the manifest from its fixed location under kitRoot. The
// manifest must always come from the new release being applied, never from
// the previously installed copy, so classification rules added in the new
// version take effect.
func Load(kitRoot string) (*Manifest, error) {
	path := filepath.Join(kitRoot, Filename)
	data, err := os.ReadFile(path) // #nosec G304 -- fixed filename under caller-supplied kit root
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Categories returns the active pattern lists in their fixed processing
// order, paired with category names used in results and reports. neverTouch
// is intentionally absent: it is consulted per file, never iterated.
func (m *Manifest) Categories() []Category {
	return []Category{
		{Name: "alwaysReplace", Patterns: m.FileCategories.AlwaysReplace},
		{Name: "mergeIfChanged", Patterns: m.FileCategories.MergeIfChanged},
		{Name: "addOnly", Patterns: m.FileCategories.AddOnly},
	}
}

// Category is one named pattern list.
type Category struct {
	Name     string
	Patterns []string
}
