package assets

import (
	"embed"
	"io/fs"
)

// Curated assets compiled into the upkeep binary.

//go:embed embedded_schemas
var Schemas embed.FS

//go:embed embedded_templates
var Templates embed.FS

//go:embed embedded_policies
var Policies embed.FS

func GetSchemasFS() fs.FS {
	if sub, err := fs.Sub(Schemas, "embedded_schemas"); err == nil {
		return sub
	}
	return Schemas
}

func GetTemplatesFS() fs.FS {
	if sub, err := fs.Sub(Templates, "embedded_templates"); err == nil {
		return sub
	}
	return Templates
}

// GetTemplate returns embedded template bytes by path relative to the
// template root (e.g., "report/upgrade-report.md.hbs").
func GetTemplate(relPath string) ([]byte, bool) {
	data, err := fs.ReadFile(GetTemplatesFS(), relPath)
	return data, err == nil
}

// GetPolicy returns embedded rego policy bytes by name (e.g., "manifest_lint.rego").
func GetPolicy(name string) ([]byte, bool) {
	data, err := Policies.ReadFile("embedded_policies/" + name)
	return data, err == nil
}

// GetEmbeddedAsset retrieves an embedded asset by path, trying each asset
// family in turn.
func GetEmbeddedAsset(path string) ([]byte, error) {
	if data, err := fs.ReadFile(Schemas, path); err == nil {
		return data, nil
	}
	if data, err := fs.ReadFile(Templates, path); err == nil {
		return data, nil
	}
	if data, err := fs.ReadFile(Policies, path); err == nil {
		return data, nil
	}
	return nil, fs.ErrNotExist
}
