package assets

import (
	"encoding/json"
	"strings"
)

const draftUnknown = "Unknown (07/2020-12 supported)"

// SchemaInfo identifies one embedded schema.
type SchemaInfo struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Draft string `json:"draft"`
}

// GetSchema returns the embedded schema bytes by embed path
// (e.g. "embedded_schemas/schemas/kit/v1.0.0/kit-manifest.json").
func GetSchema(relPath string) ([]byte, bool) {
	data, err := Schemas.ReadFile(relPath)
	return data, err == nil
}

// GetSchemaNames returns the embedded schemas with metadata. Names derive
// from the asset registry as <basename>-<version>, so the manifest schema
// registered at v1.0.0 is addressed as "kit-manifest-v1.0.0".
func GetSchemaNames() []SchemaInfo {
	var infos []SchemaInfo
	for _, asset := range Registry {
		if asset.Family != "schema" {
			continue
		}
		if _, ok := GetSchema(asset.Path); !ok {
			continue
		}
		infos = append(infos, SchemaInfo{
			Name:  schemaName(asset),
			Path:  asset.Path,
			Draft: detectDraft(asset.Path),
		})
	}
	return infos
}

func schemaName(asset AssetInfo) string {
	base := asset.Path[strings.LastIndex(asset.Path, "/")+1:]
	return strings.TrimSuffix(base, ".json") + "-" + asset.Version
}

// detectDraft reports which JSON Schema draft the document declares.
func detectDraft(path string) string {
	data, ok := GetSchema(path)
	if !ok {
		return draftUnknown
	}
	var doc struct {
		Schema string `json:"$schema"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return draftUnknown
	}
	switch {
	case strings.Contains(doc.Schema, "draft-07"):
		return "Draft-07"
	case strings.Contains(doc.Schema, "2020-12"):
		return "Draft-2020-12"
	}
	return draftUnknown
}
