package assets

// Registry lists embedded assets available at runtime.
// Update this when adding/removing curated assets.

type AssetInfo struct {
	Family  string // e.g., schema, template, policy
	Version string // e.g., v1.0.0
	Path    string // embed path
}

var Registry = []AssetInfo{
	{
		Family:  "schema",
		Version: "v1.0.0",
		Path:    "embedded_schemas/schemas/kit/v1.0.0/kit-manifest.json",
	},
	{
		Family:  "schema",
		Version: "v1.0.0",
		Path:    "embedded_schemas/schemas/kit/v1.0.0/upgrade-receipt.json",
	},
	{
		Family:  "template",
		Version: "v1.0.0",
		Path:    "embedded_templates/report/upgrade-report.md.hbs",
	},
	{
		Family:  "policy",
		Version: "v1.0.0",
		Path:    "embedded_policies/manifest_lint.rego",
	},
}
