// Package schema validates upkeep documents (kit manifests, upgrade
// receipts) against the JSON Schemas embedded in the binary.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/upkeephq/upkeep/internal/assets"
)

// Result holds the outcome of validating one document.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError locates a single schema violation within the document.
type ValidationError struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Validator wraps a compiled schema for repeated validation.
type Validator struct {
	compiled *gojsonschema.Schema
}

// Embedded schemas are compiled on first use and cached by name.
var (
	cacheMu sync.Mutex
	cache   = map[string]*Validator{}
)

// Validate checks data against the named embedded schema
// (e.g. "kit-manifest-v1.0.0").
func Validate(data interface{}, schemaName string) (*Result, error) {
	v, err := GetEmbeddedValidator(schemaName)
	if err != nil {
		return nil, err
	}
	return v.Validate(data)
}

// GetEmbeddedValidator returns the validator for a named embedded schema.
// Known names come from the asset registry.
func GetEmbeddedValidator(schemaName string) (*Validator, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if v, ok := cache[schemaName]; ok {
		return v, nil
	}
	for _, info := range assets.GetSchemaNames() {
		if info.Name != schemaName {
			continue
		}
		data, ok := assets.GetSchema(info.Path)
		if !ok {
			break
		}
		v, err := NewValidatorFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("embedded schema %s: %w", schemaName, err)
		}
		cache[schemaName] = v
		return v, nil
	}
	return nil, fmt.Errorf("schema %s not found", schemaName)
}

// NewValidatorFromBytes compiles schema bytes into a reusable validator.
// Schemas are normally JSON; YAML-authored ones are converted first.
func NewValidatorFromBytes(schemaBytes []byte) (*Validator, error) {
	doc, err := decodeDocument(schemaBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	canonical, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(canonical))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate applies the compiled schema to an already-decoded document.
func (v *Validator) Validate(data interface{}) (*Result, error) {
	if v == nil || v.compiled == nil {
		return nil, fmt.Errorf("validator not initialised")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	res, err := v.compiled.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return collectResult(res), nil
}

// ValidateBytes decodes JSON or YAML bytes and validates the document.
func (v *Validator) ValidateBytes(dataBytes []byte) (*Result, error) {
	doc, err := decodeDocument(dataBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return v.Validate(doc)
}

// decodeDocument accepts JSON first and falls back to YAML, which covers
// both since YAML is a superset.
func decodeDocument(data []byte) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func collectResult(res *gojsonschema.Result) *Result {
	out := &Result{Valid: res.Valid()}
	for _, verr := range res.Errors() {
		path := verr.Field()
		if path == "" || path == "(root)" {
			path = "root"
		}
		out.Errors = append(out.Errors, ValidationError{
			Path:    path,
			Message: verr.Description(),
		})
	}
	return out
}
