/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/

// Package lint checks kit manifests for authoring mistakes before they
// ship: broken glob syntax, dead pattern entries shadowed by claim-once
// processing, and protection rules that silently disable replacement.
// Structural rules live in an embedded Rego policy; glob validation runs
// in Go and feeds its failures into the policy input.
package lint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/upkeephq/upkeep/internal/assets"
	"github.com/upkeephq/upkeep/pkg/manifest"
	"github.com/upkeephq/upkeep/pkg/pattern"
)

// Severity classifies a finding.
type Severity string

const (
	// SeverityError findings make the manifest unusable or misleading.
	SeverityError Severity = "error"
	// SeverityWarning findings are advisory.
	SeverityWarning Severity = "warning"
)

// Finding is one lint result.
type Finding struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Engine evaluates the lint policy over a prepared input document.
type Engine interface {
	Evaluate(ctx context.Context, input interface{}) (Verdict, error)
}

// Verdict separates blocking findings from advisories.
type Verdict struct {
	Deny []string
	Warn []string
}

// OPAEngine evaluates the embedded Rego policy.
type OPAEngine struct {
	regoCode string
}

// NewOPAEngine loads the embedded manifest policy.
func NewOPAEngine() (*OPAEngine, error) {
	code, ok := assets.GetPolicy("manifest_lint.rego")
	if !ok {
		return nil, fmt.Errorf("embedded lint policy manifest_lint.rego not found")
	}
	return &OPAEngine{regoCode: string(code)}, nil
}

// Evaluate implements Engine.
func (e *OPAEngine) Evaluate(ctx context.Context, input interface{}) (Verdict, error) {
	rs, err := rego.New(
		rego.Query("data.upkeep.manifest"),
		rego.Input(input),
		rego.Module("manifest_lint.rego", e.regoCode),
	).Eval(ctx)
	if err != nil {
		return Verdict{}, fmt.Errorf("policy evaluation failed: %w", err)
	}

	var v Verdict
	for _, result := range rs {
		for _, expr := range result.Expressions {
			doc, ok := expr.Value.(map[string]interface{})
			if !ok {
				continue
			}
			v.Deny = append(v.Deny, stringSlice(doc["deny"])...)
			v.Warn = append(v.Warn, stringSlice(doc["warn"])...)
		}
	}
	return v, nil
}

// Check lints raw manifest bytes. Malformed JSON is itself a finding, not
// a failure: lint exists to report problems, so it reports that one too.
func Check(ctx context.Context, manifestJSON []byte) ([]Finding, error) {
	engine, err := NewOPAEngine()
	if err != nil {
		return nil, err
	}
	return CheckWithEngine(ctx, manifestJSON, engine)
}

// CheckWithEngine is Check with an explicit policy engine.
func CheckWithEngine(ctx context.Context, manifestJSON []byte, engine Engine) ([]Finding, error) {
	var doc interface{}
	if err := json.Unmarshal(manifestJSON, &doc); err != nil {
		return []Finding{{Severity: SeverityError, Message: fmt.Sprintf("manifest is not valid JSON: %v", err)}}, nil
	}

	verdict, err := engine.Evaluate(ctx, buildInput(doc, manifestJSON))
	if err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(verdict.Deny)+len(verdict.Warn))
	for _, msg := range verdict.Deny {
		findings = append(findings, Finding{Severity: SeverityError, Message: msg})
	}
	for _, msg := range verdict.Warn {
		findings = append(findings, Finding{Severity: SeverityWarning, Message: msg})
	}
	return findings, nil
}

// buildInput assembles the policy input: the manifest document plus every
// glob syntax failure found by the matcher's own validator, so the policy
// and the engine can never disagree about what parses.
func buildInput(doc interface{}, manifestJSON []byte) map[string]interface{} {
	var cats struct {
		FileCategories manifest.FileCategories `json:"fileCategories"`
	}
	// Best-effort: a wrongly typed fileCategories is reported by the
	// schema rules, not here.
	_ = json.Unmarshal(manifestJSON, &cats)

	lists := []struct {
		name     string
		patterns []string
	}{
		{"alwaysReplace", cats.FileCategories.AlwaysReplace},
		{"neverTouch", cats.FileCategories.NeverTouch},
		{"mergeIfChanged", cats.FileCategories.MergeIfChanged},
		{"addOnly", cats.FileCategories.AddOnly},
	}

	invalid := []map[string]interface{}{}
	for _, list := range lists {
		for _, p := range list.patterns {
			if err := pattern.Validate(p); err != nil {
				invalid = append(invalid, map[string]interface{}{
					"category": list.name,
					"pattern":  p,
					"error":    err.Error(),
				})
			}
		}
	}

	return map[string]interface{}{
		"manifest":         doc,
		"invalid_patterns": invalid,
	}
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ErrorCount returns how many findings are blocking.
func ErrorCount(findings []Finding) int {
	n := 0
	for _, f := range findings {
		if f.Severity == SeverityError {
			n++
		}
	}
	return n
}
