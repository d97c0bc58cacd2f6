/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/

// Package merge implements the JSON deep-merge used when a kit file and a
// locally edited copy both exist. Overlay values win at every depth; nested
// objects combine key-wise instead of replacing wholesale.
package merge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/upkeephq/upkeep/pkg/safeio"
)

// Deep merges two JSON-like documents and returns the combined result.
// Overlay wins for scalars and arrays (arrays are atomic, never merged
// positionally). When both sides hold an object at the same key, the
// objects merge recursively: keys only in base survive, keys only in
// overlay are added. Neither input is mutated; merged objects are fresh
// maps, though leaf values may be shared with the inputs.
func Deep(base, overlay interface{}) interface{} {
	baseMap, baseIsMap := base.(map[string]interface{})
	overlayMap, overlayIsMap := overlay.(map[string]interface{})
	if !baseIsMap || !overlayIsMap {
		return overlay
	}

	out := make(map[string]interface{}, len(baseMap)+len(overlayMap))
	for k, v := range baseMap {
		out[k] = v
	}
	for k, ov := range overlayMap {
		if bv, exists := out[k]; exists {
			out[k] = Deep(bv, ov)
		} else {
			out[k] = ov
		}
	}
	return out
}

// IsJSONFile reports whether path carries the JSON extension, matched
// case-insensitively.
func IsJSONFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Files merges the JSON document at srcPath into the one at destPath,
// with the destination taking precedence, and rewrites destPath with the
// pretty-printed result. The destination represents the user's current
// state; the merge exists to backfill keys the new version introduces
// without clobbering existing ones. On any failure the destination is
// left at its pre-merge content.
func Files(srcPath, destPath string) error {
	base, overlay, err := loadPair(srcPath, destPath)
	if err != nil {
		return err
	}

	merged := Deep(base, overlay)
	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode merged document: %w", err)
	}
	out = append(out, '\n')

	if err := safeio.WriteFileAtomic(destPath, out); err != nil {
		return fmt.Errorf("failed to write merged document: %w", err)
	}
	return nil
}

// Check reports the error Files would fail with for this pair, without
// writing anything. Dry-run planning uses it to surface parse problems
// before an upgrade touches the destination.
func Check(srcPath, destPath string) error {
	_, _, err := loadPair(srcPath, destPath)
	return err
}

func loadPair(srcPath, destPath string) (base, overlay interface{}, err error) {
	srcData, err := os.ReadFile(srcPath) // #nosec G304 -- paths come from manifest-driven reconciliation
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read source: %w", err)
	}
	destData, err := os.ReadFile(destPath) // #nosec G304 -- paths come from manifest-driven reconciliation
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read destination: %w", err)
	}

	if err := json.Unmarshal(srcData, &base); err != nil {
		return nil, nil, fmt.Errorf("source is not valid JSON: %w", err)
	}
	if err := json.Unmarshal(destData, &overlay); err != nil {
		return nil, nil, fmt.Errorf("destination is not valid JSON: %w", err)
	}
	return base, overlay, nil
}
