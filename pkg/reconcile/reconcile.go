/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/

// Package reconcile applies a new kit version's files onto an existing
// installation, deciding per file whether to overwrite, merge, add, or
// skip based on the manifest's pattern categories. The engine never
// aborts: every failure is recorded and the run completes across all
// remaining files.
package reconcile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/upkeephq/upkeep/pkg/manifest"
	"github.com/upkeephq/upkeep/pkg/merge"
	"github.com/upkeephq/upkeep/pkg/pattern"
)

// Result accumulates per-file outcomes for one reconciliation run. Each
// path lands in at most one set; a file whose action failed appears only
// in Errors. Insertion order is preserved for reporting.
type Result struct {
	Replaced []string `json:"replaced"`
	Merged   []string `json:"merged"`
	Added    []string `json:"added"`
	Skipped  []string `json:"skipped"`
	Errors   []string `json:"errors"`
}

// HasErrors reports whether any pattern or file-level failure was recorded.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// FileCount returns the number of files that received an outcome.
func (r *Result) FileCount() int {
	return len(r.Replaced) + len(r.Merged) + len(r.Added) + len(r.Skipped)
}

// Options adjusts a reconciliation run.
type Options struct {
	// Protected marks destination-side protections beyond the manifest's
	// neverTouch list (user ignore rules). A protected path is skipped
	// and claimed exactly like a neverTouch match. Nil means none.
	Protected func(rel string) bool
}

// Reconcile walks every file the new version provides under sourceDir and
// applies it to destDir per the manifest's categories. It is synchronous,
// single-threaded, and never returns an error: failures accumulate in the
// result so one bad file cannot block the rest of the upgrade.
func Reconcile(sourceDir, destDir string, m *manifest.Manifest) *Result {
	return ReconcileWithOptions(sourceDir, destDir, m, Options{})
}

// ReconcileWithOptions is Reconcile with explicit Options.
func ReconcileWithOptions(sourceDir, destDir string, m *manifest.Manifest, opts Options) *Result {
	return run(sourceDir, destDir, m, opts, false)
}

// Plan computes the outcome Reconcile would produce without modifying the
// destination. Merge candidates are parsed so malformed JSON surfaces in
// the plan; write-time failures (permissions, disk full) are not predicted.
func Plan(sourceDir, destDir string, m *manifest.Manifest) *Result {
	return PlanWithOptions(sourceDir, destDir, m, Options{})
}

// PlanWithOptions is Plan with explicit Options.
func PlanWithOptions(sourceDir, destDir string, m *manifest.Manifest, opts Options) *Result {
	return run(sourceDir, destDir, m, opts, true)
}

func run(sourceDir, destDir string, m *manifest.Manifest, opts Options, plan bool) *Result {
	e := &engine{
		sourceDir: sourceDir,
		destDir:   destDir,
		protected: opts.Protected,
		plan:      plan,
		claimed:   make(map[string]bool),
		result:    &Result{},
	}
	if m == nil {
		return e.result
	}
	e.neverTouch = m.FileCategories.NeverTouch

	// Fixed processing order. A file claimed by an earlier category is
	// never reprocessed by a later one, so the first category wins when
	// pattern lists overlap. neverTouch is consulted per file below, not
	// iterated: patterns overlap arbitrarily, so protection must be
	// checked against each candidate rather than pre-subtracted from the
	// expansion.
	steps := []struct {
		patterns []string
		apply    func(rel string)
	}{
		{m.FileCategories.AlwaysReplace, e.replace},
		{m.FileCategories.MergeIfChanged, e.mergeIfChanged},
		{m.FileCategories.AddOnly, e.addOnly},
	}

	for _, step := range steps {
		for _, pat := range step.patterns {
			files, err := pattern.Expand(pat, sourceDir)
			if err != nil {
				e.result.Errors = append(e.result.Errors, err.Error())
				continue
			}
			for _, rel := range files {
				if e.claimed[rel] {
					continue
				}
				e.claimed[rel] = true
				if pattern.MatchesAny(rel, e.neverTouch) || (e.protected != nil && e.protected(rel)) {
					e.result.Skipped = append(e.result.Skipped, rel)
					continue
				}
				step.apply(rel)
			}
		}
	}
	return e.result
}

type engine struct {
	sourceDir  string
	destDir    string
	neverTouch []string
	protected  func(rel string) bool
	plan       bool
	claimed    map[string]bool
	result     *Result
}

// replace force-copies the source file over whatever the destination holds.
func (e *engine) replace(rel string) {
	if !e.plan {
		if err := e.copyFile(rel); err != nil {
			e.fail(rel, err)
			return
		}
	}
	e.result.Replaced = append(e.result.Replaced, rel)
}

// mergeIfChanged deep-merges JSON files that exist on both sides, with the
// destination's values winning so user edits survive. A missing destination
// degrades to a plain install; a non-JSON destination is preserved as-is
// because textual merge has no defined semantics here.
func (e *engine) mergeIfChanged(rel string) {
	destPath := e.destPath(rel)
	if _, err := os.Stat(destPath); err != nil {
		if !os.IsNotExist(err) {
			e.fail(rel, fmt.Errorf("failed to stat destination: %w", err))
			return
		}
		if !e.plan {
			if err := e.copyFile(rel); err != nil {
				e.fail(rel, err)
				return
			}
		}
		e.result.Replaced = append(e.result.Replaced, rel)
		return
	}

	if !merge.IsJSONFile(rel) {
		e.result.Skipped = append(e.result.Skipped, rel)
		return
	}

	if err := e.mergeFiles(rel, destPath); err != nil {
		e.fail(rel, err)
		return
	}
	e.result.Merged = append(e.result.Merged, rel)
}

// mergeFiles runs the real merge, or only its parse stage when planning.
func (e *engine) mergeFiles(rel, destPath string) error {
	if e.plan {
		return merge.Check(e.sourcePath(rel), destPath)
	}
	return merge.Files(e.sourcePath(rel), destPath)
}

// addOnly installs the file when the destination lacks it and otherwise
// leaves the destination alone, whatever its content.
func (e *engine) addOnly(rel string) {
	if _, err := os.Stat(e.destPath(rel)); err == nil {
		e.result.Skipped = append(e.result.Skipped, rel)
		return
	} else if !os.IsNotExist(err) {
		e.fail(rel, fmt.Errorf("failed to stat destination: %w", err))
		return
	}

	if !e.plan {
		if err := e.copyFile(rel); err != nil {
			e.fail(rel, err)
			return
		}
	}
	e.result.Added = append(e.result.Added, rel)
}

func (e *engine) sourcePath(rel string) string {
	return filepath.Join(e.sourceDir, filepath.FromSlash(rel))
}

func (e *engine) destPath(rel string) string {
	return filepath.Join(e.destDir, filepath.FromSlash(rel))
}

// copyFile copies one source file to the destination, creating parent
// directories and carrying over the source's permission bits for new files.
func (e *engine) copyFile(rel string) error {
	srcPath := e.sourcePath(rel)
	info, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	data, err := os.ReadFile(srcPath) // #nosec G304 -- path expanded from the kit source tree
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	destPath := e.destPath(rel)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(destPath, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write destination: %w", err)
	}
	return nil
}

func (e *engine) fail(rel string, err error) {
	e.result.Errors = append(e.result.Errors, fmt.Sprintf("%s: %v", rel, err))
}
