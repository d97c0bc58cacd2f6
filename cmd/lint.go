/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/upkeephq/upkeep/internal/lint"
	"github.com/upkeephq/upkeep/internal/ops"
	"github.com/upkeephq/upkeep/pkg/manifest"
	"github.com/upkeephq/upkeep/pkg/safeio"
	"golang.org/x/sync/errgroup"
)

var (
	lintFailOn  string
	lintFormat  string
	lintWorkers int
)

// lintCmd represents the lint command
var lintCmd = &cobra.Command{
	Use:   "lint [manifests...]",
	Short: "Lint kit manifests for conflicts and risky patterns",
	Long: `Lint validates kit manifests against the embedded schema and then
evaluates the manifest policy: duplicate claims across categories,
overbroad globs, patterns that shadow neverTouch, and similar mistakes
that would surprise users at upgrade time.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLint,
}

func init() {
	lintCmd.Flags().StringVar(&lintFailOn, "fail-on", "error", "Fail when findings at or above this severity exist: error|warn")
	lintCmd.Flags().StringVar(&lintFormat, "format", "text", "Output format: text|json")
	lintCmd.Flags().IntVar(&lintWorkers, "workers", 0, "Number of parallel workers (0=auto)")

	capabilities := ops.GetDefaultCapabilities(ops.GroupAuthor, ops.CategoryValidation)
	if err := ops.RegisterCommandWithTaxonomy("lint", ops.GroupAuthor, ops.CategoryValidation, capabilities, lintCmd, "Lint kit manifests for conflicts and risky patterns"); err != nil {
		panic(fmt.Sprintf("Failed to register lint command: %v", err))
	}
}

type lintResult struct {
	File     string         `json:"file"`
	Valid    bool           `json:"valid"`
	Findings []lint.Finding `json:"findings,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
}

func runLint(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(lintFormat)
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s", lintFormat)
	}
	failOn := strings.ToLower(lintFailOn)
	if failOn != "error" && failOn != "warn" {
		return fmt.Errorf("unsupported fail-on threshold: %s", lintFailOn)
	}

	engine, err := lint.NewOPAEngine()
	if err != nil {
		return err
	}

	results := make([]lintResult, len(args))
	var failures int
	var mu sync.Mutex

	workers := lintWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}
	if len(args) < 2 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(workers)

	for idx, input := range args {
		idx := idx
		input := input
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}

			cleanPath, err := safeio.CleanUserPath(input)
			if err != nil {
				mu.Lock()
				failures++
				results[idx] = lintResult{File: input, Valid: false, Errors: []string{fmt.Sprintf("invalid path: %v", err)}}
				mu.Unlock()
				return nil
			}

			data, err := os.ReadFile(cleanPath) // #nosec G304 -- cleanPath sanitized with safeio.CleanUserPath
			if err != nil {
				mu.Lock()
				failures++
				results[idx] = lintResult{File: cleanPath, Valid: false, Errors: []string{fmt.Sprintf("failed to read manifest: %v", err)}}
				mu.Unlock()
				return nil
			}

			// Schema validity gates the policy: a manifest the schema
			// rejects never reaches the lint rules.
			if _, err := manifest.Parse(data); err != nil {
				mu.Lock()
				failures++
				results[idx] = lintResult{File: cleanPath, Valid: false, Errors: []string{err.Error()}}
				mu.Unlock()
				return nil
			}

			findings, err := lint.CheckWithEngine(gctx, data, engine)
			if err != nil {
				mu.Lock()
				failures++
				results[idx] = lintResult{File: cleanPath, Valid: false, Errors: []string{err.Error()}}
				mu.Unlock()
				return nil
			}

			failed := lint.ErrorCount(findings) > 0 || (failOn == "warn" && len(findings) > 0)

			mu.Lock()
			if failed {
				failures++
			}
			results[idx] = lintResult{File: cleanPath, Valid: lint.ErrorCount(findings) == 0, Findings: findings}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encode JSON output: %w", err)
		}
	} else {
		for _, res := range results {
			if res.Valid && len(res.Findings) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✅ %s\n", res.File)
				continue
			}
			marker := "❌"
			if res.Valid {
				marker = "⚠️ "
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, res.File)
			for _, msg := range res.Errors {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "    - %s\n", msg)
			}
			for _, f := range res.Findings {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "    - [%s] %s\n", f.Severity, f.Message)
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d manifest(s) failed lint", failures)
	}
	return nil
}
