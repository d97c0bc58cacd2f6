/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/upkeephq/upkeep/internal/report"
	"github.com/upkeephq/upkeep/internal/workflow"
	"github.com/upkeephq/upkeep/pkg/backup"
	"github.com/upkeephq/upkeep/pkg/config"
	"github.com/upkeephq/upkeep/pkg/logger"
	"github.com/upkeephq/upkeep/pkg/release"
	"github.com/upkeephq/upkeep/pkg/safeio"
)

// applySourceFlags overlays registry-related flags onto the loaded
// configuration. Only flags the user actually set take effect, so the
// config files keep authority over defaults.
func applySourceFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("registry") {
		cfg.Registry, _ = flags.GetString("registry")
	}
	if flags.Changed("channel") {
		cfg.Channel, _ = flags.GetString("channel")
	}
	if flags.Changed("no-backup") {
		cfg.Backup.Disabled, _ = flags.GetBool("no-backup")
	}
}

// newRegistrySource builds the release source for the configured registry.
func newRegistrySource(cfg *config.Config) *release.HTTPSource {
	src := release.NewHTTPSource(cfg.Registry, release.EnvCredentials{})
	src.Channel = cfg.Channel
	return src
}

// newBackupAdapter picks the snapshot strategy for a run.
func newBackupAdapter(cfg *config.Config) backup.Adapter {
	if cfg.Backup.Disabled {
		return backup.Noop{}
	}
	return backup.NewGit()
}

// stepLogger forwards workflow progress to the structured logger.
type stepLogger struct{}

// Step implements workflow.Reporter.
func (stepLogger) Step(message string) { logger.Info(message) }

// promptConfirmer asks on the terminal before a run mutates a destination.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

// Confirm implements workflow.Confirmer. Anything but an explicit yes
// declines.
func (c promptConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// newConfirmer returns the confirmer for a run; --yes approves everything.
func newConfirmer(cmd *cobra.Command, yes bool) workflow.Confirmer {
	if yes {
		return workflow.AutoConfirm{}
	}
	return promptConfirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()}
}

// writeOutcome renders a run's outcome in the requested format, to stdout
// or to the --output file when one is given.
func writeOutcome(cmd *cobra.Command, out *workflow.Outcome, format, outputPath string) error {
	rep := &report.Report{
		PackageName: out.PackageName,
		FromVersion: out.FromVersion,
		ToVersion:   out.ToVersion,
		DryRun:      out.DryRun,
		GeneratedAt: time.Now().UTC(),
		Result:      out.Result,
	}
	formatter := report.NewFormatter(report.OutputFormat(format))

	if outputPath == "" {
		return formatter.Write(cmd.OutOrStdout(), rep)
	}

	cleanPath, err := safeio.CleanUserPath(outputPath)
	if err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	f, err := os.Create(cleanPath) // #nosec G304 -- cleanPath sanitized with safeio.CleanUserPath
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := formatter.Write(f, rep); err != nil {
		return err
	}
	logger.Info("report written", logger.String("path", cleanPath))
	return nil
}

// finishRun renders the outcome of an upgrade or apply run and maps the
// terminal workflow errors to friendly output. An outcome that completed
// with per-file errors is still rendered before the error propagates.
func finishRun(cmd *cobra.Command, outcome *workflow.Outcome, err error, format, outputPath string) error {
	out := cmd.OutOrStdout()
	switch {
	case errors.Is(err, workflow.ErrUpToDate):
		fmt.Fprintf(out, "✅ %s\n", err)
		return nil
	case errors.Is(err, workflow.ErrAborted):
		fmt.Fprintln(out, "Aborted. No changes were made.")
		return nil
	case err != nil && outcome == nil:
		return err
	}

	if werr := writeOutcome(cmd, outcome, format, outputPath); werr != nil {
		return werr
	}
	return err
}
