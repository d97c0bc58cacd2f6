/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upkeephq/upkeep/internal/ops"
	"github.com/upkeephq/upkeep/internal/workflow"
	"github.com/upkeephq/upkeep/pkg/config"
)

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a kit from a local directory",
	Long: `Apply reconciles a kit from a local directory into the destination,
skipping the registry entirely. The directory must hold the kit's
manifest at its root. Useful for kit authors testing changes and for
air-gapped installs.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().String("from", "", "Kit source directory (must contain the manifest)")
	applyCmd.Flags().String("dest", ".", "Destination directory to apply into")
	applyCmd.Flags().Bool("no-backup", false, "Skip the pre-apply git snapshot")
	applyCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	applyCmd.Flags().Bool("dry-run", false, "Plan the apply without changing any files")
	applyCmd.Flags().String("format", "concise", "Report format: concise|markdown|json")
	applyCmd.Flags().String("output", "", "Write the report to a file instead of stdout")
	_ = applyCmd.MarkFlagRequired("from")

	capabilities := ops.GetDefaultCapabilities(ops.GroupKit, ops.CategoryReconciliation)
	if err := ops.RegisterCommandWithTaxonomy("apply", ops.GroupKit, ops.CategoryReconciliation, capabilities, applyCmd, "Apply a kit from a local directory"); err != nil {
		panic(fmt.Sprintf("Failed to register apply command: %v", err))
	}
}

func runApply(cmd *cobra.Command, _ []string) error {
	sourceDir, _ := cmd.Flags().GetString("from")
	destDir, _ := cmd.Flags().GetString("dest")
	yes, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	if noOp, _ := cmd.Flags().GetBool("no-op"); noOp {
		dryRun = true
	}

	cfg, err := config.LoadForDest(destDir)
	if err != nil {
		return err
	}
	applySourceFlags(cmd.Flags(), cfg)

	wf := &workflow.Workflow{
		Config:   cfg,
		Backup:   newBackupAdapter(cfg),
		Confirm:  newConfirmer(cmd, yes),
		Reporter: stepLogger{},
	}

	outcome, err := wf.Apply(workflow.ApplyOptions{
		SourceDir: sourceDir,
		DestDir:   destDir,
		DryRun:    dryRun,
	})
	return finishRun(cmd, outcome, err, format, output)
}
