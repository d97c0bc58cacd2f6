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

// upgradeCmd represents the upgrade command
var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade the destination to the newest kit release",
	Long: `Upgrade fetches the newest release for the destination's kit from the
registry and reconciles its files in. Every file follows its manifest
category; a .upkeepignore file in the destination protects local files
from being touched at all.

When the destination is a git repository a snapshot commit is made
first, so a bad upgrade is one 'git revert' away.`,
	RunE: runUpgrade,
}

func init() {
	upgradeCmd.Flags().String("dest", ".", "Destination directory to upgrade")
	upgradeCmd.Flags().String("package", "", "Package name (required for a first install)")
	upgradeCmd.Flags().String("registry", "", "Registry base URL (overrides configuration)")
	upgradeCmd.Flags().String("channel", "", "Release channel (overrides configuration)")
	upgradeCmd.Flags().Bool("force", false, "Apply the newest release even when it is not newer")
	upgradeCmd.Flags().Bool("no-backup", false, "Skip the pre-upgrade git snapshot")
	upgradeCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	upgradeCmd.Flags().Bool("dry-run", false, "Plan the upgrade without changing any files")
	upgradeCmd.Flags().String("format", "concise", "Report format: concise|markdown|json")
	upgradeCmd.Flags().String("output", "", "Write the report to a file instead of stdout")

	capabilities := ops.GetDefaultCapabilities(ops.GroupKit, ops.CategoryReconciliation)
	capabilities.RequiresNetwork = true
	if err := ops.RegisterCommandWithTaxonomy("upgrade", ops.GroupKit, ops.CategoryReconciliation, capabilities, upgradeCmd, "Upgrade the destination to the newest kit release"); err != nil {
		panic(fmt.Sprintf("Failed to register upgrade command: %v", err))
	}
}

func runUpgrade(cmd *cobra.Command, _ []string) error {
	destDir, _ := cmd.Flags().GetString("dest")
	pkgName, _ := cmd.Flags().GetString("package")
	force, _ := cmd.Flags().GetBool("force")
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
		Source:   newRegistrySource(cfg),
		Backup:   newBackupAdapter(cfg),
		Confirm:  newConfirmer(cmd, yes),
		Reporter: stepLogger{},
	}

	outcome, err := wf.Upgrade(cmd.Context(), workflow.UpgradeOptions{
		DestDir:     destDir,
		PackageName: pkgName,
		Force:       force,
		DryRun:      dryRun,
	})
	return finishRun(cmd, outcome, err, format, output)
}
