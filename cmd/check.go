/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upkeephq/upkeep/internal/ops"
	"github.com/upkeephq/upkeep/internal/workflow"
	"github.com/upkeephq/upkeep/pkg/config"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a newer kit release is available",
	Long: `Check compares the version recorded in the destination's receipt
against the newest release on the configured registry channel. Nothing
is downloaded and nothing is changed.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("dest", ".", "Destination directory to check")
	checkCmd.Flags().String("package", "", "Package name (defaults to the destination's receipt)")
	checkCmd.Flags().String("registry", "", "Registry base URL (overrides configuration)")
	checkCmd.Flags().String("channel", "", "Release channel (overrides configuration)")
	checkCmd.Flags().Bool("json", false, "Output the result in JSON format")

	capabilities := ops.GetDefaultCapabilities(ops.GroupKit, ops.CategoryInspection)
	if err := ops.RegisterCommandWithTaxonomy("check", ops.GroupKit, ops.CategoryInspection, capabilities, checkCmd, "Check whether a newer kit release is available"); err != nil {
		panic(fmt.Sprintf("Failed to register check command: %v", err))
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	destDir, _ := cmd.Flags().GetString("dest")
	pkgName, _ := cmd.Flags().GetString("package")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.LoadForDest(destDir)
	if err != nil {
		return err
	}
	applySourceFlags(cmd.Flags(), cfg)

	wf := &workflow.Workflow{
		Config:   cfg,
		Source:   newRegistrySource(cfg),
		Reporter: stepLogger{},
	}

	status, err := wf.Check(cmd.Context(), destDir, pkgName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if !status.UpdateAvailable {
		fmt.Fprintf(out, "✅ %s %s is up to date\n", status.PackageName, status.InstalledVersion)
		return nil
	}
	if status.InstalledVersion == "" {
		fmt.Fprintf(out, "⬆️  %s %s is available (not installed yet)\n", status.PackageName, status.LatestVersion)
	} else {
		fmt.Fprintf(out, "⬆️  %s %s is available (installed: %s)\n", status.PackageName, status.LatestVersion, status.InstalledVersion)
	}
	fmt.Fprintln(out, "Run 'upkeep upgrade' to apply it.")
	return nil
}
