/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/upkeephq/upkeep/internal/ops"
	"github.com/upkeephq/upkeep/pkg/ignore"
	"github.com/upkeephq/upkeep/pkg/manifest"
	"github.com/upkeephq/upkeep/pkg/reconcile"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the installed kit and local protections for a destination",
	Long: `Status reads the destination's receipt and .upkeepignore protections.
With --from it also plans what applying a local kit would change,
without touching anything.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("dest", ".", "Destination directory to inspect")
	statusCmd.Flags().String("from", "", "Plan against a local kit directory")
	statusCmd.Flags().Bool("json", false, "Output the result in JSON format")

	capabilities := ops.GetDefaultCapabilities(ops.GroupKit, ops.CategoryInspection)
	capabilities.RequiresNetwork = false
	if err := ops.RegisterCommandWithTaxonomy("status", ops.GroupKit, ops.CategoryInspection, capabilities, statusCmd, "Show the installed kit and local protections"); err != nil {
		panic(fmt.Sprintf("Failed to register status command: %v", err))
	}
}

// destStatus is the JSON shape of the status command output.
type destStatus struct {
	Installed   bool              `json:"installed"`
	PackageName string            `json:"packageName,omitempty"`
	Version     string            `json:"version,omitempty"`
	Source      string            `json:"source,omitempty"`
	InstalledAt *time.Time        `json:"installedAt,omitempty"`
	UserRules   int               `json:"userRules"`
	Plan        *reconcile.Result `json:"plan,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	destDir, _ := cmd.Flags().GetString("dest")
	fromDir, _ := cmd.Flags().GetString("from")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	st := destStatus{}

	rec, err := manifest.ReadReceipt(destDir)
	switch {
	case errors.Is(err, manifest.ErrNoReceipt):
		// Nothing installed yet; still report protections and plan.
	case err != nil:
		return err
	default:
		st.Installed = true
		st.PackageName = rec.PackageName
		st.Version = rec.Version
		st.Source = rec.Source
		if !rec.InstalledAt.IsZero() {
			t := rec.InstalledAt
			st.InstalledAt = &t
		}
	}

	prot, err := ignore.NewMatcher(destDir)
	if err != nil {
		return err
	}
	st.UserRules = prot.UserRuleCount()

	if fromDir != "" {
		man, err := manifest.Load(fromDir)
		if err != nil {
			return err
		}
		st.Plan = reconcile.PlanWithOptions(fromDir, destDir, man, reconcile.Options{Protected: prot.Protected})
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if !st.Installed {
		fmt.Fprintln(out, "No kit installed here (no receipt found).")
	} else {
		fmt.Fprintf(out, "📦 %s %s\n", st.PackageName, st.Version)
		if st.Source != "" {
			fmt.Fprintf(out, "   source:    %s\n", st.Source)
		}
		if st.InstalledAt != nil {
			fmt.Fprintf(out, "   installed: %s\n", st.InstalledAt.Format(time.RFC3339))
		}
	}

	if st.UserRules > 0 {
		fmt.Fprintf(out, "🛡️  %d local protection rule(s) in %s\n", st.UserRules, ignore.Filename)
	} else {
		fmt.Fprintf(out, "🛡️  no %s protections\n", ignore.Filename)
	}

	if st.Plan != nil {
		fmt.Fprintf(out, "Plan against %s:\n", fromDir)
		fmt.Fprintf(out, "   replace %d, merge %d, add %d, skip %d\n",
			len(st.Plan.Replaced), len(st.Plan.Merged), len(st.Plan.Added), len(st.Plan.Skipped))
		for _, e := range st.Plan.Errors {
			fmt.Fprintf(out, "   ⚠️  %s\n", e)
		}
	}
	return nil
}
