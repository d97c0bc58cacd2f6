/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/upkeephq/upkeep/internal/ops"
	"github.com/upkeephq/upkeep/pkg/buildinfo"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show upkeep version information",
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().Bool("extended", false, "Show detailed build information")
	versionCmd.Flags().Bool("json", false, "Output version information in JSON format")

	capabilities := ops.GetDefaultCapabilities(ops.GroupSupport, ops.CategoryInformation)
	if err := ops.RegisterCommandWithTaxonomy("version", ops.GroupSupport, ops.CategoryInformation, capabilities, versionCmd, "Show upkeep version information"); err != nil {
		panic(fmt.Sprintf("Failed to register version command: %v", err))
	}
}

func runVersion(cmd *cobra.Command, _ []string) error {
	extended, _ := cmd.Flags().GetBool("extended")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	if jsonOutput {
		info := map[string]interface{}{
			"version":   buildinfo.Version(),
			"goVersion": runtime.Version(),
			"platform":  runtime.GOOS,
			"arch":      runtime.GOARCH,
		}
		if extended {
			if buildinfo.Commit != "" {
				info["commit"] = buildinfo.Commit
			}
			if buildinfo.BuildDate != "" {
				info["buildDate"] = buildinfo.BuildDate
			}
			if mv := buildinfo.ModuleVersion(); mv != "" {
				info["moduleVersion"] = mv
			}
		}
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "upkeep %s\n", buildinfo.Version())
	if extended {
		fmt.Fprintf(out, "  go:       %s\n", runtime.Version())
		fmt.Fprintf(out, "  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		if buildinfo.Commit != "" {
			fmt.Fprintf(out, "  commit:   %s\n", buildinfo.Commit)
		}
		if buildinfo.BuildDate != "" {
			fmt.Fprintf(out, "  built:    %s\n", buildinfo.BuildDate)
		}
	}
	return nil
}
