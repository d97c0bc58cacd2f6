/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/upkeephq/upkeep/internal/ops"
	"github.com/upkeephq/upkeep/pkg/manifest"
	"github.com/upkeephq/upkeep/pkg/safeio"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Scaffold a kit manifest in a kit source directory",
	Long: `Init writes a starter kit.manifest.json into a kit source directory.
The starter categories are examples; edit them to match the kit's
layout, then 'upkeep lint' the result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("package", "", "Package name (defaults to the directory name)")
	initCmd.Flags().String("kit-version", "0.1.0", "Initial kit version")
	initCmd.Flags().Bool("force", false, "Overwrite an existing manifest")
	initCmd.Flags().Bool("dry-run", false, "Print the manifest without writing it")

	capabilities := ops.GetDefaultCapabilities(ops.GroupAuthor, ops.CategoryScaffolding)
	if err := ops.RegisterCommandWithTaxonomy("init", ops.GroupAuthor, ops.CategoryScaffolding, capabilities, initCmd, "Scaffold a kit manifest in a kit source directory"); err != nil {
		panic(fmt.Sprintf("Failed to register init command: %v", err))
	}
}

const starterManifest = `{
  "version": %q,
  "packageName": %q,
  "fileCategories": {
    "alwaysReplace": ["templates/**"],
    "mergeIfChanged": ["config/settings.json"],
    "addOnly": ["examples/**"],
    "neverTouch": [".env"]
  }
}
`

func runInit(cmd *cobra.Command, args []string) error {
	pkgName, _ := cmd.Flags().GetString("package")
	kitVersion, _ := cmd.Flags().GetString("kit-version")
	force, _ := cmd.Flags().GetBool("force")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if noOp, _ := cmd.Flags().GetBool("no-op"); noOp {
		dryRun = true
	}

	targetDir := "."
	if len(args) == 1 {
		targetDir = args[0]
	}
	cleanDir, err := safeio.CleanUserPath(targetDir)
	if err != nil {
		return fmt.Errorf("invalid directory: %w", err)
	}

	if pkgName == "" {
		abs, err := filepath.Abs(cleanDir)
		if err != nil {
			return err
		}
		pkgName = filepath.Base(abs)
	}

	content := fmt.Sprintf(starterManifest, kitVersion, pkgName)

	// The scaffold must satisfy its own schema before it hits disk.
	if _, err := manifest.Parse([]byte(content)); err != nil {
		return fmt.Errorf("generated manifest is invalid: %w", err)
	}

	out := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprint(out, content)
		return nil
	}

	manifestPath := filepath.Join(cleanDir, manifest.Filename)
	if _, err := os.Stat(manifestPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", manifestPath)
	}

	if err := os.MkdirAll(cleanDir, 0o750); err != nil {
		return fmt.Errorf("create kit directory: %w", err)
	}
	if err := os.WriteFile(manifestPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	fmt.Fprintf(out, "✅ Created %s for %s %s\n", manifestPath, pkgName, kitVersion)
	fmt.Fprintln(out, "Edit the fileCategories to match the kit, then run 'upkeep lint' on it.")
	return nil
}
