/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upkeephq/upkeep/internal/ops"
	"github.com/upkeephq/upkeep/pkg/buildinfo"
	"github.com/upkeephq/upkeep/pkg/exitcode"
	"github.com/upkeephq/upkeep/pkg/logger"
)

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upkeep",
		Short: "Keep installed file kits up to date without losing local changes",
		Long: `Upkeep installs and upgrades file kits (bundles of config, templates,
and scaffolding) into project directories. During an upgrade every file
follows its manifest category: replaced wholesale, deep-merged with
local edits, added only when missing, or left entirely alone.

Examples:
   upkeep check                  # Is a newer release available?
   upkeep upgrade                # Upgrade this directory's kit
   upkeep apply --from ../kit    # Apply a kit from a local checkout
   upkeep status                 # What is installed here?`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	// Add global flags
	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().Bool("no-op", false, "Plan work without making changes (same as --dry-run where supported)")

	// Wire Cobra's built-in --version using upkeep's binary version
	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("upkeep {{.Version}}\n")

	// Grouped help by command group (Kit → Authoring → Support)
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		if c != cmd {
			// Subcommands keep conventional help
			if c.Long != "" {
				c.Println(c.Long)
				c.Println()
			} else if c.Short != "" {
				c.Println(c.Short)
				c.Println()
			}
			c.Print(c.UsageString())
			return
		}
		reg := ops.GetRegistry()
		c.Println(c.Long)
		c.Println()
		c.Println("Kit Commands:")
		for _, r := range reg.GetCommandsByGroup(ops.GroupKit) {
			c.Printf("  %-12s %s\n", r.Name, r.Description)
		}
		c.Println()
		c.Println("Authoring Commands:")
		for _, r := range reg.GetCommandsByGroup(ops.GroupAuthor) {
			c.Printf("  %-12s %s\n", r.Name, r.Description)
		}
		c.Println()
		c.Println("Support Commands:")
		for _, r := range reg.GetCommandsByGroup(ops.GroupSupport) {
			c.Printf("  %-12s %s\n", r.Name, r.Description)
		}
		c.Println()
		c.Println("Flags:")
		c.Print(c.UsageString())
	})

	return cmd
}

// registerSubcommands adds all subcommands to the root command.
// This is called from init() for production and can be called explicitly in tests.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(checkCmd)
	cmd.AddCommand(upgradeCmd)
	cmd.AddCommand(applyCmd)
	cmd.AddCommand(statusCmd)
	cmd.AddCommand(lintCmd)
	cmd.AddCommand(initCmd)
	cmd.AddCommand(versionCmd)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		logger.Error("Command execution failed", logger.Err(err))
		os.Exit(exitcode.GeneralError)
	}
}

func init() {
	// Register all subcommands with the production rootCmd
	registerSubcommands(rootCmd)
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	noOp, _ := cmd.Flags().GetBool("no-op")

	// Parse log level
	var logLevel logger.Level
	switch strings.ToLower(logLevelStr) {
	case "trace":
		logLevel = logger.TraceLevel
	case "debug":
		logLevel = logger.DebugLevel
	case "info":
		logLevel = logger.InfoLevel
	case "warn":
		logLevel = logger.WarnLevel
	case "error":
		logLevel = logger.ErrorLevel
	default:
		logLevel = logger.InfoLevel
	}

	// Initialize logger
	config := logger.Config{
		Level:     logLevel,
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "upkeep",
		NoOp:      noOp,
	}

	if err := logger.Initialize(config); err != nil {
		// Fallback to stderr
		if _, writeErr := os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n"); writeErr != nil {
			_ = writeErr
		}
		os.Exit(exitcode.ConfigError)
	}
}
