// Package main provides the entry point for the gcodeslots CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amscore/gcodeslots/cmd/gcodeslots/commands"
	"github.com/amscore/gcodeslots/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gcodeslots",
		Short: "Analyze multi-material G-code and plan filament slot assignments",
		Long: `gcodeslots parses multi-material G-code (or 3MF/gcode.3mf bundles),
reports per-color layer usage, and plans a fixed filament magazine's slot
assignments — pinning the colors that benefit most from a dedicated slot
and scheduling manual swaps with timing windows for the rest.

Commands:
  analyze   Parse a file and report color usage per layer
  optimize  Plan slot assignments and manual swaps
  merge     Fold colors together and record the change in history
  history   Inspect and navigate the merge timeline`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewOptimizeCommand())
	rootCmd.AddCommand(commands.NewMergeCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gcodeslots %s\n", version.String())
		},
	}
}
