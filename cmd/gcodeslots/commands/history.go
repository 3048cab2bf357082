package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/amscore/gcodeslots/internal/history"
	"github.com/amscore/gcodeslots/pkg/persist"
)

// NewHistoryCommand creates the parent "history" command and its
// undo/redo/show/export subcommands over a merge timeline.
func NewHistoryCommand() *cobra.Command {
	var historyDir string
	var noColor bool

	cobraCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and navigate the merge timeline for a G-code file",
	}

	cobraCmd.PersistentFlags().StringVar(&historyDir, "history-dir", ".gcodeslots", "directory for merge timelines")
	cobraCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	cobraCmd.AddCommand(historyShowCommand(&historyDir, &noColor))
	cobraCmd.AddCommand(historyUndoCommand(&historyDir, &noColor))
	cobraCmd.AddCommand(historyRedoCommand(&historyDir, &noColor))
	cobraCmd.AddCommand(historyExportCommand(&historyDir))

	return cobraCmd
}

func openTimeline(historyDir, fileName string) (*history.MergeTimeline, *history.FileStore, error) {
	dir := filepath.Join(historyDir, slugify(fileName))
	store := history.NewFileStore(dir, "timeline", persist.NewJSONCodec())

	timeline, err := history.Load(store)
	if err != nil {
		return nil, nil, fmt.Errorf("no history recorded for %s: %w", fileName, err)
	}

	return timeline, store, nil
}

func historyShowCommand(historyDir, noColor *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <file.gcode>",
		Short: "List every snapshot in the merge timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = *noColor //nolint:reassign // intentional override of library global

			timeline, _, err := openTimeline(*historyDir, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			current := timeline.Current().ID

			for _, s := range timeline.Snapshots() {
				marker := "  "
				if s.ID == current {
					marker = "->"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (parent %s) %s\n", marker, s.ID, s.ParentID, s.Entry.Description)
			}

			return nil
		},
	}
}

func historyUndoCommand(historyDir, noColor *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <file.gcode>",
		Short: "Move the timeline back to the previous snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = *noColor //nolint:reassign // intentional override of library global

			timeline, store, err := openTimeline(*historyDir, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			if err := timeline.Undo(); err != nil {
				return err
			}

			if err := store.Save(timeline.Snapshots(), timeline.Current().ID); err != nil {
				return fmt.Errorf("save history: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "now at %s\n", timeline.Current().ID)

			return nil
		},
	}
}

func historyRedoCommand(historyDir, noColor *bool) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "redo <file.gcode>",
		Short: "Move the timeline forward to a child snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color.NoColor = *noColor //nolint:reassign // intentional override of library global

			timeline, store, err := openTimeline(*historyDir, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			if to != "" {
				err = timeline.RedoTo(to)
			} else {
				err = timeline.Redo()
			}

			if err != nil {
				return err
			}

			if err := store.Save(timeline.Snapshots(), timeline.Current().ID); err != nil {
				return fmt.Errorf("save history: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "now at %s\n", timeline.Current().ID)

			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "disambiguate a branch by snapshot id")

	return cmd
}

func historyExportCommand(historyDir *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <file.gcode>",
		Short: "Export the merge timeline as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeline, _, err := openTimeline(*historyDir, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			data, err := history.ExportYAML(timeline)
			if err != nil {
				return fmt.Errorf("export history: %w", err)
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			return os.WriteFile(output, data, 0o600)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")

	return cmd
}
