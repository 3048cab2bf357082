package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/gcode/parser"
	"github.com/amscore/gcodeslots/internal/history"
	"github.com/amscore/gcodeslots/internal/observability"
	"github.com/amscore/gcodeslots/pkg/persist"
)

// MergeCommand holds the flags for the merge command.
type MergeCommand struct {
	configPath string
	historyDir string
	target     string
	sources    []string
	noColor    bool
}

// NewMergeCommand creates and configures the merge command.
func NewMergeCommand() *cobra.Command {
	mc := &MergeCommand{}

	cobraCmd := &cobra.Command{
		Use:   "merge <file.gcode|file.3mf>",
		Short: "Fold one or more colors into a target color and record the change in history",
		Args:  cobra.ExactArgs(1),
		RunE:  mc.run,
	}

	cobraCmd.Flags().StringVar(&mc.configPath, "config", "", "path to config file")
	cobraCmd.Flags().StringVar(&mc.historyDir, "history-dir", ".gcodeslots", "directory for the merge timeline")
	cobraCmd.Flags().StringVar(&mc.target, "target", "", "target color id to merge into (required)")
	cobraCmd.Flags().StringSliceVar(&mc.sources, "sources", nil, "source color ids to fold into target (required)")
	cobraCmd.Flags().BoolVar(&mc.noColor, "no-color", false, "disable colored output")

	_ = cobraCmd.MarkFlagRequired("target")
	_ = cobraCmd.MarkFlagRequired("sources")

	return cobraCmd
}

func (mc *MergeCommand) run(cmd *cobra.Command, args []string) error {
	color.NoColor = mc.noColor //nolint:reassign // intentional override of library global

	app, err := NewApp(mc.configPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	algorithm := app.Config.Parser.Algorithm

	stats, err := parseFile(cmd.Context(), args[0], raw, parser.Algorithm(algorithm))
	if err != nil {
		return err
	}

	dir := filepath.Join(mc.historyDir, slugify(filepath.Base(stats.FileName)))
	store := history.NewFileStore(dir, "timeline", persist.NewJSONCodec())

	timeline, err := history.Load(store)
	if err != nil {
		timeline = history.New(stats, store, app.saveDebounce())
	}

	sources := make([]model.ColorID, len(mc.sources))
	for i, s := range mc.sources {
		sources[i] = model.ColorID(s)
	}

	snapshot, err := timeline.ApplyMerge(model.ColorID(mc.target), sources)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	if err := timeline.Flush(); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	app.Events.Emit(observability.Event{
		Kind:        observability.EventMergeApplied,
		TargetColor: mc.target,
		FreedSlots:  snapshot.Entry.FreedSlots,
	})

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "merged %v into %s: %d colors remain (snapshot %s)\n",
		sources, mc.target, len(snapshot.Stats.Colors), snapshot.ID)

	return nil
}

func slugify(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.ToLower(strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, name))
}

func (a *App) saveDebounce() time.Duration {
	return time.Duration(a.Config.History.SaveDebounceMs) * time.Millisecond
}
