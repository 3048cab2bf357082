package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/amscore/gcodeslots/internal/bundle"
	"github.com/amscore/gcodeslots/internal/cache"
	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/gcode/parser"
	"github.com/amscore/gcodeslots/internal/observability"
)

// AnalyzeCommand holds the flags for the analyze command.
type AnalyzeCommand struct {
	configPath string
	algorithm  string
	noColor    bool
}

// NewAnalyzeCommand creates and configures the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	ac := &AnalyzeCommand{}

	cobraCmd := &cobra.Command{
		Use:   "analyze <file.gcode|file.3mf>",
		Short: "Parse a G-code or bundle file and report color usage per layer",
		Args:  cobra.ExactArgs(1),
		RunE:  ac.run,
	}

	cobraCmd.Flags().StringVar(&ac.configPath, "config", "", "path to config file")
	cobraCmd.Flags().StringVar(&ac.algorithm, "algorithm", "", "parser algorithm override")
	cobraCmd.Flags().BoolVar(&ac.noColor, "no-color", false, "disable colored output")

	return cobraCmd
}

func (ac *AnalyzeCommand) run(cmd *cobra.Command, args []string) error {
	app, err := NewApp(ac.configPath)
	if err != nil {
		return err
	}

	stats, err := ac.analyze(cmd.Context(), app, args[0])
	if err != nil {
		return err
	}

	app.Events.Emit(observability.Event{Kind: observability.EventParseProgress, File: stats.FileName, LayersSoFar: stats.TotalLayers})

	ac.printReport(cmd.OutOrStdout(), stats)

	return nil
}

func (ac *AnalyzeCommand) analyze(ctx context.Context, app *App, path string) (*model.GcodeStats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	algorithm := ac.algorithm
	if algorithm == "" {
		algorithm = app.Config.Parser.Algorithm
	}

	if app.Cache != nil {
		key := cache.Key{
			FileHash:           cache.HashFile(raw),
			ParserAlgorithm:    algorithm,
			ConfigHash:         app.ConfigHash(),
			OptimizerAlgorithm: app.Config.Optimizer.Algorithm,
		}
		if entry, ok := app.Cache.Get(key); ok {
			app.Logger.Debug("cache hit", "path", path)
			return entry.Stats, nil
		}

		stats, err := parseFile(ctx, path, raw, parser.Algorithm(algorithm))
		if err != nil {
			return nil, err
		}

		app.Cache.Put(key, cache.Entry{Stats: stats})

		return stats, nil
	}

	return parseFile(ctx, path, raw, parser.Algorithm(algorithm))
}

func parseFile(ctx context.Context, path string, raw []byte, algorithm parser.Algorithm) (*model.GcodeStats, error) {
	resolved, err := bundle.Resolve(path, raw)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	defer resolved.Gcode.Close()

	stats, err := parser.Parse(ctx, resolved.Gcode, resolved.Name, parser.Options{Algorithm: algorithm})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	stats.Is3mfFile = resolved.Is3mf

	if len(resolved.Manifest) > 0 {
		meta, err := bundle.ParseManifest(resolved.Manifest)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		stats.BundleMetadata = meta
	}

	return stats, nil
}

func (ac *AnalyzeCommand) printReport(w io.Writer, stats *model.GcodeStats) {
	color.NoColor = ac.noColor //nolint:reassign // intentional override of library global

	color.New(color.FgCyan).Fprintf(w, "%s (%s): %d layers, %d colors\n",
		stats.FileName, humanize.Bytes(uint64(stats.FileSize)), stats.TotalLayers, len(stats.Colors))

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Color", "Name", "Hex", "First Layer", "Last Layer", "Usage %"})

	for _, c := range stats.Colors {
		tbl.AppendRow(table.Row{
			c.ID, c.Name, c.Hex, c.FirstLayer, c.LastLayer,
			fmt.Sprintf("%.1f%%", c.UsagePercentage()*100),
		})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", "Tool changes", len(stats.ToolChanges)})
	tbl.Render()
}
