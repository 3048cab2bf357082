package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/gcode/parser"
	"github.com/amscore/gcodeslots/internal/observability"
	"github.com/amscore/gcodeslots/internal/optimizer"
	"github.com/amscore/gcodeslots/internal/optimizer/constraints"
)

// OptimizeCommand holds the flags for the optimize command.
type OptimizeCommand struct {
	configPath   string
	algorithm    string
	optAlgorithm string
	slotsPerUnit int
	unitCount    int
	systemType   string
	noColor      bool
}

// NewOptimizeCommand creates and configures the optimize command.
func NewOptimizeCommand() *cobra.Command {
	oc := &OptimizeCommand{}

	cobraCmd := &cobra.Command{
		Use:   "optimize <file.gcode|file.3mf>",
		Short: "Plan filament slot assignments and manual swaps for a print",
		Args:  cobra.ExactArgs(1),
		RunE:  oc.run,
	}

	cobraCmd.Flags().StringVar(&oc.configPath, "config", "", "path to config file")
	cobraCmd.Flags().StringVar(&oc.algorithm, "algorithm", "", "parser algorithm override")
	cobraCmd.Flags().StringVar(&oc.optAlgorithm, "optimizer", "", "optimization algorithm override")
	cobraCmd.Flags().IntVar(&oc.slotsPerUnit, "slots-per-unit", 0, "override configured slots per unit")
	cobraCmd.Flags().IntVar(&oc.unitCount, "unit-count", 0, "override configured unit count")
	cobraCmd.Flags().StringVar(&oc.systemType, "system-type", "", "override configured system type")
	cobraCmd.Flags().BoolVar(&oc.noColor, "no-color", false, "disable colored output")

	return cobraCmd
}

func (oc *OptimizeCommand) run(cmd *cobra.Command, args []string) error {
	app, err := NewApp(oc.configPath)
	if err != nil {
		return err
	}

	cfg := oc.systemConfiguration(app)

	algorithm := oc.algorithm
	if algorithm == "" {
		algorithm = app.Config.Parser.Algorithm
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	stats, err := parseFile(cmd.Context(), args[0], raw, parser.Algorithm(algorithm))
	if err != nil {
		return err
	}

	validation := constraints.Validate(stats, cfg)

	optAlgorithm := oc.optAlgorithm
	if optAlgorithm == "" {
		optAlgorithm = app.Config.Optimizer.Algorithm
	}

	result := optimizer.Optimize(stats, optimizer.Options{
		Algorithm:     optimizer.Algorithm(optAlgorithm),
		Configuration: cfg,
	})

	app.Events.Emit(observability.Event{
		Kind:          observability.EventOptimizeComplete,
		RequiredSlots: result.RequiredSlots,
		TotalSwaps:    result.TotalSwaps,
	})

	oc.printReport(cmd.OutOrStdout(), stats, result, validation)

	return nil
}

func (oc *OptimizeCommand) systemConfiguration(app *App) model.SystemConfiguration {
	cfg := model.SystemConfiguration{
		Type:           model.SystemType(app.Config.System.Type),
		UnitCount:      app.Config.System.UnitCount,
		SlotsPerUnit:   app.Config.System.SlotsPerUnit,
		SecondsPerSwap: app.Config.System.SecondsPerSwap,
	}

	if oc.slotsPerUnit > 0 {
		cfg.SlotsPerUnit = oc.slotsPerUnit
	}

	if oc.unitCount > 0 {
		cfg.UnitCount = oc.unitCount
	}

	if oc.systemType != "" {
		cfg.Type = model.SystemType(oc.systemType)
	}

	return cfg
}

func (oc *OptimizeCommand) printReport(w io.Writer, stats *model.GcodeStats, result model.OptimizationResult, validation model.ConstraintValidation) {
	color.NoColor = oc.noColor //nolint:reassign // intentional override of library global

	color.New(color.FgCyan).Fprintf(w, "%s: %d slots required, %d manual swaps, est. %s saved\n",
		stats.FileName, result.RequiredSlots, result.TotalSwaps, result.EstimatedTimeSaved)

	assignTbl := table.NewWriter()
	assignTbl.SetOutputMirror(w)
	assignTbl.SetStyle(table.StyleLight)
	assignTbl.AppendHeader(table.Row{"Unit", "Slot", "Color", "Permanent"})

	for _, a := range result.SlotAssignments {
		assignTbl.AppendRow(table.Row{a.UnitIndex, a.SlotIndex, a.Colors, a.IsPermanent})
	}

	assignTbl.Render()

	if len(result.ManualSwaps) > 0 {
		swapTbl := table.NewWriter()
		swapTbl.SetOutputMirror(w)
		swapTbl.SetStyle(table.StyleLight)
		swapTbl.AppendHeader(table.Row{"Unit", "Slot", "From", "To", "Earliest", "Optimal", "Latest", "Timing Confidence"})

		for _, s := range result.ManualSwaps {
			swapTbl.AppendRow(table.Row{
				s.UnitIndex, s.SlotIndex, s.FromColor, s.ToColor,
				s.EarliestLayer, s.OptimalLayer, s.LatestLayer, s.Confidence.Timing,
			})
		}

		swapTbl.Render()
	}

	if validation.HasViolations {
		color.New(color.FgRed).Fprintf(w, "%d layers exceed the configured slot budget (worst: %d simultaneous colors)\n",
			len(validation.Violations), validation.WorstSimultaneity)
	} else {
		color.New(color.FgGreen).Fprintf(w, "no layer exceeds the configured slot budget\n")
	}
}
