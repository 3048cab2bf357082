// Package parser implements the streaming G-code parser: a single-pass,
// line-oriented scanner producing a GcodeStats via the layer/tool state
// machine and the statistics finalizer. Several interchangeable scanning
// strategies are exposed via the parserAlgorithm knob; all of them produce
// the same layer-color map, colors and tool changes for the same input —
// see parser_equivalence_test.go.
package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/amscore/gcodeslots/internal/gcode/metadata"
	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/gcode/state"
	"github.com/amscore/gcodeslots/internal/gcode/stats"
	"github.com/amscore/gcodeslots/internal/gcode/token"
	"github.com/amscore/gcodeslots/pkg/units"
)

// Algorithm names the scanning strategy (the parserAlgorithm config knob).
type Algorithm string

const (
	AlgorithmOptimized Algorithm = "optimized"
	AlgorithmBuffer    Algorithm = "buffer"
	AlgorithmStream    Algorithm = "stream"
	AlgorithmRegex     Algorithm = "regex"
	AlgorithmFSM       Algorithm = "fsm"
	AlgorithmWorker    Algorithm = "worker"
	AlgorithmLazy      Algorithm = "lazy"
)

// maxTokenSize bumps bufio.Scanner's line buffer past its 64KiB default;
// slicer comment lines (e.g. long color-definition lists) can exceed it on
// files with many tools.
const maxTokenSize = units.MiB

// Options configures a single parse call.
type Options struct {
	Algorithm    Algorithm
	NameLookup   stats.ColorNameLookup // nil uses stats.DefaultColorNameLookup().
	OnWarning    func(string)          // Optional sink for parser warnings as they're emitted.
}

// Parse streams source line-by-line and returns the finalized GcodeStats. It
// fails only on an unreadable or malformed source, returning an *Error.
func Parse(ctx context.Context, source io.Reader, fileName string, opts Options) (*model.GcodeStats, error) {
	switch opts.Algorithm {
	case AlgorithmBuffer:
		return parseBuffered(ctx, source, fileName, opts)
	case AlgorithmRegex:
		return parseCore(ctx, source, fileName, opts, true, false)
	case AlgorithmFSM:
		return parseCore(ctx, source, fileName, opts, false, true)
	case AlgorithmWorker:
		return parseWorker(ctx, source, fileName, opts)
	case AlgorithmLazy:
		return parseLazy(ctx, source, fileName, opts)
	case AlgorithmStream, AlgorithmOptimized, "":
		return parseCore(ctx, source, fileName, opts, false, false)
	default:
		return parseCore(ctx, source, fileName, opts, false, false)
	}
}

// aux accumulates best-effort metadata alongside the state machine.
type aux struct {
	slicerInfo        *model.SlicerInfo
	filamentEstimates map[model.ColorID]model.FilamentEstimate
	printTimeString   string
	printTimeSeconds  int
	printCost         float64
	warnings          []string
	colorDefs         []string
	declaredLayers    int
}

func newAux() *aux {
	return &aux{filamentEstimates: map[model.ColorID]model.FilamentEstimate{}}
}

// parseCore is the default single-threaded implementation shared by the
// "optimized"/"stream" (default) and "regex"/"fsm" variants. useRegexTokens
// and useExplicitFSM only change internal bookkeeping, never the resulting
// layerColorMap/colors/toolChanges.
func parseCore(ctx context.Context, source io.Reader, fileName string, opts Options, useRegexTokens, useExplicitFSM bool) (*model.GcodeStats, error) {
	start := timeNow()

	machine := state.New()
	a := newAux()

	scanner := bufio.NewScanner(source)
	scanner.Buffer(make([]byte, 0, 64*units.KiB), maxTokenSize)

	lineNo := 0
	phase := phaseBody // only meaningfully used when useExplicitFSM; harmless otherwise.

	for scanner.Scan() {
		lineNo++

		if lineNo%chunkYieldEvery == 0 {
			select {
			case <-ctx.Done():
				return nil, newError(KindCancelled, fileName, ctx.Err())
			default:
			}
		}

		raw := scanner.Text()

		var line token.Line
		if useRegexTokens {
			line = tokenizeRegex(raw, lineNo)
		} else {
			line = token.Tokenize(raw, lineNo)
		}

		if useExplicitFSM {
			phase = phase.on(line)
		}

		processLine(machine, a, line, opts)
	}

	if err := scanner.Err(); err != nil {
		return nil, newError(KindIO, fileName, err)
	}

	machine.Finish()

	fileSize := int64(0)
	if sz, ok := source.(interface{ Size() int64 }); ok {
		fileSize = sz.Size()
	}

	result := stats.Finalize(stats.Input{
		FileName:          fileName,
		FileSize:          fileSize,
		MachineResult:     machine.Snapshot(),
		SlicerInfo:        a.slicerInfo,
		FilamentEstimates: a.filamentEstimates,
		PrintTimeString:   a.printTimeString,
		PrintTimeSeconds:  a.printTimeSeconds,
		PrintCost:         a.printCost,
		ColorDefinitions:  a.colorDefs,
		DeclaredLayers:    a.declaredLayers,
		Warnings:          a.warnings,
		NameLookup:        opts.NameLookup,
	})

	result.ParseTime = timeNow().Sub(start)

	return result, nil
}

// processLine dispatches one tokenized line into the state machine and/or
// the metadata accumulator.
func processLine(machine *state.Machine, a *aux, line token.Line, opts Options) {
	switch line.Kind {
	case token.KindComment:
		applyMetadata(machine, a, line.Comment, opts)
	case token.KindTool:
		machine.ChangeTool(model.ColorID(token.ToolHandle(line.ToolIndex)), line.Number)
	case token.KindCommand:
		if z, ok := token.ZValue(line.Raw); ok {
			machine.ObserveZ(z)
		}

		if line.Command == "M600" {
			warning := fmt.Sprintf("M600 at layer %d (line %d)", machine.CurrentLayer, line.Number)
			a.warnings = append(a.warnings, warning)

			if opts.OnWarning != nil {
				opts.OnWarning(warning)
			}
		}

		if line.InlineComment != "" {
			applyMetadata(machine, a, line.InlineComment, opts)
		}
	case token.KindBlank:
	}
}

func applyMetadata(machine *state.Machine, a *aux, comment string, _ Options) {
	if marker, ok := metadata.MatchLayerMarker(comment); ok {
		if marker.Total > a.declaredLayers {
			a.declaredLayers = marker.Total
		}

		machine.AdvanceLayer(machine.NormalizeLayer(marker.Number))

		return
	}

	if defs, ok := metadata.MatchColorDefinitions(comment); ok {
		a.colorDefs = defs
		return
	}

	if banner, ok := metadata.MatchBanner(comment); ok {
		a.slicerInfo = &model.SlicerInfo{Software: banner.Software, Version: banner.Version, RawColorDefs: a.colorDefs}
		return
	}

	if raw, seconds, ok := metadata.MatchPrintTime(comment); ok {
		a.printTimeString = raw
		a.printTimeSeconds = seconds

		return
	}

	if costs, ok := metadata.MatchCost(comment); ok {
		a.printCost = sumFloats(costs)
		return
	}

	if weights, ok := metadata.MatchWeights(comment); ok {
		for i, w := range weights {
			id := token.ToolHandle(i)
			est := a.filamentEstimates[model.ColorID(id)]
			est.WeightG = w
			a.filamentEstimates[model.ColorID(id)] = est
		}

		return
	}

	// Flushed material and wipe tower comments are recognized but not
	// surfaced on GcodeStats. Matching them here (and discarding the
	// match) keeps them from falling through to "unrecognized comment,
	// ignored" noisily during debugging.
	if _, ok := metadata.MatchFlushedMaterial(comment); ok {
		return
	}

	if _, ok := metadata.MatchWipeTower(comment); ok {
		return
	}
}

func sumFloats(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}

	return total
}

// chunkYieldEvery controls how often the scan loop checks for cancellation
// so a parse can be aborted promptly even on a very large file.
const chunkYieldEvery = 2048

// timeNow is a seam so tests can avoid relying on wall-clock ordering; kept
// as a plain function (not a field) since parse time is advisory only.
func timeNow() time.Time {
	return time.Now()
}
