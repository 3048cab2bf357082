package parser

import (
	"bufio"
	"context"
	"io"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/gcode/state"
	"github.com/amscore/gcodeslots/internal/gcode/stats"
	"github.com/amscore/gcodeslots/internal/gcode/token"
	"github.com/amscore/gcodeslots/pkg/units"
)

// LineIterator exposes the "lazy" algorithm's line-at-a-time driver, for
// callers (e.g. a future interactive viewer) that want to inspect machine
// state as it evolves rather than waiting for the whole file. Parse always
// drives one to completion, at which point it reports the same layer-color
// map, colors and tool changes as every other algorithm.
type LineIterator struct {
	scanner *bufio.Scanner
	machine *state.Machine
	aux     *aux
	opts    Options
	lineNo  int
	done    bool
	err     error
}

// NewLineIterator constructs a lazy iterator over source without consuming
// anything yet.
func NewLineIterator(source io.Reader, opts Options) *LineIterator {
	scanner := bufio.NewScanner(source)
	scanner.Buffer(make([]byte, 0, 64*units.KiB), maxTokenSize)

	return &LineIterator{
		scanner: scanner,
		machine: state.New(),
		aux:     newAux(),
		opts:    opts,
	}
}

// Next advances one line, returning false once the source is exhausted or
// an error occurred (check Err in that case).
func (it *LineIterator) Next() bool {
	if it.done {
		return false
	}

	if !it.scanner.Scan() {
		it.done = true
		it.err = it.scanner.Err()
		it.machine.Finish()

		return false
	}

	it.lineNo++
	line := token.Tokenize(it.scanner.Text(), it.lineNo)
	processLine(it.machine, it.aux, line, it.opts)

	return true
}

// Err reports a scan failure, if any, after Next returns false.
func (it *LineIterator) Err() error {
	return it.err
}

// Machine exposes the live state for inspection between Next calls.
func (it *LineIterator) Machine() *state.Machine {
	return it.machine
}

// Finalize builds the final GcodeStats. Only meaningful once Next has
// returned false with a nil Err.
func (it *LineIterator) Finalize(fileName string, fileSize int64) *model.GcodeStats {
	return stats.Finalize(stats.Input{
		FileName:          fileName,
		FileSize:          fileSize,
		MachineResult:     it.machine.Snapshot(),
		SlicerInfo:        it.aux.slicerInfo,
		FilamentEstimates: it.aux.filamentEstimates,
		PrintTimeString:   it.aux.printTimeString,
		PrintTimeSeconds:  it.aux.printTimeSeconds,
		PrintCost:         it.aux.printCost,
		ColorDefinitions:  it.aux.colorDefs,
		DeclaredLayers:    it.aux.declaredLayers,
		Warnings:          it.aux.warnings,
		NameLookup:        it.opts.NameLookup,
	})
}

// parseLazy drives a LineIterator to completion, checking for cancellation
// at the same cadence as parseCore. It exists so "lazy" is selectable via
// the same Options.Algorithm knob as every other variant even when callers
// don't need the incremental interface directly.
func parseLazy(ctx context.Context, source io.Reader, fileName string, opts Options) (*model.GcodeStats, error) {
	fileSize := int64(0)
	if sz, ok := source.(interface{ Size() int64 }); ok {
		fileSize = sz.Size()
	}

	it := NewLineIterator(source, opts)

	for it.Next() {
		if it.lineNo%chunkYieldEvery == 0 {
			select {
			case <-ctx.Done():
				return nil, newError(KindCancelled, fileName, ctx.Err())
			default:
			}
		}
	}

	if it.Err() != nil {
		return nil, newError(KindIO, fileName, it.Err())
	}

	return it.Finalize(fileName, fileSize), nil
}
