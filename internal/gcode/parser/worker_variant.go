package parser

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/amscore/gcodeslots/internal/gcode/metadata"
	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/gcode/state"
	"github.com/amscore/gcodeslots/internal/gcode/stats"
	"github.com/amscore/gcodeslots/internal/gcode/token"
	"github.com/amscore/gcodeslots/pkg/alg/mapx"
	"github.com/amscore/gcodeslots/pkg/units"
)

// parseWorker implements the "worker" algorithm: the source is split into
// byte ranges at layer-marker boundaries (never mid-layer, so no layer's
// tool changes are ever split across two chunks) and each range is scanned
// by its own state.Machine on a separate goroutine. A lightweight sequential
// pre-scan first establishes, for every split point, which tool was active
// and what the numbering base is — the only two facts that genuinely can't
// be recovered after the fact. The chunk results are then merged by
// sweeping layers in ascending order and unioning each chunk's locally
// accumulated colors onto the running active set, so results are identical
// to a single-threaded scan regardless of how the file is split.
func parseWorker(ctx context.Context, source io.Reader, fileName string, opts Options) (*model.GcodeStats, error) {
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, newError(KindIO, fileName, err)
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}

	plan, err := planChunks(data, workers, fileName)
	if err != nil {
		return nil, err
	}

	chunkResults := make([]chunkResult, len(plan.bounds))
	chunkErrs := make([]error, len(plan.bounds))

	var wg sync.WaitGroup
	for i, bounds := range plan.bounds {
		wg.Add(1)
		go func(i int, b chunkBounds) {
			defer wg.Done()
			chunkResults[i], chunkErrs[i] = runChunk(ctx, data[b.start:b.end], fileName, b, plan.oneBased, opts)
		}(i, bounds)
	}
	wg.Wait()

	for _, err := range chunkErrs {
		if err != nil {
			return nil, err
		}
	}

	merged := mergeChunks(chunkResults)

	result := stats.Finalize(stats.Input{
		FileName:          fileName,
		FileSize:          int64(len(data)),
		MachineResult:     merged.result,
		SlicerInfo:        merged.slicerInfo,
		FilamentEstimates: merged.filamentEstimates,
		PrintTimeString:   merged.printTimeString,
		PrintTimeSeconds:  merged.printTimeSeconds,
		PrintCost:         merged.printCost,
		ColorDefinitions:  merged.colorDefs,
		DeclaredLayers:    merged.declaredLayers,
		Warnings:          merged.warnings,
		NameLookup:        opts.NameLookup,
	})

	return result, nil
}

// chunkBounds is a half-open byte range [start, end) aligned to a line
// boundary, plus the context a worker needs to replicate sequential
// behavior from a cold start.
type chunkBounds struct {
	start, end int
	startLine  int
	entryTool  model.ColorID
	entryLayer int
	first      bool // true only for the chunk containing byte 0.
}

type chunkPlan struct {
	bounds    []chunkBounds
	oneBased  bool
}

// planChunks performs the single cheap sequential pass: it classifies every
// line just enough to track the running tool and layer number, and to
// detect the numbering base on the first marker it sees — the same latch
// rule state.Machine itself uses. It then picks up to n-1 split points at
// layer-marker line boundaries, spread evenly across the marker count.
func planChunks(data []byte, n int, fileName string) (chunkPlan, error) {
	type markerSite struct {
		lineStart int // byte offset of the marker's own line
		lineNo    int
		tool      model.ColorID
		layer     int // normalized
	}

	var (
		sites          []markerSite
		currentTool    = state.DefaultTool
		layerBaseKnown bool
		oneBased       bool
		currentLayer   int
	)

	// Walked by hand (not bufio.Scanner) so every lineStart byte offset is
	// exact regardless of LF vs CRLF terminators — chunk boundaries below
	// depend on that precision to never split a line in two.
	lineNo := 0
	pos := 0

	for pos < len(data) {
		lineNo++
		lineStart := pos

		nl := bytes.IndexByte(data[pos:], '\n')
		var raw []byte
		if nl < 0 {
			raw = data[pos:]
			pos = len(data)
		} else {
			raw = data[pos : pos+nl]
			pos += nl + 1
		}

		raw = bytes.TrimSuffix(raw, []byte("\r"))

		line := token.Tokenize(string(raw), lineNo)

		switch line.Kind {
		case token.KindTool:
			currentTool = model.ColorID(token.ToolHandle(line.ToolIndex))
		case token.KindComment:
			if marker, ok := metadata.MatchLayerMarker(line.Comment); ok {
				if !layerBaseKnown {
					oneBased = marker.Number == 1
					layerBaseKnown = true
				}

				normalized := marker.Number
				if oneBased {
					normalized = marker.Number - 1
				}

				currentLayer = normalized
				sites = append(sites, markerSite{lineStart: lineStart, lineNo: lineNo, tool: currentTool, layer: currentLayer})
			}
		}
	}

	if len(sites) == 0 || n <= 1 {
		return chunkPlan{
			bounds: []chunkBounds{{start: 0, end: len(data), startLine: 0, entryTool: state.DefaultTool, entryLayer: 0, first: true}},
			oneBased: oneBased,
		}, nil
	}

	splitEvery := len(sites) / n
	if splitEvery < 1 {
		splitEvery = 1
	}

	var picks []markerSite
	for i := splitEvery; i < len(sites) && len(picks) < n-1; i += splitEvery {
		picks = append(picks, sites[i])
	}

	final := make([]chunkBounds, 0, len(picks)+1)
	start, startLine := 0, 0
	entryTool, entryLayer := state.DefaultTool, 0

	for _, p := range picks {
		if p.lineStart <= start {
			continue
		}

		final = append(final, chunkBounds{
			start: start, end: p.lineStart, startLine: startLine,
			entryTool: entryTool, entryLayer: entryLayer, first: len(final) == 0,
		})

		start, startLine = p.lineStart, p.lineNo-1
		entryTool, entryLayer = p.tool, p.layer
	}

	final = append(final, chunkBounds{
		start: start, end: len(data), startLine: startLine,
		entryTool: entryTool, entryLayer: entryLayer, first: len(final) == 0,
	})

	return chunkPlan{bounds: final, oneBased: oneBased}, nil
}

// chunkResult is one worker's local parse of its byte range.
type chunkResult struct {
	result            state.Result
	slicerInfo        *model.SlicerInfo
	filamentEstimates map[model.ColorID]model.FilamentEstimate
	printTimeString   string
	printTimeSeconds  int
	printCost         float64
	colorDefs         []string
	declaredLayers    int
	warnings          []string
}

func runChunk(ctx context.Context, data []byte, fileName string, b chunkBounds, oneBased bool, opts Options) (chunkResult, error) {
	var machine *state.Machine
	if b.first {
		machine = state.New()
	} else {
		machine = state.NewChunk(b.entryTool, b.entryLayer, oneBased)
	}

	a := newAux()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*units.KiB), maxTokenSize)

	lineNo := b.startLine

	for scanner.Scan() {
		lineNo++

		if lineNo%chunkYieldEvery == 0 {
			select {
			case <-ctx.Done():
				return chunkResult{}, newError(KindCancelled, fileName, ctx.Err())
			default:
			}
		}

		line := token.Tokenize(scanner.Text(), lineNo)
		processLine(machine, a, line, opts)
	}

	if err := scanner.Err(); err != nil {
		return chunkResult{}, newError(KindIO, fileName, err)
	}

	machine.Finish()

	return chunkResult{
		result:            machine.Snapshot(),
		slicerInfo:        a.slicerInfo,
		filamentEstimates: a.filamentEstimates,
		printTimeString:   a.printTimeString,
		printTimeSeconds:  a.printTimeSeconds,
		printCost:         a.printCost,
		colorDefs:         a.colorDefs,
		declaredLayers:    a.declaredLayers,
		warnings:          a.warnings,
	}, nil
}

// mergeChunks combines chunk-local results into one state.Result plus
// metadata, in chunk order. Per-layer Colors lists are rebuilt by unioning
// each chunk's local accumulation onto the running active set; PrimaryColor
// and per-layer ToolChanges are taken as-is from whichever chunk owns that
// layer, since chunk boundaries never split a layer.
func mergeChunks(chunks []chunkResult) chunkResult {
	merged := chunkResult{
		result: state.Result{
			LayerColorMap:  map[int][]model.ColorID{},
			LayerDetails:   map[int]model.LayerDetail{},
			ColorFirstSeen: map[model.ColorID]int{},
			ColorLastSeen:  map[model.ColorID]int{},
		},
		filamentEstimates: map[model.ColorID]model.FilamentEstimate{},
	}

	running := []model.ColorID{}
	runningSet := map[model.ColorID]struct{}{}

	for _, c := range chunks {
		layers := mapx.SortedKeys(c.result.LayerColorMap)

		for _, l := range layers {
			local := c.result.LayerColorMap[l]

			combined := make([]model.ColorID, len(running), len(running)+len(local))
			copy(combined, running)

			for _, color := range local {
				if _, ok := runningSet[color]; !ok {
					runningSet[color] = struct{}{}
					combined = append(combined, color)
				}
			}

			running = combined
			merged.result.LayerColorMap[l] = combined

			detail := c.result.LayerDetails[l]
			detail.Colors = combined
			merged.result.LayerDetails[l] = detail
		}

		merged.result.ToolChanges = append(merged.result.ToolChanges, c.result.ToolChanges...)

		if c.result.CurrentZ > merged.result.CurrentZ {
			merged.result.CurrentZ = c.result.CurrentZ
		}

		if c.slicerInfo != nil && merged.slicerInfo == nil {
			merged.slicerInfo = c.slicerInfo
		}

		for id, est := range c.filamentEstimates {
			if _, ok := merged.filamentEstimates[id]; !ok {
				merged.filamentEstimates[id] = est
			}
		}

		if c.printTimeString != "" && merged.printTimeString == "" {
			merged.printTimeString = c.printTimeString
			merged.printTimeSeconds = c.printTimeSeconds
		}

		if c.printCost != 0 && merged.printCost == 0 {
			merged.printCost = c.printCost
		}

		if len(c.colorDefs) > 0 && len(merged.colorDefs) == 0 {
			merged.colorDefs = c.colorDefs
		}

		if c.declaredLayers > merged.declaredLayers {
			merged.declaredLayers = c.declaredLayers
		}

		merged.warnings = append(merged.warnings, c.warnings...)
	}

	allLayers := mapx.SortedKeys(merged.result.LayerColorMap)

	for _, l := range allLayers {
		for _, color := range merged.result.LayerColorMap[l] {
			if _, ok := merged.result.ColorFirstSeen[color]; !ok {
				merged.result.ColorFirstSeen[color] = l
			}

			merged.result.ColorLastSeen[color] = l
		}
	}

	return merged
}
