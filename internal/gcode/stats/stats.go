// Package stats implements the statistics finalizer: it takes the raw
// state-machine result plus best-effort slicer metadata and
// produces the GcodeStats aggregate every downstream component consumes —
// color entities, usage ranges, hex deduplication, and filament estimates.
package stats

import (
	"sort"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/gcode/state"
	"github.com/amscore/gcodeslots/internal/gcode/token"
)

// Input bundles everything the finalizer needs: the machine's raw
// accumulation plus whatever metadata the parser picked up along the way.
type Input struct {
	FileName string
	FileSize int64

	MachineResult state.Result

	SlicerInfo        *model.SlicerInfo
	FilamentEstimates map[model.ColorID]model.FilamentEstimate
	PrintTimeString   string
	PrintTimeSeconds  int
	PrintCost         float64
	ColorDefinitions  []string // Raw hex/name tokens, in slot order (T0, T1, ...).
	DeclaredLayers    int      // From the slicer's "num/total_layer_count", 0 if never seen.
	Warnings          []string

	NameLookup ColorNameLookup // nil uses DefaultColorNameLookup().
}

// Finalize builds the GcodeStats aggregate from Input. It never mutates its
// input's maps in place.
func Finalize(in Input) *model.GcodeStats {
	lookup := in.NameLookup
	if lookup == nil {
		lookup = DefaultColorNameLookup()
	}

	totalLayers := observedLayerCount(in.MachineResult.LayerColorMap)
	if in.DeclaredLayers > totalLayers {
		totalLayers = in.DeclaredLayers
	}

	colors := buildColors(in, totalLayers, lookup)

	ranges := BuildUsageRanges(colors)

	dedup, survivors := dedupeByHex(colors)

	toolChanges := in.MachineResult.ToolChanges
	layerColorMap := in.MachineResult.LayerColorMap

	if dedup != nil {
		toolChanges = remapToolChanges(toolChanges, dedup.Redirects)
		layerColorMap = remapLayerColorMap(layerColorMap, dedup.Redirects)
	}

	out := &model.GcodeStats{
		FileName:          in.FileName,
		FileSize:          in.FileSize,
		TotalLayers:       totalLayers,
		TotalHeight:       in.MachineResult.CurrentZ,
		Colors:            survivors,
		ToolChanges:       toolChanges,
		LayerColorMap:     layerColorMap,
		ColorUsageRanges:  ranges,
		LayerDetails:      in.MachineResult.LayerDetails,
		SlicerInfo:        in.SlicerInfo,
		FilamentEstimates: in.FilamentEstimates,
		PrintTimeString:   in.PrintTimeString,
		PrintTimeSeconds:  in.PrintTimeSeconds,
		PrintCost:         in.PrintCost,
		DeduplicationInfo: dedup,
		ParserWarnings:    in.Warnings,
	}

	return out
}

// observedLayerCount returns one past the highest layer key present.
func observedLayerCount(layerColorMap map[int][]model.ColorID) int {
	max := -1
	for l := range layerColorMap {
		if l > max {
			max = l
		}
	}

	return max + 1
}

// buildColors constructs one Color entity per tool id that appears anywhere
// in the layer-color map, in first-appearance order. Nothing is filtered
// out: the pre-seeded default tool is kept even when the file never selects
// it explicitly.
func buildColors(in Input, totalLayers int, lookup ColorNameLookup) []model.Color {
	layersUsed := map[model.ColorID]map[int]struct{}{}
	partialLayers := map[model.ColorID]map[int]struct{}{}

	layers := make([]int, 0, len(in.MachineResult.LayerColorMap))
	for l := range in.MachineResult.LayerColorMap {
		layers = append(layers, l)
	}
	sort.Ints(layers)

	order := make([]model.ColorID, 0)
	seen := map[model.ColorID]struct{}{}

	for _, l := range layers {
		colorsAtLayer := in.MachineResult.LayerColorMap[l]

		for _, c := range colorsAtLayer {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				order = append(order, c)
			}

			if layersUsed[c] == nil {
				layersUsed[c] = map[int]struct{}{}
			}
			layersUsed[c][l] = struct{}{}

			if len(colorsAtLayer) > 1 {
				if partialLayers[c] == nil {
					partialLayers[c] = map[int]struct{}{}
				}
				partialLayers[c][l] = struct{}{}
			}
		}
	}

	hexByID := assignHexSlots(in.ColorDefinitions)

	colors := make([]model.Color, 0, len(order))

	for _, id := range order {
		hex := hexByID[id]

		name := ""
		if hex != "" {
			if n, _ := lookup.Name(hex); n != "" {
				name = n
			}
		}

		colors = append(colors, model.Color{
			ID:            id,
			Name:          name,
			Hex:           hex,
			FirstLayer:    in.MachineResult.ColorFirstSeen[id],
			LastLayer:     in.MachineResult.ColorLastSeen[id],
			LayersUsed:    layersUsed[id],
			PartialLayers: partialLayers[id],
			TotalLayers:   totalLayers,
		})
	}

	return colors
}

// assignHexSlots maps each declared color-definition token, in slot order
// (T0, T1, ...), to its normalized hex.
func assignHexSlots(defs []string) map[model.ColorID]string {
	out := make(map[model.ColorID]string, len(defs))

	for i, raw := range defs {
		if hex, ok := normalizeHex(raw); ok {
			out[model.ColorID(token.ToolHandle(i))] = hex
		}
	}

	return out
}

// BuildUsageRanges breaks each color's sorted LayersUsed into contiguous
// runs. A color whose entire usage is one unbroken span has Continuous=true
// on that single range; a color used across several disjoint spans gets one
// ColorRange per span, each with Continuous=false. Exported so callers that
// reshape a GcodeStats after the fact (e.g. a manual merge) can rebuild
// ranges from the resulting colors instead of carrying stale ones forward.
func BuildUsageRanges(colors []model.Color) []model.ColorRange {
	var out []model.ColorRange

	for _, c := range colors {
		layers := c.SortedLayersUsed()
		if len(layers) == 0 {
			continue
		}

		var runs []model.ColorRange

		runStart := layers[0]
		prev := layers[0]

		flush := func(end int) {
			runs = append(runs, model.ColorRange{ColorID: c.ID, StartLayer: runStart, EndLayer: end})
		}

		for _, l := range layers[1:] {
			if l == prev+1 {
				prev = l
				continue
			}

			flush(prev)
			runStart = l
			prev = l
		}
		flush(prev)

		continuous := len(runs) == 1
		for i := range runs {
			runs[i].Continuous = continuous
		}

		out = append(out, runs...)
	}

	return out
}

// remapLayerColorMap rewrites every redirected source id in layerColorMap to
// its survivor, collapsing the resulting duplicates within a layer.
func remapLayerColorMap(layerColorMap map[int][]model.ColorID, redirects map[model.ColorID]model.ColorID) map[int][]model.ColorID {
	out := make(map[int][]model.ColorID, len(layerColorMap))
	for layer, colors := range layerColorMap {
		out[layer] = remapColorIDs(colors, redirects)
	}

	return out
}

// remapColorIDs rewrites every redirected id to its survivor, preserving
// original order and dropping the resulting duplicates.
func remapColorIDs(colors []model.ColorID, redirects map[model.ColorID]model.ColorID) []model.ColorID {
	out := make([]model.ColorID, 0, len(colors))
	seen := map[model.ColorID]struct{}{}

	for _, c := range colors {
		id := c
		if r, ok := redirects[id]; ok {
			id = r
		}

		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

// remapToolChanges rewrites every redirected source id in toolChanges to its
// survivor, on both sides of the change.
func remapToolChanges(toolChanges []model.ToolChange, redirects map[model.ColorID]model.ColorID) []model.ToolChange {
	out := make([]model.ToolChange, len(toolChanges))

	for i, tc := range toolChanges {
		if r, ok := redirects[tc.From]; ok {
			tc.From = r
		}

		if r, ok := redirects[tc.To]; ok {
			tc.To = r
		}

		out[i] = tc
	}

	return out
}

// dedupeByHex folds colors sharing an identical normalized hex into the
// earliest-appearing survivor. LayerColorMap and ToolChanges are redirected
// to the survivor separately, once the caller has the full redirect map.
func dedupeByHex(colors []model.Color) (*model.DeduplicationInfo, []model.Color) {
	groups := map[string][]model.Color{}
	order := []string{}

	for _, c := range colors {
		if c.Hex == "" {
			continue
		}

		if _, ok := groups[c.Hex]; !ok {
			order = append(order, c.Hex)
		}

		groups[c.Hex] = append(groups[c.Hex], c)
	}

	redirects := map[model.ColorID]model.ColorID{}
	var freed []model.ColorID
	survivorByID := map[model.ColorID]model.ColorID{}

	for _, hex := range order {
		group := groups[hex]
		if len(group) < 2 {
			continue
		}

		sort.Slice(group, func(i, j int) bool { return group[i].FirstLayer < group[j].FirstLayer })

		survivor := group[0].ID
		for _, dup := range group[1:] {
			redirects[dup.ID] = survivor
			freed = append(freed, dup.ID)
			survivorByID[dup.ID] = survivor
		}
	}

	if len(redirects) == 0 {
		return nil, colors
	}

	merged := make(map[model.ColorID]model.Color, len(colors))
	order2 := make([]model.ColorID, 0, len(colors))

	for _, c := range colors {
		target := c.ID
		if s, ok := survivorByID[c.ID]; ok {
			target = s
		}

		existing, ok := merged[target]
		if !ok {
			existing = c
			existing.ID = target
			existing.LayersUsed = cloneLayerSet(c.LayersUsed)
			existing.PartialLayers = cloneLayerSet(c.PartialLayers)
			order2 = append(order2, target)
		} else {
			for l := range c.LayersUsed {
				existing.LayersUsed[l] = struct{}{}
			}
			for l := range c.PartialLayers {
				existing.PartialLayers[l] = struct{}{}
			}
			if c.FirstLayer < existing.FirstLayer {
				existing.FirstLayer = c.FirstLayer
			}
			if c.LastLayer > existing.LastLayer {
				existing.LastLayer = c.LastLayer
			}
		}

		merged[target] = existing
	}

	out := make([]model.Color, 0, len(order2))
	for _, id := range order2 {
		out = append(out, merged[id])
	}

	return &model.DeduplicationInfo{Redirects: redirects, FreedSlots: freed}, out
}

func cloneLayerSet(set map[int]struct{}) map[int]struct{} {
	out := make(map[int]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}

	return out
}
