// Package constraints implements the feasibility validator: for every
// layer, is the number of simultaneously active colors within the
// hardware's slot budget? A violation is strictly |layerColorMap[L]| >
// totalSlots, so simultaneity is built from the per-layer color map
// itself via an interval-tree point query, rather than from each color's
// [FirstLayer, LastLayer] span, since that span includes any gap a
// non-contiguous (e.g. merged) color has between its two usage runs.
package constraints

import (
	"sort"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/pkg/alg/interval"
)

// Validate checks whether stats' color usage ever exceeds cfg's slot
// budget at any single layer, and proposes merges to resolve each
// violation.
func Validate(stats *model.GcodeStats, cfg model.SystemConfiguration) model.ConstraintValidation {
	budget := cfg.TotalSlots()
	if budget <= 0 {
		budget = 1
	}

	tree := interval.New[int, model.ColorID]()
	for id, layers := range layersByColor(stats.LayerColorMap) {
		for _, run := range contiguousRuns(layers) {
			tree.Insert(run[0], run[1], id)
		}
	}

	var out model.ConstraintValidation
	out.FirstViolation = -1
	out.LastViolation = -1

	for layer := 0; layer < stats.TotalLayers; layer++ {
		active := tree.QueryPoint(layer)
		if len(active) <= budget {
			continue
		}

		ids := make([]model.ColorID, 0, len(active))
		for _, iv := range active {
			ids = append(ids, iv.Value)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		minMerges := len(ids) - budget

		violation := model.ConstraintViolation{
			Layer:              layer,
			SimultaneousColors: ids,
			MinMergesNeeded:    minMerges,
			SuggestedMerges:    suggestMerges(ids, minMerges),
		}

		out.Violations = append(out.Violations, violation)

		if out.FirstViolation == -1 {
			out.FirstViolation = layer
		}
		out.LastViolation = layer

		if len(ids) > out.WorstSimultaneity {
			out.WorstSimultaneity = len(ids)
		}
	}

	out.HasViolations = len(out.Violations) > 0
	out.TotalImpossible = len(out.Violations)

	return out
}

// suggestMerges pairs off the lowest-priority-looking (last in sorted
// order, a stand-in for "least distinct") colors first, proposing exactly
// enough merges to bring simultaneity within budget.
func suggestMerges(ids []model.ColorID, need int) [][2]model.ColorID {
	if need <= 0 || len(ids) < 2 {
		return nil
	}

	merges := make([][2]model.ColorID, 0, need)

	for i := 0; i < need && i*2+1 < len(ids); i++ {
		merges = append(merges, [2]model.ColorID{ids[len(ids)-1-i*2], ids[len(ids)-2-i*2]})
	}

	return merges
}

// layersByColor inverts a layer map into, for each color id, the sorted
// list of layers it's present on.
func layersByColor(layerColorMap map[int][]model.ColorID) map[model.ColorID][]int {
	out := map[model.ColorID][]int{}

	for layer, colors := range layerColorMap {
		for _, id := range colors {
			out[id] = append(out[id], layer)
		}
	}

	for id := range out {
		sort.Ints(out[id])
	}

	return out
}

// contiguousRuns breaks a sorted, deduplicated layer list into [start, end]
// spans of consecutive layers.
func contiguousRuns(layers []int) [][2]int {
	if len(layers) == 0 {
		return nil
	}

	var runs [][2]int

	start := layers[0]
	prev := layers[0]

	for _, l := range layers[1:] {
		if l == prev+1 {
			prev = l
			continue
		}

		runs = append(runs, [2]int{start, prev})
		start = l
		prev = l
	}

	runs = append(runs, [2]int{start, prev})

	return runs
}
