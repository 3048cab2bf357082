// Package merge implements the manual color-merge engine: folding one or
// more source colors into a target, with value semantics (the input
// GcodeStats is never mutated; a new one is returned).
package merge

import (
	"fmt"

	"github.com/amscore/gcodeslots/internal/gcode/model"
	"github.com/amscore/gcodeslots/internal/gcode/stats"
	"github.com/amscore/gcodeslots/pkg/alg/mapx"
)

// ErrorKind classifies why a merge request couldn't be applied.
type ErrorKind int

const (
	KindUnknownTarget ErrorKind = iota
	KindUnknownSource
	KindTargetEqualsSource
	KindNoop
)

// Error is returned when a merge request is invalid.
type Error struct {
	Kind  ErrorKind
	Color model.ColorID
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnknownTarget:
		return fmt.Sprintf("merge: unknown target color %q", e.Color)
	case KindUnknownSource:
		return fmt.Sprintf("merge: unknown source color %q", e.Color)
	case KindTargetEqualsSource:
		return fmt.Sprintf("merge: target and source are the same color %q", e.Color)
	case KindNoop:
		return "merge: no source colors given"
	default:
		return "merge: unknown error"
	}
}

// Merge folds each of sources into target, returning a new GcodeStats that
// never shares mutable state with in. The caller's GcodeStats is untouched.
func Merge(in *model.GcodeStats, target model.ColorID, sources []model.ColorID) (*model.GcodeStats, model.MergeHistoryEntry, error) {
	if len(sources) == 0 {
		return nil, model.MergeHistoryEntry{}, &Error{Kind: KindNoop}
	}

	targetColor, ok := in.ColorByID(target)
	if !ok {
		return nil, model.MergeHistoryEntry{}, &Error{Kind: KindUnknownTarget, Color: target}
	}

	for _, s := range sources {
		if s == target {
			return nil, model.MergeHistoryEntry{}, &Error{Kind: KindTargetEqualsSource, Color: s}
		}

		if _, ok := in.ColorByID(s); !ok {
			return nil, model.MergeHistoryEntry{}, &Error{Kind: KindUnknownSource, Color: s}
		}
	}

	sourceSet := make(map[model.ColorID]struct{}, len(sources))
	for _, s := range sources {
		sourceSet[s] = struct{}{}
	}

	out := cloneStats(in)
	targetColor, _ = out.ColorByID(target)

	mergedColors := make([]model.Color, 0, len(out.Colors))

	for _, c := range out.Colors {
		if c.ID == target {
			continue // rebuilt below, after folding every source in.
		}

		if _, isSource := sourceSet[c.ID]; isSource {
			targetColor = foldColor(targetColor, c)
			continue
		}

		mergedColors = append(mergedColors, c)
	}

	out.Colors = append(mergedColors, targetColor)

	remapLayerColorMap(out, target, sourceSet)
	remapToolChanges(out, target, sourceSet)
	remapLayerDetails(out, target, sourceSet)

	// PartialLayers depends on how many distinct ids share a layer, which
	// changes once sources collapse into target; recompute from the
	// already-remapped layer map rather than trust foldColor's raw union.
	recomputePartialLayers(out.Colors, out.LayerColorMap)
	out.ColorUsageRanges = stats.BuildUsageRanges(out.Colors)

	entry := model.MergeHistoryEntry{
		TargetColorID:  target,
		SourceColorIDs: append([]model.ColorID(nil), sources...),
		FreedSlots:     len(sources),
		Description:    fmt.Sprintf("merged %d color(s) into %s", len(sources), target),
	}

	return out, entry, nil
}

// cloneStats returns a deep-enough copy: every map/slice GcodeStats exposes
// is duplicated so callers can mutate the result freely.
func cloneStats(in *model.GcodeStats) *model.GcodeStats {
	out := *in

	out.Colors = mapx.CloneSlice(in.Colors)
	for i := range out.Colors {
		out.Colors[i].LayersUsed = mapx.Clone(in.Colors[i].LayersUsed)
		out.Colors[i].PartialLayers = mapx.Clone(in.Colors[i].PartialLayers)
	}

	out.ToolChanges = mapx.CloneSlice(in.ToolChanges)

	out.LayerColorMap = make(map[int][]model.ColorID, len(in.LayerColorMap))
	for layer, colors := range in.LayerColorMap {
		out.LayerColorMap[layer] = mapx.CloneSlice(colors)
	}

	out.LayerDetails = make(map[int]model.LayerDetail, len(in.LayerDetails))
	for layer, detail := range in.LayerDetails {
		d := detail
		d.Colors = mapx.CloneSlice(detail.Colors)
		d.ToolChanges = mapx.CloneSlice(detail.ToolChanges)
		out.LayerDetails[layer] = d
	}

	out.ColorUsageRanges = mapx.CloneSlice(in.ColorUsageRanges)

	return &out
}

// foldColor merges source's usage into target in place, returning the
// updated target. PartialLayers is intentionally left alone here: it's
// recomputed afterward from the remapped layer map, once source's id no
// longer appears in it separately from target's.
func foldColor(target, source model.Color) model.Color {
	for l := range source.LayersUsed {
		target.LayersUsed[l] = struct{}{}
	}

	if source.FirstLayer < target.FirstLayer {
		target.FirstLayer = source.FirstLayer
	}

	if source.LastLayer > target.LastLayer {
		target.LastLayer = source.LastLayer
	}

	return target
}

// recomputePartialLayers rebuilds each color's PartialLayers set from the
// (already remapped) layer map, so a layer where target and a folded
// source were the only two occupants stops counting as partial now that
// they share one id, while a layer where target overlaps a third color
// still does.
func recomputePartialLayers(colors []model.Color, layerColorMap map[int][]model.ColorID) {
	partial := map[model.ColorID]map[int]struct{}{}

	for layer, ids := range layerColorMap {
		if len(ids) <= 1 {
			continue
		}

		for _, id := range ids {
			if partial[id] == nil {
				partial[id] = map[int]struct{}{}
			}
			partial[id][layer] = struct{}{}
		}
	}

	for i := range colors {
		colors[i].PartialLayers = partial[colors[i].ID]
	}
}

func remapLayerColorMap(out *model.GcodeStats, target model.ColorID, sources map[model.ColorID]struct{}) {
	for layer, colors := range out.LayerColorMap {
		out.LayerColorMap[layer] = remapColorSlice(colors, target, sources)
	}
}

func remapLayerDetails(out *model.GcodeStats, target model.ColorID, sources map[model.ColorID]struct{}) {
	for layer, detail := range out.LayerDetails {
		detail.Colors = remapColorSlice(detail.Colors, target, sources)

		if _, isSource := sources[detail.PrimaryColor]; isSource {
			detail.PrimaryColor = target
		}

		for i := range detail.ToolChanges {
			remapToolChange(&detail.ToolChanges[i], target, sources)
		}

		out.LayerDetails[layer] = detail
	}
}

func remapToolChanges(out *model.GcodeStats, target model.ColorID, sources map[model.ColorID]struct{}) {
	for i := range out.ToolChanges {
		remapToolChange(&out.ToolChanges[i], target, sources)
	}
}

func remapToolChange(tc *model.ToolChange, target model.ColorID, sources map[model.ColorID]struct{}) {
	if _, ok := sources[tc.From]; ok {
		tc.From = target
	}

	if _, ok := sources[tc.To]; ok {
		tc.To = target
	}
}

// remapColorSlice rewrites every source id to target and drops the
// resulting duplicates, preserving original order.
func remapColorSlice(colors []model.ColorID, target model.ColorID, sources map[model.ColorID]struct{}) []model.ColorID {
	out := make([]model.ColorID, 0, len(colors))
	seen := map[model.ColorID]struct{}{}

	for _, c := range colors {
		id := c
		if _, ok := sources[id]; ok {
			id = target
		}

		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}
