// Package metadata implements the slicer-comment grammars: layer markers,
// color definitions, the slicer banner, print time, cost, and filament
// weight. Every match is best-effort; an unrecognized comment is simply
// ignored.
package metadata

import (
	"regexp"
	"strconv"
	"strings"
)

// LayerMarker is a recognized layer-boundary comment.
type LayerMarker struct {
	Number int // The raw number as it appeared in the file (not yet base-normalized).
	Total  int // 0 when the comment did not carry a total.
}

var layerMarkerPatterns = []*regexp.Regexp{
	// "; layer num/total_layer_count: <n>/<N>"
	regexp.MustCompile(`(?i)^layer\s+num/total_layer_count:\s*(\d+)/(\d+)`),
	// "; layer #<n>"
	regexp.MustCompile(`(?i)^layer\s*#\s*(\d+)`),
	// ";LAYER:<n>" (no space after the leading ';', handled by caller stripping it)
	regexp.MustCompile(`(?i)^layer:\s*(\d+)`),
	// "; layer <n>"
	regexp.MustCompile(`(?i)^layer\s+(\d+)\s*$`),
}

// MatchLayerMarker tries each recognized layer-marker grammar against a
// comment body (text already stripped of the leading ';').
func MatchLayerMarker(comment string) (LayerMarker, bool) {
	body := strings.TrimSpace(comment)

	for i, re := range layerMarkerPatterns {
		m := re.FindStringSubmatch(body)
		if m == nil {
			continue
		}

		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		marker := LayerMarker{Number: n}

		if i == 0 && len(m) > 2 {
			total, err := strconv.Atoi(m[2])
			if err == nil {
				marker.Total = total
			}
		}

		return marker, true
	}

	return LayerMarker{}, false
}

var (
	extruderColourRe = regexp.MustCompile(`(?i)^extruder_colour\s*=\s*(.+)$`)
	filamentColourRe = regexp.MustCompile(`(?i)^filament_colour\s*=\s*(.+)$`)
)

// MatchColorDefinitions recognizes "; extruder_colour = ..." and
// "; filament_colour = ..." comments, returning the semicolon-separated
// tokens (hex triplets or color names) in slot order.
func MatchColorDefinitions(comment string) ([]string, bool) {
	body := strings.TrimSpace(comment)

	for _, re := range []*regexp.Regexp{extruderColourRe, filamentColourRe} {
		m := re.FindStringSubmatch(body)
		if m == nil {
			continue
		}

		parts := strings.Split(m[1], ";")
		defs := make([]string, 0, len(parts))

		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				defs = append(defs, p)
			}
		}

		return defs, true
	}

	return nil, false
}

var bannerRe = regexp.MustCompile(`(?i)^generated\s+by\s+(\S+)\s+(.+)$`)

// Banner is a recognized slicer-identification comment.
type Banner struct {
	Software string
	Version  string
}

// MatchBanner recognizes "; generated by <Name> <Version>".
func MatchBanner(comment string) (Banner, bool) {
	m := bannerRe.FindStringSubmatch(strings.TrimSpace(comment))
	if m == nil {
		return Banner{}, false
	}

	return Banner{Software: m[1], Version: strings.TrimSpace(m[2])}, true
}

var (
	totalEstimatedTimeRe = regexp.MustCompile(`(?i)^total\s+estimated\s+time:\s*(.+)$`)
	estimatedPrintTimeRe = regexp.MustCompile(`(?i)^estimated\s+printing\s+time\s*(?:\(.*?\))?\s*[:=]?\s*(.+)$`)
	hmsRe                = regexp.MustCompile(`(?i)(\d+)\s*h|(\d+)\s*m(?:in)?|(\d+)\s*s`)
)

// MatchPrintTime recognizes both print-time grammars and returns the raw
// duration text plus its value in seconds.
func MatchPrintTime(comment string) (raw string, seconds int, ok bool) {
	body := strings.TrimSpace(comment)

	var durationText string

	if m := totalEstimatedTimeRe.FindStringSubmatch(body); m != nil {
		durationText = m[1]
	} else if m := estimatedPrintTimeRe.FindStringSubmatch(body); m != nil {
		durationText = m[1]
	} else {
		return "", 0, false
	}

	return durationText, parseHMS(durationText), true
}

// parseHMS sums every "<n>h", "<n>m"/"<n>min", and "<n>s" token it finds,
// tolerant of ordering and missing components (e.g. "41m 9s").
func parseHMS(s string) int {
	matches := hmsRe.FindAllStringSubmatch(s, -1)

	total := 0

	for _, m := range matches {
		switch {
		case m[1] != "":
			if v, err := strconv.Atoi(m[1]); err == nil {
				total += v * 3600
			}
		case m[2] != "":
			if v, err := strconv.Atoi(m[2]); err == nil {
				total += v * 60
			}
		case m[3] != "":
			if v, err := strconv.Atoi(m[3]); err == nil {
				total += v
			}
		}
	}

	return total
}

var costRe = regexp.MustCompile(`(?i)^filament\s+cost\s*=\s*(.+)$`)

// MatchCost recognizes "; filament cost = c1, c2, ...".
func MatchCost(comment string) ([]float64, bool) {
	m := costRe.FindStringSubmatch(strings.TrimSpace(comment))
	if m == nil {
		return nil, false
	}

	return parseFloatList(m[1]), true
}

var (
	weightRe         = regexp.MustCompile(`(?i)^filament\s+used\s*\[g\]\s*=\s*(.+)$`)
	detailedUsageRe  = regexp.MustCompile(`^\s*([\d.]+)\s*\(([\d.]+)\+([\d.]+)\)\s*$`)
)

// MatchWeights recognizes "; filament used [g] = w1, w2, ...", including the
// detailed "T (M+S)" per-entry form; it returns the total weight per slot.
func MatchWeights(comment string) ([]float64, bool) {
	m := weightRe.FindStringSubmatch(strings.TrimSpace(comment))
	if m == nil {
		return nil, false
	}

	parts := strings.Split(m[1], ",")
	weights := make([]float64, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)

		if sub := detailedUsageRe.FindStringSubmatch(p); sub != nil {
			if v, err := strconv.ParseFloat(sub[1], 64); err == nil {
				weights = append(weights, v)
				continue
			}
		}

		if v, err := strconv.ParseFloat(p, 64); err == nil {
			weights = append(weights, v)
		}
	}

	return weights, true
}

var (
	flushedRe = regexp.MustCompile(`(?i)^flushed\s+material\s*=\s*(.+)$`)
	wipeRe    = regexp.MustCompile(`(?i)^wipe\s+tower\s*=\s*(.+)$`)
)

// MatchFlushedMaterial recognizes "; flushed material = x".
func MatchFlushedMaterial(comment string) (string, bool) {
	m := flushedRe.FindStringSubmatch(strings.TrimSpace(comment))
	if m == nil {
		return "", false
	}

	return strings.TrimSpace(m[1]), true
}

// MatchWipeTower recognizes "; wipe tower = x".
func MatchWipeTower(comment string) (string, bool) {
	m := wipeRe.FindStringSubmatch(strings.TrimSpace(comment))
	if m == nil {
		return "", false
	}

	return strings.TrimSpace(m[1]), true
}

func parseFloatList(s string) []float64 {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)

		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			continue
		}

		out = append(out, v)
	}

	return out
}
