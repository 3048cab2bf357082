package stats

import (
	"strings"

	"github.com/amscore/gcodeslots/pkg/levenshtein"
)

// ColorNameLookup resolves a human-readable color name from a hex triplet
// or a slicer-supplied name token. Implementations may be exact, fuzzy, or
// backed by an external palette service; the finalizer only depends on the
// interface.
type ColorNameLookup interface {
	Name(token string) (name string, exact bool)
}

// swatch is one entry in the built-in palette used by DefaultColorNameLookup.
type swatch struct {
	hex  string
	name string
}

// builtinPalette covers the filament colors that show up across slicer
// defaults; it is intentionally small rather than exhaustive.
var builtinPalette = []swatch{
	{"#000000", "Black"},
	{"#FFFFFF", "White"},
	{"#FF0000", "Red"},
	{"#00FF00", "Green"},
	{"#0000FF", "Blue"},
	{"#FFFF00", "Yellow"},
	{"#FFA500", "Orange"},
	{"#800080", "Purple"},
	{"#FFC0CB", "Pink"},
	{"#A52A2A", "Brown"},
	{"#808080", "Gray"},
	{"#C0C0C0", "Silver"},
	{"#FFD700", "Gold"},
	{"#00FFFF", "Cyan"},
	{"#FF00FF", "Magenta"},
	{"#008000", "Dark Green"},
	{"#000080", "Navy"},
	{"#8B4513", "Saddle Brown"},
	{"#F5F5DC", "Beige"},
	{"#1E90FF", "Dodger Blue"},
}

type defaultLookup struct {
	byHex map[string]string
	lev   levenshtein.Context
}

// DefaultColorNameLookup returns the built-in palette lookup: an exact hex
// match first, falling back to the closest name by edit distance against
// the token itself (for slicer tokens that are already names, not hexes).
func DefaultColorNameLookup() ColorNameLookup {
	l := &defaultLookup{byHex: make(map[string]string, len(builtinPalette))}
	for _, s := range builtinPalette {
		l.byHex[s.hex] = s.name
	}

	return l
}

func (l *defaultLookup) Name(token string) (string, bool) {
	if hex, ok := normalizeHex(token); ok {
		if name, ok := l.byHex[hex]; ok {
			return name, true
		}

		return l.closestByName(hex), false
	}

	candidate := strings.TrimSpace(token)
	if candidate == "" {
		return "", false
	}

	for _, s := range builtinPalette {
		if strings.EqualFold(s.name, candidate) {
			return s.name, true
		}
	}

	return l.closestByName(candidate), false
}

// closestByName returns the palette entry with the smallest edit distance
// to token, used as a best-effort label when no exact match exists.
func (l *defaultLookup) closestByName(token string) string {
	best := ""
	bestDist := -1

	for _, s := range builtinPalette {
		d := l.lev.Distance(strings.ToLower(token), strings.ToLower(s.name))
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = s.name
		}
	}

	return best
}

// normalizeHex accepts "#RRGGBB", "RRGGBB", or "0xRRGGBB" and returns the
// canonical "#RRGGBB" uppercase form.
func normalizeHex(token string) (string, bool) {
	s := strings.TrimSpace(token)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	s = strings.TrimPrefix(s, "#")

	if len(s) != 6 {
		return "", false
	}

	for _, r := range s {
		isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		if !isHex {
			return "", false
		}
	}

	return "#" + strings.ToUpper(s), true
}
