// Package token implements the line tokenizer: it trims a single G-code
// line and classifies it as blank, a command, a tool-select, or a comment,
// without interpreting metadata
// grammars — that is the metadata package's job.
package token

import "strings"

// Kind classifies a tokenized line.
type Kind int

const (
	// KindBlank is an empty line after trimming.
	KindBlank Kind = iota
	// KindComment is a line whose first non-whitespace rune is ';'.
	KindComment
	// KindTool is a command line naming a tool select, e.g. "T2".
	KindTool
	// KindCommand is any other recognized command line (G0, G1, M600, ...).
	KindCommand
)

// Line is one tokenized G-code line.
type Line struct {
	Raw       string // Trimmed original text.
	Number    int    // 1-based line number within the stream.
	Kind      Kind
	Command   string // Uppercased token before the first space, for KindCommand/KindTool.
	ToolIndex int    // Parsed tool number for KindTool (e.g. 2 for "T2").
	Comment   string // Text after the leading ';' for KindComment (surrounding whitespace trimmed).
	InlineComment string // Trailing "; ..." on a command line, if any, sans the leading ';'.
}

// Tokenize trims and classifies a single raw line; an empty or
// all-whitespace line is KindBlank. Callers split the stream into lines
// themselves (the
// tokenizer does not own stream iteration so every parser variant in
// internal/gcode/parser can drive it the way that variant reads bytes).
func Tokenize(raw string, lineNumber int) Line {
	trimmed := strings.TrimSpace(raw)

	line := Line{Raw: trimmed, Number: lineNumber}

	if trimmed == "" {
		line.Kind = KindBlank
		return line
	}

	if trimmed[0] == ';' {
		line.Kind = KindComment
		line.Comment = strings.TrimSpace(trimmed[1:])

		return line
	}

	command, inline := splitInlineComment(trimmed)

	firstToken := command
	if idx := strings.IndexByte(command, ' '); idx >= 0 {
		firstToken = command[:idx]
	}

	firstToken = strings.ToUpper(strings.TrimSpace(firstToken))

	line.Command = firstToken
	line.InlineComment = inline

	if toolNum, ok := parseToolToken(firstToken); ok {
		line.Kind = KindTool
		line.ToolIndex = toolNum

		return line
	}

	line.Kind = KindCommand

	return line
}

// splitInlineComment separates a command line's leading command text from
// any trailing "; comment" suffix.
func splitInlineComment(s string) (command, comment string) {
	idx := strings.IndexByte(s, ';')
	if idx < 0 {
		return s, ""
	}

	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:])
}

// parseToolToken reports whether token is a tool-select command ("T0".."T7",
// and beyond — the magazine size is a hardware concern, not a parsing one).
func parseToolToken(token string) (int, bool) {
	if len(token) < 2 || token[0] != 'T' {
		return 0, false
	}

	n := 0

	for _, r := range token[1:] {
		if r < '0' || r > '9' {
			return 0, false
		}

		n = n*10 + int(r-'0')
	}

	return n, true
}

// ToolHandle formats a parsed tool index back into its canonical handle form.
func ToolHandle(index int) string {
	return "T" + itoa(index)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte

	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}

	return string(buf[pos:])
}

// ZValue extracts the Z parameter from a G0/G1 movement command, if present.
func ZValue(command string) (float64, bool) {
	return numericParam(command, 'Z')
}

// numericParam scans a command string's space-separated parameters for one
// beginning with the given letter and parses its float value.
func numericParam(command string, letter byte) (float64, bool) {
	fields := strings.Fields(command)

	for _, f := range fields {
		if len(f) < 2 || (f[0] != letter && f[0] != letter+32) {
			continue
		}

		v, ok := parseFloat(f[1:])
		if !ok {
			continue
		}

		return v, true
	}

	return 0, false
}

// parseFloat is a small dependency-free float parser sufficient for G-code
// numeric parameters (optional sign, digits, optional '.', digits).
func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}

	neg := false
	i := 0

	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		i++
	}

	if i >= len(s) {
		return 0, false
	}

	var intPart, fracPart float64

	fracDiv := 1.0
	seenDigit := false
	seenDot := false

	for ; i < len(s); i++ {
		c := s[i]

		switch {
		case c == '.' && !seenDot:
			seenDot = true
		case c >= '0' && c <= '9':
			seenDigit = true

			if seenDot {
				fracDiv *= 10
				fracPart = fracPart*10 + float64(c-'0')
			} else {
				intPart = intPart*10 + float64(c-'0')
			}
		default:
			return 0, false
		}
	}

	if !seenDigit {
		return 0, false
	}

	v := intPart + fracPart/fracDiv
	if neg {
		v = -v
	}

	return v, true
}
