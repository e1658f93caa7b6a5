package streambuf

import (
	"strings"
	"unicode/utf8"
)

// Segment splits text into ordered pieces no longer than limit characters,
// cutting at the most natural boundary available: paragraph break, then line
// break, then sentence end, then word boundary, then a hard (rune-safe) cut.
// The limit counts runes, matching platform message limits, which are
// character counts rather than byte counts. Whitespace around each cut is
// trimmed. A limit <= 0 means no limit.
func Segment(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var out []string
	for utf8.RuneCountInString(text) > limit {
		cut := naturalBreak(text, byteLimit(text, limit))
		piece := strings.TrimSpace(text[:cut])
		if piece != "" {
			out = append(out, piece)
		}
		text = strings.TrimLeft(text[cut:], " \t\n")
	}
	if rest := strings.TrimSpace(text); rest != "" {
		out = append(out, rest)
	}
	return out
}

// byteLimit returns the byte index just past the first n runes of text.
func byteLimit(text string, n int) int {
	seen := 0
	for i := range text {
		if seen == n {
			return i
		}
		seen++
	}
	return len(text)
}

// findBreakBetween finds a break point in [minIdx, maxIdx), preferring
// paragraph breaks > line breaks > sentence ends > word boundaries. Returns
// maxIdx when the region has no natural boundary.
func findBreakBetween(text string, minIdx, maxIdx int) int {
	if maxIdx > len(text) {
		maxIdx = len(text)
	}
	if minIdx < 0 || minIdx >= maxIdx {
		return maxIdx
	}

	region := text[minIdx:maxIdx]

	if idx := strings.LastIndex(region, "\n\n"); idx >= 0 {
		return minIdx + idx + 2
	}
	if idx := strings.LastIndex(region, "\n"); idx >= 0 {
		return minIdx + idx + 1
	}
	for i := len(region) - 1; i >= 0; i-- {
		ch := region[i]
		if (ch == '.' || ch == '!' || ch == '?') && i+1 < len(region) && region[i+1] == ' ' {
			return minIdx + i + 2
		}
	}
	if idx := strings.LastIndex(region, " "); idx >= 0 {
		return minIdx + idx + 1
	}
	return maxIdx
}

// naturalBreak returns a byte cut index in (0, limit] for text known to
// exceed limit bytes (limit must sit on a rune boundary). Prefers paragraph
// breaks > line breaks > sentence ends > word boundaries, falling back to a
// rune-safe hard cut.
func naturalBreak(text string, limit int) int {
	region := text[:limit]

	if idx := strings.LastIndex(region, "\n\n"); idx > 0 {
		return idx + 2
	}
	if idx := strings.LastIndex(region, "\n"); idx > 0 {
		return idx + 1
	}
	for i := limit - 1; i > 0; i-- {
		ch := region[i]
		if (ch == '.' || ch == '!' || ch == '?') && i+1 < limit && region[i+1] == ' ' {
			return i + 2
		}
	}
	if idx := strings.LastIndex(region, " "); idx > 0 {
		return idx + 1
	}

	// Hard cut; never split a UTF-8 sequence.
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return cut
}
