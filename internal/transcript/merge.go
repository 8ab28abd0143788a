// Package transcript combines ordered chunk transcripts into one text.
package transcript

import "strings"

const (
	// maxOverlap bounds how far back the suffix/prefix search scans, in runes.
	maxOverlap = 200
	// minOverlap is the shortest boundary match accepted, in runes. Kept
	// word-sized: larger floors miss genuine short overlaps at boundaries.
	minOverlap = 3
)

// Merge combines ordered chunk transcripts, deduplicating text duplicated by
// chunk overlap. For each transcript it searches for the longest suffix of
// the accumulated result that case-insensitively equals a prefix of the next
// piece; on a match only the remainder is appended, otherwise the pieces are
// joined with a space.
//
// The greedy longest-match scan is a heuristic: repeated phrases near a
// boundary can fool it. It is an approximation, not a correctness guarantee.
func Merge(parts []string) string {
	clean := dropEmpty(parts)
	if len(clean) == 0 {
		return ""
	}

	result := clean[0]
	for _, next := range clean[1:] {
		if n := overlapLen(result, next); n > 0 {
			result += next[n:]
		} else {
			result += " " + next
		}
	}
	return result
}

// Join is the fallback merge for chunks produced without overlap: pure
// space-joined concatenation.
func Join(parts []string) string {
	return strings.Join(dropEmpty(parts), " ")
}

func dropEmpty(parts []string) []string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			clean = append(clean, p)
		}
	}
	return clean
}

// overlapLen returns the byte length of the longest prefix of next whose
// case-folded form equals a suffix of acc, scanning from the longest
// candidate down. Candidates are whole-rune spans so multi-byte characters
// are never split, and the returned offset is always valid in next. Returns
// 0 when no match of at least minOverlap runes exists.
func overlapLen(acc, next string) int {
	accRunes := []rune(acc)
	nextRunes := []rune(next)

	max := maxOverlap
	if len(accRunes) < max {
		max = len(accRunes)
	}
	if len(nextRunes) < max {
		max = len(nextRunes)
	}

	for n := max; n >= minOverlap; n-- {
		suffix := string(accRunes[len(accRunes)-n:])
		prefix := string(nextRunes[:n])
		if strings.EqualFold(suffix, prefix) {
			return len(prefix)
		}
	}
	return 0
}
