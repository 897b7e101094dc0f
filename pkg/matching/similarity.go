// Package matching provides the pure string-similarity primitives used by
// the deduplication engine. Everything here is deterministic and free of
// shared state; the same inputs always produce the same output.
package matching

import "strings"

// Normalize lower-cases, trims, and collapses internal whitespace runs to a
// single space. Both sides of every comparison are normalized first.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// LevenshteinDistance computes the minimum number of single-character edits
// (insertions, deletions, substitutions, each cost 1) required to change one
// string into the other. Two-row DP so memory stays linear in len(b).
func LevenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// Similarity returns a normalized similarity between two names in [0, 1].
// Strings are normalized first; identical normalized strings score 1.0,
// including the case where both are empty. Otherwise the score is
// 1 - distance/max(len). Symmetric in its arguments.
func Similarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if na == nb {
		return 1.0
	}

	maxLen := max(len(na), len(nb))
	d := LevenshteinDistance(na, nb)
	return 1.0 - float64(d)/float64(maxLen)
}

// ContainsEitherWay reports whether one normalized name contains the other
// as a substring. Used as the second branch of the fuzzy-name rule so that
// "J. Smith" still surfaces "Smith".
func ContainsEitherWay(a, b string) bool {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}
