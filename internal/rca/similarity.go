package rca

import "strings"

// SimilarityThreshold is the Jaccard score at or above which a manager's
// edited RCA text counts as accepting the suggestion rather than rewriting it.
const SimilarityThreshold = 0.8

// Jaccard computes word-set similarity between two texts, case-insensitive.
// Two empty texts are identical (1.0).
func Jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)

	union := len(setB)
	var intersection int
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		} else {
			union++
		}
	}

	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

// Similar reports whether two texts meet the acceptance threshold.
func Similar(a, b string) bool {
	return Jaccard(a, b) >= SimilarityThreshold
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}
