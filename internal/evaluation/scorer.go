package evaluation

import "strings"

// normalize lowercases and collapses all whitespace runs to single
// spaces so superficial formatting differences do not affect scoring.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ExactMatch returns 1.0 when the normalized prediction equals the
// normalized expected answer, else 0.0.
func ExactMatch(predicted, expected string) float64 {
	if normalize(predicted) == normalize(expected) {
		return 1.0
	}
	return 0.0
}

// F1 computes token-set F1 over whitespace-split lowercased tokens.
// Returns 0.0 when either token set is empty or they share no tokens.
func F1(predicted, expected string) float64 {
	predTokens := tokenSet(predicted)
	expTokens := tokenSet(expected)
	if len(predTokens) == 0 || len(expTokens) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range predTokens {
		if _, ok := expTokens[token]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0.0
	}

	precision := float64(intersection) / float64(len(predTokens))
	recall := float64(intersection) / float64(len(expTokens))
	return 2 * precision * recall / (precision + recall)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(strings.ToLower(s)) {
		set[token] = struct{}{}
	}
	return set
}
