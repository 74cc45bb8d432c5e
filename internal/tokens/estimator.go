package tokens

import (
	"strings"
	"unicode/utf8"
)

// Estimate approximates the number of model tokens in text.
//
// Exact counting needs the model's own tokenizer; this heuristic averages
// a character-based estimate (~4 characters per token for Russian and
// English text) with the word count. Characters means runes, not bytes:
// Cyrillic is two bytes per character in UTF-8 and a byte count would
// double the estimate. Accuracy is roughly ±15-25%.
func Estimate(text string) int {
	if text == "" {
		return 0
	}

	charEstimate := utf8.RuneCountInString(text) / 4
	wordEstimate := len(strings.Fields(text))

	return (charEstimate + wordEstimate) / 2
}
