// Package tokenizer splits free text into the lowercase word tokens used by
// sim_hash to build a word frequency map before fingerprinting.
package tokenizer

import (
	"regexp"
	"strings"
)

var punctuation = regexp.MustCompile(`[^\w\s]`)

// ProcessText lowercases text, strips apostrophes and punctuation, and
// splits the result on whitespace into words.
func ProcessText(text string) []string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "'", "")
	text = punctuation.ReplaceAllString(text, "")
	words := strings.Fields(text)
	for i, word := range words {
		words[i] = strings.TrimSuffix(word, ".")
	}
	return words
}
