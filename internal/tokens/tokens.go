// Package tokens estimates the processing cost of command output.
//
// The estimate counts whitespace-delimited fields. It is not a model
// tokenizer; it only has to be consistent between raw and condensed output
// so savings percentages are comparable across runs.
package tokens

import (
	"unicode"
	"unicode/utf8"
)

// Estimate returns the estimated token count of text.
func Estimate(text string) int {
	n := 0
	inField := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inField = false
			continue
		}
		if !inField {
			n++
			inField = true
		}
	}
	return n
}

// EstimateBytes is Estimate for raw output buffers. Invalid UTF-8 sequences
// count as non-space runes.
func EstimateBytes(b []byte) int {
	n := 0
	inField := false
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r != utf8.RuneError && unicode.IsSpace(r) {
			inField = false
			continue
		}
		if !inField {
			n++
			inField = true
		}
	}
	return n
}

// Savings returns the percentage reduction from raw to condensed tokens:
// 100 * (1 - condensed/raw). It is 0 when raw is 0.
func Savings(raw, condensed int) float64 {
	if raw <= 0 {
		return 0
	}
	return 100 * (1 - float64(condensed)/float64(raw))
}
