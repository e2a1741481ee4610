// Package analyze ranks and classifies tool names for discovery reports and
// "did you mean" hints.
package analyze

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Suggestion pairs a known tool name with its similarity score (0-1, higher is better).
type Suggestion struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// DefaultThreshold is the minimum similarity score for a suggestion to be returned.
const DefaultThreshold = 0.5

// DefaultTopN is the maximum number of suggestions returned.
const DefaultTopN = 3

// Suggest returns known tool names similar to name, ranked by similarity score.
// Only suggestions scoring at least DefaultThreshold are returned, up to DefaultTopN results.
func Suggest(name string, known []string) []Suggestion {
	return SuggestN(name, known, DefaultTopN, DefaultThreshold)
}

// SuggestN returns up to topN known tool names similar to name, with score >= threshold.
// An exact match of name itself is never suggested.
func SuggestN(name string, known []string, topN int, threshold float64) []Suggestion {
	if name == "" || len(known) == 0 {
		return nil
	}

	normName := normalize(name)
	seen := make(map[string]bool, len(known))
	var results []Suggestion
	for _, k := range known {
		if k == name || seen[k] {
			continue
		}
		seen[k] = true
		score := similarity(normName, normalize(k))
		if score >= threshold {
			results = append(results, Suggestion{Name: k, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}

// similarity blends edit distance with a letter-bag comparison so that
// transposition typos ("gti" for "git") still score well, plus small
// prefix/suffix bonuses.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	maxLen := len([]rune(a))
	if n := len([]rune(b)); n > maxLen {
		maxLen = n
	}
	lev := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	bag := 1.0 - float64(levenshtein.ComputeDistance(sortRunes(a), sortRunes(b)))/float64(maxLen)

	prefixBonus := 0.1 * float64(commonPrefixLen(a, b)) / float64(maxLen)
	suffixBonus := 0.05 * float64(commonSuffixLen(a, b)) / float64(maxLen)

	score := 0.6*lev + 0.4*bag + prefixBonus + suffixBonus
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// normalize lower-cases a tool name and drops a trailing ".exe".
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSuffix(s, ".exe")
}

func sortRunes(s string) string {
	r := []rune(s)
	sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
	return string(r)
}

// commonPrefixLen returns the number of leading runes a and b share.
func commonPrefixLen(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := min(len(ra), len(rb))
	for i := 0; i < n; i++ {
		if ra[i] != rb[i] {
			return i
		}
	}
	return n
}

// commonSuffixLen returns the number of trailing runes a and b share.
func commonSuffixLen(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	n := min(la, lb)
	for i := 0; i < n; i++ {
		if ra[la-1-i] != rb[lb-1-i] {
			return i
		}
	}
	return n
}
