package pipeline

import (
	"regexp"
	"strings"
)

// stopAffixes are removed from title edges before fingerprinting so that
// "Senior Go Engineer (Remote)" and "Go Engineer" can collide.
var stopAffixes = []string{
	"senior", "junior", "lead", "staff", "principal",
	"remote", "hybrid", "full time", "full-time", "part time", "part-time",
	"contract", "urgent", "new",
}

// locationAliases canonicalize common location shorthand.
var locationAliases = map[string]string{
	"wfh":            "remote",
	"work from home": "remote",
	"anywhere":       "remote",
	"nyc":            "new york",
	"sf":             "san francisco",
	"la":             "los angeles",
	"uk":             "united kingdom",
	"usa":            "united states",
	"us":             "united states",
}

// stopWords excluded from fingerprint token sets.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "you": {}, "are": {},
	"our": {}, "will": {}, "have": {}, "this": {}, "that": {}, "from": {},
	"your": {}, "work": {}, "team": {}, "job": {}, "role": {}, "who": {},
	"what": {}, "about": {}, "them": {}, "they": {}, "their": {},
}

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// normalizeText lowercases, strips punctuation and collapses whitespace.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = punctRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// normalizeTitle additionally strips stop prefixes and suffixes.
func normalizeTitle(s string) string {
	s = normalizeText(s)
	changed := true
	for changed {
		changed = false
		for _, affix := range stopAffixes {
			if strings.HasPrefix(s, affix+" ") {
				s = strings.TrimSpace(strings.TrimPrefix(s, affix+" "))
				changed = true
			}
			if strings.HasSuffix(s, " "+affix) {
				s = strings.TrimSpace(strings.TrimSuffix(s, " "+affix))
				changed = true
			}
		}
	}
	return s
}

// normalizeLocation applies the alias table after basic normalization.
func normalizeLocation(s string) string {
	s = normalizeText(s)
	if alias, ok := locationAliases[s]; ok {
		return alias
	}
	return s
}

// tokenize splits normalized text into tokens of length > 2 minus stop
// words, capped at limit tokens (0 means no cap).
func tokenize(s string, limit int) []string {
	fields := strings.Fields(normalizeText(s))
	if limit > 0 && len(fields) > limit {
		fields = fields[:limit]
	}
	var out []string
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// similarityRatio is a normalized edit-distance ratio over two strings,
// 1.0 for identical inputs and 0.0 for fully distinct ones.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	d := levenshtein(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return 1.0 - float64(d)/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// jaccard computes set overlap between two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}
