package match

import (
	"sort"
	"strings"
	"unicode"
)

// NormalizeCompany is the comparison key for a company display name:
// trimmed, whitespace collapsed, lowercased.
func NormalizeCompany(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "for": true, "and": true,
	"or": true, "to": true, "in": true, "at": true, "on": true, "with": true,
	"by": true, "from": true, "as": true, "is": true, "your": true, "our": true,
	"role": true, "position": true, "job": true,
}

// TitleTokens returns the set of meaningful lowercase words in a job title.
func TitleTokens(title string) map[string]struct{} {
	out := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// TitleKey is a stable string form of TitleTokens, used as part of the store's unique key.
func TitleKey(title string) string {
	toks := TitleTokens(title)
	keys := make([]string, 0, len(toks))
	for k := range toks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, " ")
}

// TitlesOverlap requires two shared tokens, or one when either title is short
// (two meaningful tokens or fewer, e.g. "SWE" or "Product Manager").
func TitlesOverlap(a, b string) bool {
	ta, tb := TitleTokens(a), TitleTokens(b)
	shared := 0
	for k := range ta {
		if _, ok := tb[k]; ok {
			shared++
		}
	}
	need := 2
	if len(ta) <= 2 || len(tb) <= 2 {
		need = 1
	}
	return shared >= need
}
