package heuristic

import (
	"strings"
	"unicode"
)

// Tokenize splits an identifier on separators and camel-case boundaries and
// lowercases the parts. "OrderDate", "order_date" and "Order Date" all
// yield [order date].
func Tokenize(s string) []string {
	runes := []rune(s)
	var (
		tokens  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && startsToken(runes, i) {
			flush()
		}
		current.WriteRune(r)
	}
	flush()
	return tokens
}

func startsToken(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	if unicode.IsUpper(r) && unicode.IsLower(prev) {
		return true
	}
	// end of an acronym: "XMLParser" splits before 'P'
	if unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		return true
	}
	return unicode.IsDigit(r) != unicode.IsDigit(prev) && unicode.IsLetter(prev) != unicode.IsLetter(r)
}

// Normalize joins the tokens of an identifier.
func Normalize(s string) string {
	return strings.Join(Tokenize(s), "")
}

var strippedSuffixes = []string{"timestamp", "ids", "id", "at", "no", "num"}

// normalizeStripped removes one trailing id-like token, keeping at least one.
func normalizeStripped(s string) string {
	tokens := Tokenize(s)
	if len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		for _, suffix := range strippedSuffixes {
			if last == suffix {
				tokens = tokens[:len(tokens)-1]
				break
			}
		}
	}
	return strings.Join(tokens, "")
}

// Levenshtein returns the edit distance between a and b in runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return len(rb)
	}
	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}

// Similarity maps the edit distance to [0,1], 1 meaning equal.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}

// tokenScore rewards abbreviations: a token matches when one is a prefix of
// the other and the shorter has at least three runes, or when they are equal.
func tokenScore(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	used := make([]bool, len(b))
	matched := 0
	for _, ta := range a {
		for j, tb := range b {
			if used[j] || !tokensMatch(ta, tb) {
				continue
			}
			used[j] = true
			matched++
			break
		}
	}
	return float64(matched) / float64(max(len(a), len(b)))
}

func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) >= 3 && strings.HasPrefix(b, a)
}

// Score rates how well a column name matches a field name.
func Score(column, field string) float64 {
	nc, nf := Normalize(column), Normalize(field)
	if nc == "" || nf == "" {
		return 0
	}
	if nc == nf {
		return 1
	}
	score := Similarity(nc, nf)
	if stripped := Similarity(normalizeStripped(column), normalizeStripped(field)); stripped > score {
		score = stripped
	}
	if tokens := tokenScore(Tokenize(column), Tokenize(field)); tokens > score {
		score = tokens
	}
	return score
}
