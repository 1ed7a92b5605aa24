package knowledge

import "strings"

// QuestionPrefixLen is how many leading characters of a stored question a
// query must contain to match the entry without a keyword hit.
const QuestionPrefixLen = 15

// Normalize lowercases a query or stored text for matching.
func Normalize(s string) string {
	return strings.ToLower(s)
}

// Prefix returns the first n characters of s, counted in runes.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Matches reports whether an entry answers a normalized query: any keyword
// is a substring of the query, or the query contains the opening of the
// entry's question.
func Matches(e Entry, normalizedQuery string) bool {
	for _, kw := range e.Keywords {
		kw = Normalize(kw)
		if kw != "" && strings.Contains(normalizedQuery, kw) {
			return true
		}
	}
	p := Prefix(Normalize(e.Question), QuestionPrefixLen)
	return p != "" && strings.Contains(normalizedQuery, p)
}

// FirstMatch scans entries in order and returns the first that matches query.
func FirstMatch(entries []Entry, query string) (Entry, bool) {
	q := Normalize(query)
	for _, e := range entries {
		if Matches(e, q) {
			return e, true
		}
	}
	return Entry{}, false
}

// Score counts keyword hits in a normalized query, with a question-prefix
// hit worth one more.
func Score(e Entry, normalizedQuery string) int {
	n := 0
	for _, kw := range e.Keywords {
		kw = Normalize(kw)
		if kw != "" && strings.Contains(normalizedQuery, kw) {
			n++
		}
	}
	if p := Prefix(Normalize(e.Question), QuestionPrefixLen); p != "" && strings.Contains(normalizedQuery, p) {
		n++
	}
	return n
}
