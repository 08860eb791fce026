package console

import "strings"

// Filter returns the entries whose id, question, answer or comma-joined tags
// contain query, ignoring case. Whitespace in query is matched literally. Order is preserved and the input is not
// modified. An empty query returns a copy of every entry.
func Filter(entries []Entry, query string) []Entry {
	q := strings.ToLower(query)

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if q == "" || matches(e, q) {
			out = append(out, e)
		}
	}
	return out
}

// matches expects q already lower-cased.
func matches(e Entry, q string) bool {
	return strings.Contains(strings.ToLower(e.ID), q) ||
		strings.Contains(strings.ToLower(e.Question), q) ||
		strings.Contains(strings.ToLower(e.Answer), q) ||
		strings.Contains(strings.ToLower(strings.Join(e.Tags, ",")), q)
}
