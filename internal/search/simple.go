package search

import (
	"sort"
	"strings"
)

// Span is one matched region of the searched text.
type Span struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// PrepareSimpleSearch compiles a query into a reusable matcher. The matcher
// returns one span per query word, ordered by offset, or nil unless every
// word occurs in the text. Matching is case-insensitive; words may match in
// any order and position.
func PrepareSimpleSearch(query string) func(text string) []Span {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return func(string) []Span { return nil }
	}

	return func(text string) []Span {
		lower := strings.ToLower(text)
		spans := make([]Span, 0, len(words))
		for _, word := range words {
			at := strings.Index(lower, word)
			if at < 0 {
				return nil
			}
			spans = append(spans, Span{Offset: at, Length: len(word)})
		}
		sort.Slice(spans, func(i, j int) bool { return spans[i].Offset < spans[j].Offset })
		return spans
	}
}
