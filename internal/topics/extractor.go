// Package topics provides the default topic-proxy extraction the metric
// engine consumes. The heuristic is deliberately coarse (roughly 60%
// accurate on labeled dialogues); callers wanting better recall substitute
// their own Extractor rather than growing this one.
package topics

import (
	"strings"
	"unicode"
)

// Extractor produces a coarse topic set from one turn's text.
// Deterministic, finite, may be empty.
type Extractor interface {
	Extract(text string) []string
}

// HeuristicExtractor picks capitalized tokens as topic proxies, joining
// consecutive capitalized words into one multi-word topic. Output is
// lowercased and deduplicated in order of first appearance.
type HeuristicExtractor struct{}

func NewHeuristicExtractor() *HeuristicExtractor { return &HeuristicExtractor{} }

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "but": {}, "for": {}, "he": {}, "how": {},
	"i": {}, "if": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "she": {}, "so": {}, "that": {}, "the": {}, "they": {},
	"this": {}, "to": {}, "we": {}, "what": {}, "when": {}, "where": {},
	"why": {}, "you": {}, "i'm": {}, "it's": {}, "that's": {}, "what's": {},
	"let's": {},
}

func (HeuristicExtractor) Extract(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})

	var out []string
	seen := make(map[string]struct{})
	var run []string

	flush := func() {
		if len(run) == 0 {
			return
		}
		topic := strings.ToLower(strings.Join(run, " "))
		run = run[:0]
		if _, dup := seen[topic]; dup {
			return
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
	}

	for _, word := range words {
		r := []rune(word)
		if !unicode.IsUpper(r[0]) {
			flush()
			continue
		}
		// Capitalized stopwords ("The", "I'm") are sentence furniture, not
		// topics; they end a run instead of joining it.
		if _, stop := stopwords[strings.ToLower(word)]; stop {
			flush()
			continue
		}
		run = append(run, word)
	}
	flush()
	return out
}
