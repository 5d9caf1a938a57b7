package agent

import "strings"

// SearchGate decides whether a turn warrants a web search. The predicate
// must be pure and stateless: the same message always takes the same branch.
type SearchGate interface {
	ShouldSearch(message string) bool
}

// DefaultSearchKeywords is the fixed trigger-word set of the keyword gate.
var DefaultSearchKeywords = []string{"search", "tìm", "google", "web"}

type KeywordGate struct {
	keywords []string
}

func NewKeywordGate(keywords ...string) *KeywordGate {
	if len(keywords) == 0 {
		keywords = DefaultSearchKeywords
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &KeywordGate{keywords: lowered}
}

func (g *KeywordGate) ShouldSearch(message string) bool {
	message = strings.ToLower(message)
	for _, kw := range g.keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}
