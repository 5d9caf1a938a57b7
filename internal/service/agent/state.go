package agent

import "github.com/sandevgo/eqchat/internal/core"

// State is the ephemeral pipeline state for one turn. Each stage reads it
// and returns an updated copy; it is owned by a single pipeline invocation
// and never shared across turns.
type State struct {
	UserID           string
	Username         string
	UserMessage      string
	ShortTermContext []core.Message
	LongTermContext  []string
	SearchResults    []core.SearchResult
	ExtractedFacts   []string
	AssistantReply   string
}
