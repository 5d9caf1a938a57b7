package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	// MaxContentLength bounds a single conversation turn, in runes.
	MaxContentLength = 4000

	// Fact content bounds, in runes.
	MinFactLength = 3
	MaxFactLength = 200
)

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// NormalizeUserID collapses the two accepted identity spellings (integer and
// string) into one canonical form so that user_id=42 and user_id="42"
// address the same conversation and fact set.
func NormalizeUserID(userID string) string {
	return strings.TrimSpace(userID)
}

// FlexID decodes a JSON identity that may arrive either as a number or as a
// string. Both spellings normalize to the same value.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexID(NormalizeUserID(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexID(n.String())
		return nil
	}
	return fmt.Errorf("identity must be a string or a number")
}

func (f FlexID) String() string { return string(f) }

// Message is a single immutable turn in a conversation.
type Message struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	MessageID     string    `json:"message_id"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Fact is a durable atomic statement about a user. Embedding may be empty
// when the embedder failed at write time; such facts are kept but are not
// searchable by similarity.
type Fact struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredFact is a similarity-search hit; Score is cosine similarity.
type ScoredFact struct {
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// SearchResult is one row from the web-search collaborator.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// ToolLog records one tool invocation (currently only web search) per user.
type ToolLog struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id"`
	Tool      string         `json:"tool"`
	Query     string         `json:"query"`
	Results   []SearchResult `json:"results"`
	CreatedAt time.Time      `json:"created_at"`
}

// Page is one keyset-paginated slice of a conversation. NextCursor is empty
// when the final page has been reached.
type Page struct {
	Items      []Message `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
	PageSize   int       `json:"page_size"`
}

type PageOptions struct {
	PageSize    int
	Cursor      string
	NewestFirst bool
}
