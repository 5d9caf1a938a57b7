package core

import "context"

// ConversationStore is the append-only message log with keyset pagination.
type ConversationStore interface {
	// Append validates and persists a new turn, returning the generated
	// message_id.
	Append(ctx context.Context, userID, role, content string) (string, error)

	// Insert persists a fully-formed message if no message with the same
	// message_id exists yet. Returns true when a row was written. This is
	// the idempotent write used by the ingestion worker.
	Insert(ctx context.Context, msg Message) (bool, error)

	// Page returns one keyset-paginated slice of the user's conversation.
	Page(ctx context.Context, userID string, opts PageOptions) (Page, error)

	// DeleteAll removes every message for the identity and reports how
	// many rows were removed. Idempotent.
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

// FactStore persists long-term facts and their embeddings.
type FactStore interface {
	Add(ctx context.Context, fact Fact) (int64, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Fact, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

// ToolLogStore keeps a per-user record of tool invocations.
type ToolLogStore interface {
	LogSearch(ctx context.Context, userID, query string, results []SearchResult) error
	ListRecent(ctx context.Context, userID string, limit int) ([]ToolLog, error)
}
