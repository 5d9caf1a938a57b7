package core

import "context"

// GenerateRequest is a single text-in/text-out LLM call. When JSONResponse
// is set the provider asks for strict JSON output (used by fact extraction).
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	JSONResponse bool
}

type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// IdentityProvider resolves a stable external agent handle for a user,
// creating one on first contact. The pipeline only needs success/failure.
type IdentityProvider interface {
	EnsureAgent(ctx context.Context, userID, username string) error
}

// VectorIndex is the managed similarity-search tier of the memory index.
// Implementations must scope all operations to one user.
type VectorIndex interface {
	Upsert(ctx context.Context, userID, id, text string, embedding []float32) error
	Search(ctx context.Context, userID string, embedding []float32, topK int) ([]ScoredFact, error)
	DeleteUser(ctx context.Context, userID string) error
}
