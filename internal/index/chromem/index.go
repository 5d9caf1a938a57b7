// Package chromem adapts chromem-go, an embedded pure-Go vector database,
// as the managed similarity-search tier of the memory index.
package chromem

import (
	"context"
	"fmt"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/sandevgo/eqchat/internal/core"
)

type Index struct {
	db *chromemgo.DB
	mu sync.Mutex
}

// New creates an in-memory index. persistPath, when non-empty, makes the
// index durable across restarts.
func New(persistPath string) (*Index, error) {
	if persistPath == "" {
		return &Index{db: chromemgo.NewDB()}, nil
	}
	db, err := chromemgo.NewPersistentDB(persistPath, false)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	return &Index{db: db}, nil
}

// Per-user collections keep each user's facts isolated.
func (i *Index) collection(userID string) (*chromemgo.Collection, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	name := fmt.Sprintf("user_%s", core.NormalizeUserID(userID))
	col, err := i.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

func (i *Index) Upsert(ctx context.Context, userID, id, text string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding")
	}

	col, err := i.collection(userID)
	if err != nil {
		return err
	}

	err = col.AddDocument(ctx, chromemgo.Document{
		ID:        id,
		Content:   text,
		Embedding: embedding,
		Metadata:  map[string]string{"user_id": core.NormalizeUserID(userID)},
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, userID string, embedding []float32, topK int) ([]core.ScoredFact, error) {
	col, err := i.collection(userID)
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	hits := make([]core.ScoredFact, 0, len(results))
	for _, r := range results {
		hits = append(hits, core.ScoredFact{
			Content: r.Content,
			Score:   r.Similarity,
		})
	}
	return hits, nil
}

func (i *Index) DeleteUser(ctx context.Context, userID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	name := fmt.Sprintf("user_%s", core.NormalizeUserID(userID))
	if err := i.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}
