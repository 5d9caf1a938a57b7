package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/eqchat/internal/core"
)

type memFactStore struct {
	facts  []core.Fact
	nextID int64
	addErr error
}

func (s *memFactStore) Add(ctx context.Context, fact core.Fact) (int64, error) {
	if s.addErr != nil {
		return 0, s.addErr
	}
	s.nextID++
	fact.ID = s.nextID
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = time.Now().UTC()
	}
	// Prepend: ListByUser contract is newest-first.
	s.facts = append([]core.Fact{fact}, s.facts...)
	return fact.ID, nil
}

func (s *memFactStore) ListByUser(ctx context.Context, userID string, limit int) ([]core.Fact, error) {
	var out []core.Fact
	for _, f := range s.facts {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memFactStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	var kept []core.Fact
	var removed int64
	for _, f := range s.facts {
		if f.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	s.facts = kept
	return removed, nil
}

type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vectors[text], nil
}

type stubGenerator struct {
	output string
	err    error
}

func (g *stubGenerator) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.output, nil
}

type stubIndex struct {
	hits      []core.ScoredFact
	searchErr error
	upserts   int
	deleted   []string
}

func (i *stubIndex) Upsert(ctx context.Context, userID, id, text string, embedding []float32) error {
	i.upserts++
	return nil
}

func (i *stubIndex) Search(ctx context.Context, userID string, embedding []float32, topK int) ([]core.ScoredFact, error) {
	if i.searchErr != nil {
		return nil, i.searchErr
	}
	return i.hits, nil
}

func (i *stubIndex) DeleteUser(ctx context.Context, userID string) error {
	i.deleted = append(i.deleted, userID)
	return nil
}

func seedFacts(t *testing.T, store *memFactStore) {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	facts := []core.Fact{
		{UserID: "alice", Content: "User lives in Hanoi", Embedding: []float32{1, 0, 0}, CreatedAt: base},
		{UserID: "alice", Content: "User works as a nurse", Embedding: []float32{0, 1, 0}, CreatedAt: base.Add(time.Minute)},
		{UserID: "alice", Content: "User has a cat", Embedding: nil, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, f := range facts {
		_, err := store.Add(context.Background(), f)
		require.NoError(t, err)
	}
}

func TestSearchFallbackSkipsUnembeddedFacts(t *testing.T) {
	store := &memFactStore{}
	seedFacts(t, store)
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"where do I live": {0.9, 0.1, 0},
	}}
	svc := NewService(store, embedder, &stubGenerator{}, nil)

	hits, err := svc.Search(context.Background(), "alice", "where do I live", 5)
	require.NoError(t, err)

	require.Len(t, hits, 2, "the fact without an embedding is not searchable")
	assert.Equal(t, "User lives in Hanoi", hits[0].Content)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, float32(-1))
		assert.LessOrEqual(t, h.Score, float32(1))
	}
}

func TestSearchIndexTierPreferred(t *testing.T) {
	store := &memFactStore{}
	seedFacts(t, store)
	index := &stubIndex{hits: []core.ScoredFact{{Content: "User lives in Hanoi", Score: 0.97}}}
	embedder := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	svc := NewService(store, embedder, &stubGenerator{}, index)

	hits, err := svc.Search(context.Background(), "alice", "q", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.EqualValues(t, float32(0.97), hits[0].Score)
}

func TestSearchFallsBackOnIndexError(t *testing.T) {
	store := &memFactStore{}
	seedFacts(t, store)
	index := &stubIndex{searchErr: errors.New("collection unavailable")}
	embedder := &stubEmbedder{vectors: map[string][]float32{"q": {0, 1, 0}}}
	svc := NewService(store, embedder, &stubGenerator{}, index)

	hits, err := svc.Search(context.Background(), "alice", "q", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "User works as a nurse", hits[0].Content)
}

func TestSearchFallsBackOnIndexZeroHits(t *testing.T) {
	store := &memFactStore{}
	seedFacts(t, store)
	index := &stubIndex{hits: nil}
	embedder := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}
	svc := NewService(store, embedder, &stubGenerator{}, index)

	hits, err := svc.Search(context.Background(), "alice", "q", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hits, "empty index answer falls through to the scan")
}

func TestSearchEmbedderFailurePropagates(t *testing.T) {
	svc := NewService(&memFactStore{}, &stubEmbedder{err: errors.New("quota exceeded")}, &stubGenerator{}, nil)

	_, err := svc.Search(context.Background(), "alice", "q", 5)
	require.Error(t, err)
}

func TestSearchZeroNormQueryReturnsNothing(t *testing.T) {
	store := &memFactStore{}
	seedFacts(t, store)
	embedder := &stubEmbedder{vectors: map[string][]float32{"q": {0, 0, 0}}}
	svc := NewService(store, embedder, &stubGenerator{}, nil)

	hits, err := svc.Search(context.Background(), "alice", "q", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchTopKBound(t *testing.T) {
	store := &memFactStore{}
	seedFacts(t, store)
	embedder := &stubEmbedder{vectors: map[string][]float32{"q": {1, 1, 0}}}
	svc := NewService(store, embedder, &stubGenerator{}, nil)

	hits, err := svc.Search(context.Background(), "alice", "q", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRememberEmbedFailureStoresFactAnyway(t *testing.T) {
	store := &memFactStore{}
	index := &stubIndex{}
	svc := NewService(store, &stubEmbedder{err: errors.New("embedder down")}, &stubGenerator{}, index)

	err := svc.Remember(context.Background(), "alice", "User plays chess", "extracted")
	require.NoError(t, err)

	require.Len(t, store.facts, 1)
	assert.Empty(t, store.facts[0].Embedding)
	assert.Equal(t, 0, index.upserts, "no vector, nothing to index")
}

func TestRememberMirrorsIntoIndex(t *testing.T) {
	store := &memFactStore{}
	index := &stubIndex{}
	embedder := &stubEmbedder{vectors: map[string][]float32{"User plays chess": {0.5, 0.5}}}
	svc := NewService(store, embedder, &stubGenerator{}, index)

	require.NoError(t, svc.Remember(context.Background(), "alice", "User plays chess", "extracted"))
	assert.Equal(t, 1, index.upserts)
}

func TestDeleteAllClearsBothTiers(t *testing.T) {
	store := &memFactStore{}
	seedFacts(t, store)
	index := &stubIndex{}
	svc := NewService(store, &stubEmbedder{}, &stubGenerator{}, index)

	n, err := svc.DeleteAll(context.Background(), "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, []string{"alice"}, index.deleted)
}

func TestNormalize(t *testing.T) {
	_, ok := normalize(nil)
	assert.False(t, ok)

	_, ok = normalize([]float32{0, 0})
	assert.False(t, ok)

	unit, ok := normalize([]float32{3, 4})
	require.True(t, ok)
	assert.InDelta(t, 0.6, unit[0], 1e-6)
	assert.InDelta(t, 0.8, unit[1], 1e-6)
}
