// Package memory implements long-term memory: fact persistence, similarity
// search with a managed vector tier and a linear-scan fallback, and
// LLM-based fact extraction.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/pkg/log"
)

type Service struct {
	facts    core.FactStore
	embedder core.Embedder
	llm      core.TextGenerator
	index    core.VectorIndex // optional managed tier, may be nil
}

func NewService(facts core.FactStore, embedder core.Embedder, llm core.TextGenerator, index core.VectorIndex) *Service {
	return &Service{
		facts:    facts,
		embedder: embedder,
		llm:      llm,
		index:    index,
	}
}

// Remember persists one fact. Embedding is best-effort: when the embedder
// fails, the fact is stored with an empty vector rather than lost. It then
// shows up in listings but not in similarity search.
func (s *Service) Remember(ctx context.Context, userID, content, source string) error {
	logger := log.FromCtx(ctx)
	userID = core.NormalizeUserID(userID)

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		logger.Warn().Err(err).Msg("embedding failed, storing fact without vector")
		embedding = nil
	}

	id, err := s.facts.Add(ctx, core.Fact{
		UserID:    userID,
		Content:   content,
		Embedding: embedding,
		Source:    source,
	})
	if err != nil {
		return fmt.Errorf("store fact: %w", err)
	}

	if s.index != nil && len(embedding) > 0 {
		if err := s.index.Upsert(ctx, userID, strconv.FormatInt(id, 10), content, embedding); err != nil {
			logger.Warn().Err(err).Msg("vector index upsert failed")
		}
	}
	return nil
}

// Search returns the top-K most similar facts, scores in [-1, 1] descending.
// The managed vector tier is tried first; on any failure or zero hits the
// naive scan over stored facts takes over so the feature degrades instead
// of failing the turn.
func (s *Service) Search(ctx context.Context, userID, query string, topK int) ([]core.ScoredFact, error) {
	logger := log.FromCtx(ctx)
	userID = core.NormalizeUserID(userID)
	if topK < 1 {
		topK = 1
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if s.index != nil {
		hits, err := s.index.Search(ctx, userID, queryEmbedding, topK)
		if err != nil {
			logger.Warn().Err(err).Msg("vector index search failed, falling back to scan")
		} else if len(hits) > 0 {
			return hits, nil
		}
	}

	return s.scanSimilar(ctx, userID, queryEmbedding, topK)
}

// scanSimilar is the fallback tier: normalized cosine similarity over every
// stored fact of the user. Facts without an embedding are skipped. Equal
// scores rank most-recent-first.
func (s *Service) scanSimilar(ctx context.Context, userID string, queryEmbedding []float32, topK int) ([]core.ScoredFact, error) {
	facts, err := s.facts.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}

	query, ok := normalize(queryEmbedding)
	if !ok {
		return nil, nil
	}

	// ListByUser returns newest-first, so a stable sort keeps the
	// most-recent fact ahead on score ties.
	var scored []core.ScoredFact
	for _, f := range facts {
		candidate, ok := normalize(f.Embedding)
		if !ok {
			continue
		}
		scored = append(scored, core.ScoredFact{
			Content: f.Content,
			Score:   dot(query, candidate),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (s *Service) List(ctx context.Context, userID string, limit int) ([]core.Fact, error) {
	return s.facts.ListByUser(ctx, core.NormalizeUserID(userID), limit)
}

// DeleteAll removes every fact for the identity, from both tiers.
func (s *Service) DeleteAll(ctx context.Context, userID string) (int64, error) {
	userID = core.NormalizeUserID(userID)

	if s.index != nil {
		if err := s.index.DeleteUser(ctx, userID); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("vector index delete failed")
		}
	}
	return s.facts.DeleteAll(ctx, userID)
}

// normalize returns the unit vector, reporting false for empty or zero-norm
// input (cosine similarity is undefined there).
func normalize(vec []float32) ([]float32, bool) {
	if len(vec) == 0 {
		return nil, false
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, false
	}

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, true
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
