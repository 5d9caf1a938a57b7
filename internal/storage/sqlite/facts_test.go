package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/eqchat/internal/core"
)

func TestFactAddListDelete(t *testing.T) {
	repo := NewFactRepo(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.Add(ctx, core.Fact{
		UserID:    "alice",
		Content:   "User lives in Hanoi",
		Embedding: []float32{0.1, 0.2, 0.3},
		CreatedAt: base,
	})
	require.NoError(t, err)
	_, err = repo.Add(ctx, core.Fact{
		UserID:    "alice",
		Content:   "User prefers tea over coffee",
		CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)

	facts, err := repo.ListByUser(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "User prefers tea over coffee", facts[0].Content, "newest first")
	assert.Empty(t, facts[0].Embedding)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, facts[1].Embedding)
	assert.Equal(t, "extracted", facts[1].Source)

	limited, err := repo.ListByUser(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	n, err := repo.DeleteAll(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	facts, err = repo.ListByUser(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{1.5, -2.25, 0, 3.14159}

	blob, err := serializeVector(vec)
	require.NoError(t, err)
	require.Len(t, blob, len(vec)*4)

	got, err := deserializeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	empty, err := serializeVector(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = deserializeVector([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestToolLogRoundTrip(t *testing.T) {
	repo := NewToolLogRepo(newTestDB(t))
	ctx := context.Background()

	results := []core.SearchResult{
		{Title: "Go blog", URL: "https://go.dev/blog", Snippet: "latest articles"},
	}
	require.NoError(t, repo.LogSearch(ctx, "alice", "golang news", results))

	logs, err := repo.ListRecent(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "web_search", logs[0].Tool)
	assert.Equal(t, "golang news", logs[0].Query)
	assert.Equal(t, results, logs[0].Results)
}
