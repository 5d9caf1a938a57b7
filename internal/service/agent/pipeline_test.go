package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/eqchat/internal/core"
)

type fakeStore struct {
	messages  []core.Message
	pageErr   error
	pageCalls int
	appends   []core.Message
	appendErr error
}

func (s *fakeStore) Append(ctx context.Context, userID, role, content string) (string, error) {
	if s.appendErr != nil {
		return "", s.appendErr
	}
	msg := core.Message{UserID: userID, Role: role, Content: content, CreatedAt: time.Now().UTC()}
	s.appends = append(s.appends, msg)
	return "msg_id", nil
}

func (s *fakeStore) Insert(ctx context.Context, msg core.Message) (bool, error) {
	return true, nil
}

func (s *fakeStore) Page(ctx context.Context, userID string, opts core.PageOptions) (core.Page, error) {
	s.pageCalls++
	if s.pageErr != nil {
		return core.Page{}, s.pageErr
	}
	return core.Page{Items: s.messages, PageSize: opts.PageSize}, nil
}

func (s *fakeStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

type fakeMemory struct {
	hits []core.ScoredFact
	err  error
}

func (m *fakeMemory) Search(ctx context.Context, userID, query string, topK int) ([]core.ScoredFact, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

type fakeSearcher struct {
	results []core.SearchResult
	err     error
	calls   int
}

func (s *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]core.SearchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

type fakeToolLogs struct {
	logged int
}

func (l *fakeToolLogs) LogSearch(ctx context.Context, userID, query string, results []core.SearchResult) error {
	l.logged++
	return nil
}

func (l *fakeToolLogs) ListRecent(ctx context.Context, userID string, limit int) ([]core.ToolLog, error) {
	return nil, nil
}

type fakeDispatcher struct {
	facts []string
	err   error
	calls int
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, userID, message, correlationID string) ([]string, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.facts, nil
}

type fakeGenerator struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (g *fakeGenerator) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, req.UserPrompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newTestPipeline(store *fakeStore, mem *fakeMemory, searcher *fakeSearcher, gen *fakeGenerator, dispatcher *fakeDispatcher) *Pipeline {
	cfg := PipelineConfig{
		Store:     store,
		Memory:    mem,
		ToolLogs:  &fakeToolLogs{},
		Generator: gen,
	}
	if searcher != nil {
		cfg.Searcher = searcher
	}
	if dispatcher != nil {
		cfg.Dispatcher = dispatcher
	}
	return NewPipeline(cfg)
}

func TestRunHappyPath(t *testing.T) {
	store := &fakeStore{messages: []core.Message{
		{Role: core.RoleAssistant, Content: "earlier reply"},
		{Role: core.RoleUser, Content: "earlier question"},
	}}
	mem := &fakeMemory{hits: []core.ScoredFact{{Content: "User lives in Hanoi", Score: 0.9}}}
	gen := &fakeGenerator{reply: "Hello from Hanoi!"}
	dispatcher := &fakeDispatcher{facts: []string{"User greeted the bot"}}

	p := newTestPipeline(store, mem, nil, gen, dispatcher)
	final, err := p.Run(context.Background(), "t1", State{UserID: "alice", UserMessage: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "Hello from Hanoi!", final.AssistantReply)
	assert.Equal(t, []string{"User lives in Hanoi"}, final.LongTermContext)
	assert.Equal(t, []string{"User greeted the bot"}, final.ExtractedFacts)
	// Page returns newest-first, the prompt wants chronological.
	require.Len(t, final.ShortTermContext, 2)
	assert.Equal(t, "earlier question", final.ShortTermContext[0].Content)
	assert.False(t, p.Resumed("t1", "hi"), "checkpoint cleared after a completed turn")
}

func TestNoSearcherNeverSearches(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	p := newTestPipeline(&fakeStore{}, &fakeMemory{}, nil, gen, nil)

	final, err := p.Run(context.Background(), "", State{UserID: "alice", UserMessage: "search the web for news"})
	require.NoError(t, err)
	assert.Empty(t, final.SearchResults)
}

func TestSearcherInvokedOnceOnTrigger(t *testing.T) {
	searcher := &fakeSearcher{results: []core.SearchResult{{Title: "Go 1.25", URL: "https://go.dev"}}}
	store := &fakeStore{}
	gen := &fakeGenerator{reply: "ok"}
	toolLogs := &fakeToolLogs{}

	p := NewPipeline(PipelineConfig{
		Store:     store,
		Memory:    &fakeMemory{},
		Searcher:  searcher,
		ToolLogs:  toolLogs,
		Generator: gen,
	})

	final, err := p.Run(context.Background(), "", State{UserID: "alice", UserMessage: "search for go releases"})
	require.NoError(t, err)
	assert.Equal(t, 1, searcher.calls)
	assert.Len(t, final.SearchResults, 1)
	assert.Equal(t, 1, toolLogs.logged)
}

func TestSearcherNotInvokedWithoutTrigger(t *testing.T) {
	searcher := &fakeSearcher{}
	gen := &fakeGenerator{reply: "ok"}
	p := newTestPipeline(&fakeStore{}, &fakeMemory{}, searcher, gen, nil)

	final, err := p.Run(context.Background(), "", State{UserID: "alice", UserMessage: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 0, searcher.calls)
	assert.Empty(t, final.SearchResults)
}

func TestSearchFailureDegrades(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("search api down")}
	gen := &fakeGenerator{reply: "ok"}
	p := newTestPipeline(&fakeStore{}, &fakeMemory{}, searcher, gen, nil)

	final, err := p.Run(context.Background(), "", State{UserID: "alice", UserMessage: "search for news"})
	require.NoError(t, err)
	assert.Empty(t, final.SearchResults)
	assert.Equal(t, "ok", final.AssistantReply)
}

func TestContextFailuresDegrade(t *testing.T) {
	store := &fakeStore{pageErr: errors.New("db locked")}
	mem := &fakeMemory{err: errors.New("embedder down")}
	gen := &fakeGenerator{reply: "still here"}

	p := newTestPipeline(store, mem, nil, gen, nil)
	final, err := p.Run(context.Background(), "", State{UserID: "alice", UserMessage: "hi"})

	require.NoError(t, err, "context loading never fails the turn")
	assert.Empty(t, final.ShortTermContext)
	assert.Empty(t, final.LongTermContext)
	assert.Equal(t, "still here", final.AssistantReply)
}

func TestDispatchFailureDegrades(t *testing.T) {
	dispatcher := &fakeDispatcher{err: errors.New("broker down")}
	gen := &fakeGenerator{reply: "ok"}
	p := newTestPipeline(&fakeStore{}, &fakeMemory{}, nil, gen, dispatcher)

	final, err := p.Run(context.Background(), "", State{UserID: "alice", UserMessage: "hi"})
	require.NoError(t, err)
	assert.Empty(t, final.ExtractedFacts)
	assert.Equal(t, 1, dispatcher.calls)
}

func TestRespondFailureIsFatal(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	p := newTestPipeline(&fakeStore{}, &fakeMemory{}, nil, gen, nil)

	_, err := p.Run(context.Background(), "", State{UserID: "alice", UserMessage: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "respond")
}

func TestCheckpointResumeSkipsCompletedStages(t *testing.T) {
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	p := newTestPipeline(store, &fakeMemory{}, nil, gen, dispatcher)

	_, err := p.Run(context.Background(), "t1", State{UserID: "alice", UserMessage: "hi"})
	require.Error(t, err)
	assert.True(t, p.Resumed("t1", "hi"))

	// The retry picks up right before the failed stage.
	gen.err = nil
	gen.reply = "recovered"
	final, err := p.Run(context.Background(), "t1", State{UserID: "alice", UserMessage: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "recovered", final.AssistantReply)
	assert.Equal(t, 1, store.pageCalls, "load_context ran only once across both attempts")
	assert.Equal(t, 1, dispatcher.calls, "extraction not re-dispatched on resume")
	assert.False(t, p.Resumed("t1", "hi"))
}

func TestStaleCheckpointDiscardedForNewMessage(t *testing.T) {
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	p := newTestPipeline(store, &fakeMemory{}, nil, gen, dispatcher)

	_, err := p.Run(context.Background(), "t1", State{UserID: "alice", UserMessage: "hi"})
	require.Error(t, err)

	// A different message on the same thread is a new turn, not a retry.
	assert.False(t, p.Resumed("t1", "what is the capital of France?"))

	gen.err = nil
	gen.reply = "Paris"
	final, err := p.Run(context.Background(), "t1", State{UserID: "alice", UserMessage: "what is the capital of France?"})
	require.NoError(t, err)

	assert.Equal(t, "Paris", final.AssistantReply)
	assert.Equal(t, "what is the capital of France?", final.UserMessage)
	assert.Contains(t, gen.prompts[len(gen.prompts)-1], "what is the capital of France?")
	assert.Equal(t, 2, store.pageCalls, "each turn loads its own context")
	assert.Equal(t, 2, dispatcher.calls, "each turn dispatches its own extraction")
}

func TestEmptyThreadIDSkipsCheckpointing(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	p := newTestPipeline(&fakeStore{}, &fakeMemory{}, nil, gen, nil)

	_, err := p.Run(context.Background(), "", State{UserID: "alice", UserMessage: "hi"})
	require.Error(t, err)
	assert.False(t, p.Resumed("", "hi"))
}

func TestCheckpointsEvictionStaysBounded(t *testing.T) {
	cp := NewCheckpoints()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	cp.now = func() time.Time { return clock }

	for i := 0; i < maxCheckpoints; i++ {
		clock = base.Add(time.Duration(i) * time.Second)
		cp.Save(fmt.Sprintf("t%d", i), 1, State{UserMessage: "m"})
	}
	require.Len(t, cp.byThread, maxCheckpoints)

	// Nothing has expired yet, so inserting one more evicts the oldest.
	cp.Save("overflow", 1, State{UserMessage: "m"})
	assert.Len(t, cp.byThread, maxCheckpoints)
	_, _, ok := cp.LoadTurn("t0", "m")
	assert.False(t, ok, "oldest checkpoint evicted first")
	_, _, ok = cp.LoadTurn("overflow", "m")
	assert.True(t, ok)

	// Once everything is past the TTL a single insert sweeps the lot.
	clock = clock.Add(2 * checkpointTTL)
	cp.Save("fresh", 1, State{UserMessage: "m"})
	clock = clock.Add(time.Second)
	cp.Save("fresher", 1, State{UserMessage: "m"})
	_, _, ok = cp.LoadTurn("fresh", "m")
	assert.True(t, ok)
}

func TestCheckpointExpiresAfterTTL(t *testing.T) {
	cp := NewCheckpoints()
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cp.now = func() time.Time { return clock }

	cp.Save("t1", 3, State{UserMessage: "hi"})
	clock = clock.Add(checkpointTTL + time.Minute)

	_, _, ok := cp.LoadTurn("t1", "hi")
	assert.False(t, ok, "abandoned checkpoint is not resumable")
	assert.Empty(t, cp.byThread)
}
