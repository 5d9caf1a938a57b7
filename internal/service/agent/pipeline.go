// Package agent implements the four-stage turn-processing pipeline:
// load context, maybe search, dispatch fact extraction, respond. The
// topology is fixed; the only branch is the boolean search gate.
package agent

import (
	"context"
	"fmt"

	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/pkg/log"
)

const (
	shortTermTurns = 10
	longTermTopK   = 5
	maxSearchHits  = 5
)

// Memory is the slice of the memory service the pipeline needs.
type Memory interface {
	Search(ctx context.Context, userID, query string, topK int) ([]core.ScoredFact, error)
}

type PipelineConfig struct {
	Store      core.ConversationStore
	Memory     Memory
	Searcher   core.Searcher // optional
	ToolLogs   core.ToolLogStore
	Dispatcher ExtractDispatcher
	Generator  core.TextGenerator
	Gate       SearchGate

	// PromptBudget bounds the assembled prompt in tokens; zero disables
	// trimming.
	PromptBudget int
}

type Pipeline struct {
	store       core.ConversationStore
	memory      Memory
	searcher    core.Searcher
	toolLogs    core.ToolLogStore
	dispatcher  ExtractDispatcher
	generator   core.TextGenerator
	gate        SearchGate
	checkpoints *Checkpoints
	counter     tokenCounter
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	gate := cfg.Gate
	if gate == nil {
		gate = NewKeywordGate()
	}
	return &Pipeline{
		store:       cfg.Store,
		memory:      cfg.Memory,
		searcher:    cfg.Searcher,
		toolLogs:    cfg.ToolLogs,
		dispatcher:  cfg.Dispatcher,
		generator:   cfg.Generator,
		gate:        gate,
		checkpoints: NewCheckpoints(),
		counter:     newTokenCounter(cfg.PromptBudget),
	}
}

type stage struct {
	name string
	run  func(ctx context.Context, st State) (State, error)
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{name: "load_context", run: p.loadContext},
		{name: "maybe_search", run: p.maybeSearch},
		{name: "extract_facts", run: p.extractFacts},
		{name: "respond", run: p.respond},
	}
}

// Run executes the stages in fixed order. When threadID matches a
// checkpoint saved for this same turn, already-completed stages are
// skipped; a checkpoint left by a different turn is discarded so the new
// message always gets a fresh run.
func (p *Pipeline) Run(ctx context.Context, threadID string, st State) (State, error) {
	start := 0
	if threadID != "" {
		if saved, savedStage, ok := p.checkpoints.LoadTurn(threadID, st.UserMessage); ok {
			st, start = saved, savedStage
			log.FromCtx(ctx).Info().Str("thread_id", threadID).Int("stage", start).Msg("resuming turn from checkpoint")
		}
	}

	stages := p.stages()
	for i := start; i < len(stages); i++ {
		var err error
		st, err = stages[i].run(ctx, st)
		if err != nil {
			return st, fmt.Errorf("stage %s: %w", stages[i].name, err)
		}
		if threadID != "" {
			p.checkpoints.Save(threadID, i+1, st)
		}
	}

	if threadID != "" {
		p.checkpoints.Clear(threadID)
	}
	return st, nil
}

// Resumed reports whether a checkpoint exists for this exact turn, i.e.
// the same user message was already persisted by an interrupted attempt.
// A checkpoint saved for a different message does not count and is
// discarded here, so the caller persists the new message normally.
func (p *Pipeline) Resumed(threadID, userMessage string) bool {
	if threadID == "" {
		return false
	}
	_, _, ok := p.checkpoints.LoadTurn(threadID, userMessage)
	return ok
}

// loadContext fetches the last turns and the most similar long-term facts.
// Either fetch failing degrades to an empty list for that source.
func (p *Pipeline) loadContext(ctx context.Context, st State) (State, error) {
	logger := log.FromCtx(ctx)

	page, err := p.store.Page(ctx, st.UserID, core.PageOptions{
		PageSize:    shortTermTurns,
		NewestFirst: true,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("short-term context unavailable")
		st.ShortTermContext = nil
	} else {
		// Newest-first in storage order, chronological for the prompt.
		items := page.Items
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		st.ShortTermContext = items
	}

	hits, err := p.memory.Search(ctx, st.UserID, st.UserMessage, longTermTopK)
	if err != nil {
		logger.Warn().Err(err).Msg("long-term context unavailable")
		st.LongTermContext = nil
		return st, nil
	}
	st.LongTermContext = make([]string, 0, len(hits))
	for _, h := range hits {
		st.LongTermContext = append(st.LongTermContext, h.Content)
	}
	return st, nil
}

// maybeSearch invokes the search collaborator when the gate fires and a
// collaborator is configured; otherwise the result list stays empty.
func (p *Pipeline) maybeSearch(ctx context.Context, st State) (State, error) {
	st.SearchResults = []core.SearchResult{}
	if p.searcher == nil || !p.gate.ShouldSearch(st.UserMessage) {
		return st, nil
	}

	logger := log.FromCtx(ctx)
	results, err := p.searcher.Search(ctx, st.UserMessage, maxSearchHits)
	if err != nil {
		logger.Warn().Err(err).Msg("web search failed")
		return st, nil
	}
	st.SearchResults = results

	if p.toolLogs != nil {
		if err := p.toolLogs.LogSearch(ctx, st.UserID, st.UserMessage, results); err != nil {
			logger.Warn().Err(err).Msg("failed to log search results")
		}
	}
	return st, nil
}

// extractFacts hands the user message to the extraction dispatcher. The
// outcome is best-effort and never fails the turn.
func (p *Pipeline) extractFacts(ctx context.Context, st State) (State, error) {
	st.ExtractedFacts = []string{}
	if p.dispatcher == nil {
		return st, nil
	}

	facts, err := p.dispatcher.Dispatch(ctx, st.UserID, st.UserMessage, "")
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("fact extraction dispatch failed")
		return st, nil
	}
	if facts != nil {
		st.ExtractedFacts = facts
	}
	return st, nil
}

// respond synthesizes the reply. This is the one stage whose failure is
// fatal to the turn: without a reply the turn has no value.
func (p *Pipeline) respond(ctx context.Context, st State) (State, error) {
	st = p.trimToBudget(ctx, st)

	reply, err := p.generator.Generate(ctx, core.GenerateRequest{
		SystemPrompt: respondSystemPrompt,
		UserPrompt:   buildUserPrompt(st),
	})
	if err != nil {
		return st, err
	}
	st.AssistantReply = reply
	return st, nil
}
