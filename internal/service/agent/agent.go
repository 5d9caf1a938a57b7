package agent

import (
	"context"
	"fmt"

	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/pkg/log"
)

type ChatInput struct {
	UserID   string
	Username string
	Message  string
	ThreadID string
}

type ChatResult struct {
	Reply          string              `json:"message"`
	LongTerm       []string            `json:"long_term"`
	SearchResults  []core.SearchResult `json:"search_results"`
	ExtractedFacts []string            `json:"extracted_facts"`
}

// Agent owns the caller-facing turn lifecycle: persist the user's turn, run
// the pipeline, persist the reply.
type Agent struct {
	store    core.ConversationStore
	pipeline *Pipeline
	identity core.IdentityProvider // optional
}

func NewAgent(store core.ConversationStore, pipeline *Pipeline, identity core.IdentityProvider) *Agent {
	return &Agent{
		store:    store,
		pipeline: pipeline,
		identity: identity,
	}
}

func (a *Agent) Chat(ctx context.Context, in ChatInput) (ChatResult, error) {
	logger := log.FromCtx(ctx)

	// A single non-empty identity is required; username stands in when no
	// user id was supplied.
	userID := core.NormalizeUserID(in.UserID)
	if userID == "" {
		userID = core.NormalizeUserID(in.Username)
	}
	if userID == "" {
		return ChatResult{}, fmt.Errorf("%w: user_id or username is required", core.ErrValidation)
	}

	if a.identity != nil {
		if err := a.identity.EnsureAgent(ctx, userID, in.Username); err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("identity service unavailable")
		}
	}

	threadID := in.ThreadID
	if threadID == "" {
		threadID = userID
	}

	// On a resumed turn the same user message was already persisted by the
	// interrupted attempt; appending again would duplicate it.
	if !a.pipeline.Resumed(threadID, in.Message) {
		if _, err := a.store.Append(ctx, userID, core.RoleUser, in.Message); err != nil {
			return ChatResult{}, fmt.Errorf("persist user message: %w", err)
		}
	}

	st := State{
		UserID:      userID,
		Username:    in.Username,
		UserMessage: in.Message,
	}

	final, err := a.pipeline.Run(ctx, threadID, st)
	if err != nil {
		return ChatResult{}, err
	}

	if final.AssistantReply != "" {
		if _, err := a.store.Append(ctx, userID, core.RoleAssistant, final.AssistantReply); err != nil {
			logger.Error().Err(err).Msg("failed to persist assistant message")
		}
	}

	return ChatResult{
		Reply:          final.AssistantReply,
		LongTerm:       final.LongTermContext,
		SearchResults:  final.SearchResults,
		ExtractedFacts: final.ExtractedFacts,
	}, nil
}
