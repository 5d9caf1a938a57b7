package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/pkg/log"
)

const extractionSystemPrompt = "You are a long-term memory extractor. Respond with a single JSON object and nothing else."

func buildExtractionPrompt(message string) string {
	return fmt.Sprintf(
		`Extract atomic, durable facts about the user from the content below.
Rules:
1. Skip greetings, questions and filler.
2. Each fact is %d-%d characters and self-contained (replace pronouns with "User").
3. Category is a short snake_case label of your choice.
4. Confidence is a number between 0 and 1.
Return only JSON matching: {"facts": [{"text": str, "category": str, "confidence": number}]}

Content:
%s`, core.MinFactLength, core.MaxFactLength, message)
}

type extractedFact struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// ExtractFacts asks the LLM for atomic facts in strict JSON mode. Malformed
// output yields an empty result, never an error surfaced to the turn.
func (s *Service) ExtractFacts(ctx context.Context, message string) ([]string, error) {
	raw, err := s.llm.Generate(ctx, core.GenerateRequest{
		SystemPrompt: extractionSystemPrompt,
		UserPrompt:   buildExtractionPrompt(message),
		JSONResponse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	facts := parseExtraction(ctx, raw)
	return facts, nil
}

// parseExtraction filters and deduplicates the model output within a single
// batch. If the model did not return valid JSON we do not guess.
func parseExtraction(ctx context.Context, raw string) []string {
	var result struct {
		Facts []extractedFact `json:"facts"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("extraction output is not valid JSON, treating as empty")
		return nil
	}

	seen := make(map[string]struct{}, len(result.Facts))
	var facts []string
	for _, f := range result.Facts {
		text := strings.TrimSpace(f.Text)
		n := utf8.RuneCountInString(text)
		if n < core.MinFactLength || n > core.MaxFactLength {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		facts = append(facts, text)
	}
	return facts
}

// ExtractAndStore runs extraction and persists each fact, returning the
// facts that were stored. A single failing fact does not abort the rest.
func (s *Service) ExtractAndStore(ctx context.Context, userID, message string) ([]string, error) {
	facts, err := s.ExtractFacts(ctx, message)
	if err != nil {
		return nil, err
	}

	logger := log.FromCtx(ctx)
	var persisted []string
	for _, fact := range facts {
		if err := s.Remember(ctx, userID, fact, "extracted"); err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("failed to persist extracted fact")
			continue
		}
		persisted = append(persisted, fact)
	}
	return persisted, nil
}
