package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sandevgo/eqchat/pkg/log"
)

const respondSystemPrompt = "You are a helpful assistant. Use the provided context when answering."

// buildUserPrompt concatenates long-term memory, the recent conversation in
// chronological order, and search results, each rendered as compact lines.
func buildUserPrompt(st State) string {
	var parts []string

	if len(st.LongTermContext) > 0 {
		parts = append(parts, "Long-term memory:\n"+strings.Join(st.LongTermContext, "\n"))
	}

	if len(st.ShortTermContext) > 0 {
		turns := make([]string, 0, len(st.ShortTermContext))
		for _, m := range st.ShortTermContext {
			turns = append(turns, fmt.Sprintf("%s: %s", m.Role, m.Content))
		}
		parts = append(parts, fmt.Sprintf("Recent conversation (last %d):\n%s", len(turns), strings.Join(turns, "\n")))
	}

	if len(st.SearchResults) > 0 {
		lines := make([]string, 0, len(st.SearchResults))
		for _, r := range st.SearchResults {
			lines = append(lines, fmt.Sprintf("- %s %s", r.Title, r.URL))
		}
		parts = append(parts, "Web search results:\n"+strings.Join(lines, "\n"))
	}

	context := strings.Join(parts, "\n\n")
	return fmt.Sprintf("Context (may be partial):\n%s\n\nUser: %s\nAssistant:", context, st.UserMessage)
}

// tokenCounter bounds the assembled prompt. A zero budget, or a tokenizer
// that could not be loaded, disables trimming.
type tokenCounter struct {
	encoder *tiktoken.Tiktoken
	budget  int
}

func newTokenCounter(budget int) tokenCounter {
	if budget <= 0 {
		return tokenCounter{}
	}
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return tokenCounter{budget: budget}
	}
	return tokenCounter{encoder: encoder, budget: budget}
}

func (t tokenCounter) count(text string) int {
	if t.encoder == nil {
		return 0
	}
	return len(t.encoder.Encode(text, nil, nil))
}

// trimToBudget drops the oldest short-term turns until the prompt fits.
// Long-term facts and search results are small and always kept.
func (p *Pipeline) trimToBudget(ctx context.Context, st State) State {
	if p.counter.budget <= 0 || p.counter.encoder == nil {
		return st
	}

	dropped := 0
	for len(st.ShortTermContext) > 0 && p.counter.count(buildUserPrompt(st)) > p.counter.budget {
		st.ShortTermContext = st.ShortTermContext[1:]
		dropped++
	}
	if dropped > 0 {
		log.FromCtx(ctx).Debug().Int("dropped_turns", dropped).Msg("trimmed prompt to token budget")
	}
	return st
}
