// Package llm holds the HTTP provider for the external text-generation
// collaborator. Any OpenAI-compatible chat-completions endpoint works.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sandevgo/eqchat/internal/core"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

type Provider struct {
	baseProvider
	temperature float64
}

func NewProvider(cfg Config) *Provider {
	return &Provider{
		baseProvider: newBaseProvider(cfg.BaseURL, cfg.APIKey, cfg.Model),
		temperature:  cfg.Temperature,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *Provider) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: core.RoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: core.RoleUser, Content: req.UserPrompt})

	payload := map[string]any{
		"model":       p.model,
		"messages":    messages,
		"temperature": p.temperature,
	}
	if req.JSONResponse {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	resp, err := p.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}

	data, err := readBody(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}

	var result struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("%w: decode: %v", core.ErrUpstream, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", core.ErrUpstream)
	}
	return result.Choices[0].Message.Content, nil
}
