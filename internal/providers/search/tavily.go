// Package search holds the HTTP client for the web-search collaborator
// (a Tavily-style API).
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sandevgo/eqchat/internal/core"
)

type Config struct {
	BaseURL string
	APIKey  string
}

type Client struct {
	client *http.Client
	cfg    Config
}

func NewClient(cfg Config) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		cfg: cfg,
	}
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]core.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	payload, err := json.Marshal(map[string]any{
		"api_key":     c.cfg.APIKey,
		"query":       query,
		"max_results": maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d: %s", core.ErrUpstream, resp.StatusCode, string(data))
	}

	var result struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", core.ErrUpstream, err)
	}

	out := make([]core.SearchResult, 0, len(result.Results))
	for _, r := range result.Results {
		out = append(out, core.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}
	return out, nil
}
