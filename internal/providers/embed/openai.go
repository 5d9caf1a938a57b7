// Package embed holds the HTTP provider for the external embedding model.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/pkg/retry"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

type Provider struct {
	client  *http.Client
	retrier *retry.Retrier
	cfg     Config
}

func NewProvider(cfg Config) *Provider {
	return &Provider{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		retrier: retry.NewDefaultRetrier(),
		cfg:     cfg,
	}
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model": p.cfg.Model,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	var embedding []float32
	err = p.retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
		}
		if resp.StatusCode != http.StatusOK {
			return retry.Permanent(fmt.Errorf("http %d: %s", resp.StatusCode, string(data)))
		}

		var result struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return retry.Permanent(fmt.Errorf("decode: %w", err))
		}
		if len(result.Data) == 0 {
			return retry.Permanent(fmt.Errorf("empty embedding response"))
		}
		embedding = result.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", core.ErrUpstream, err)
	}
	return embedding, nil
}
