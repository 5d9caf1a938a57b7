// Package identity talks to the external agent-identity service. The
// pipeline only needs to know whether an agent handle exists for a user;
// the handle's shape stays opaque.
package identity

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
}

type Client struct {
	client  *http.Client
	retrier *retry.Retrier
	baseURL string
}

func NewClient(cfg Config) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		retrier: retry.NewDefaultRetrier(),
		baseURL: cfg.BaseURL,
	}
}

// EnsureAgent creates the agent for the user on first contact; an agent
// that already exists is reported as success.
func (c *Client) EnsureAgent(ctx context.Context, userID, username string) error {
	payload, err := json.Marshal(map[string]string{
		"user_id":  userID,
		"username": username,
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	err = c.retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/agents", bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusCreated,
			resp.StatusCode == http.StatusConflict:
			// Conflict means the agent already exists.
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("http %d", resp.StatusCode)
		default:
			return retry.Permanent(fmt.Errorf("http %d", resp.StatusCode))
		}
	})
	if err != nil {
		return fmt.Errorf("%w: ensure agent: %v", core.ErrUpstream, err)
	}
	return nil
}
