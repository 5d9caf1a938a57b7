package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/eqchat/pkg/log"
)

// SearchConfig is optional: an empty API key disables the web search stage.
type SearchConfig struct {
	APIKey  string `env:"EQCHAT_TAVILY_API_KEY"`
	BaseURL string `env:"EQCHAT_TAVILY_BASE_URL" envDefault:"https://api.tavily.com"`
}

func NewSearchConfig(ctx context.Context) *SearchConfig {
	c := &SearchConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Search config")
	}
	return c
}
