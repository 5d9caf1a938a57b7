package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/eqchat/pkg/log"
)

type EmbeddingConfig struct {
	APIKey  string `env:"EQCHAT_EMBEDDING_API_KEY,required,notEmpty"`
	Model   string `env:"EQCHAT_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	BaseURL string `env:"EQCHAT_EMBEDDING_BASE_URL" envDefault:"https://api.openai.com"`
}

func NewEmbeddingConfig(ctx context.Context) *EmbeddingConfig {
	c := &EmbeddingConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Embedding config")
	}
	return c
}
