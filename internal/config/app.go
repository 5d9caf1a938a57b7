package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/eqchat/pkg/log"
)

type AppConfig struct {
	HTTPAddr string `env:"EQCHAT_HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"EQCHAT_DB_PATH" envDefault:"eqchat.db"`

	// Prompt assembly
	PromptTokenBudget int `env:"EQCHAT_PROMPT_TOKEN_BUDGET" envDefault:"0"`

	// Vector tier
	EnableVector      bool   `env:"EQCHAT_ENABLE_VECTOR" envDefault:"true"`
	VectorPersistPath string `env:"EQCHAT_VECTOR_PATH"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}
