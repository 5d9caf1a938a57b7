package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/eqchat/pkg/log"
)

type LLMConfig struct {
	APIKey  string `env:"EQCHAT_LLM_API_KEY,required,notEmpty"`
	Model   string `env:"EQCHAT_LLM_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL string `env:"EQCHAT_LLM_BASE_URL" envDefault:"https://api.openai.com"`
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	return c
}
