package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/eqchat/pkg/log"
)

// IdentityConfig is optional: an empty base URL disables the identity
// collaborator entirely.
type IdentityConfig struct {
	BaseURL string `env:"EQCHAT_IDENTITY_BASE_URL"`
}

func NewIdentityConfig(ctx context.Context) *IdentityConfig {
	c := &IdentityConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Identity config")
	}
	return c
}
