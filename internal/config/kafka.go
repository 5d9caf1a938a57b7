package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/eqchat/pkg/log"
)

type KafkaConfig struct {
	Enabled bool     `env:"EQCHAT_KAFKA_ENABLED" envDefault:"false"`
	Brokers []string `env:"EQCHAT_KAFKA_BROKERS" envDefault:"localhost:9092"`

	// Confirmed switches the producer to wait for broker acks on every
	// publish. Off by default: the chat path fires and forgets.
	Confirmed  bool          `env:"EQCHAT_KAFKA_CONFIRMED" envDefault:"false"`
	AckTimeout time.Duration `env:"EQCHAT_KAFKA_ACK_TIMEOUT" envDefault:"5s"`

	PollTimeout    time.Duration `env:"EQCHAT_KAFKA_POLL_TIMEOUT" envDefault:"1s"`
	IngestGroupID  string        `env:"EQCHAT_KAFKA_INGEST_GROUP" envDefault:"eqchat-ingest"`
	ExtractGroupID string        `env:"EQCHAT_KAFKA_EXTRACT_GROUP" envDefault:"eqchat-extract"`
}

func NewKafkaConfig(ctx context.Context) *KafkaConfig {
	c := &KafkaConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Kafka config")
	}
	return c
}
