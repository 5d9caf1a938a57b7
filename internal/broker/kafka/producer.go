package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/sandevgo/eqchat/internal/core"
)

const defaultAckTimeout = 5 * time.Second

type ProducerConfig struct {
	Brokers []string

	// Confirmed selects the delivery mode for the whole instance: when
	// set, Publish blocks for a broker acknowledgment up to AckTimeout
	// and surfaces ErrDelivery on failure; otherwise Publish returns as
	// soon as the send is buffered locally.
	Confirmed  bool
	AckTimeout time.Duration
}

type Producer struct {
	writer     *kafkago.Writer
	confirmed  bool
	ackTimeout time.Duration
}

func NewProducer(cfg ProducerConfig, logger *zerolog.Logger) *Producer {
	ackTimeout := cfg.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = defaultAckTimeout
	}

	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           5 * time.Millisecond,
		Async:                  !cfg.Confirmed,
		AllowAutoTopicCreation: true,
	}

	if !cfg.Confirmed {
		// Fire-and-forget: delivery failures only surface out of band.
		writer.Completion = func(messages []kafkago.Message, err error) {
			if err != nil {
				logger.Error().Err(err).Int("count", len(messages)).Msg("async publish failed")
			}
		}
	}

	return &Producer{
		writer:     writer,
		confirmed:  cfg.Confirmed,
		ackTimeout: ackTimeout,
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}

	if p.confirmed {
		ctx, cancel := context.WithTimeout(ctx, p.ackTimeout)
		defer cancel()
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			return fmt.Errorf("%w: %v", core.ErrDelivery, err)
		}
		return nil
	}

	// In async mode WriteMessages only enqueues; a caller disconnect must
	// not cancel the buffered send.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		return fmt.Errorf("%w: %v", core.ErrDelivery, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
