package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/sandevgo/eqchat/internal/broker"
)

const defaultPollTimeout = time.Second

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topic       string
	PollTimeout time.Duration
}

type Consumer struct {
	reader      *kafkago.Reader
	pollTimeout time.Duration
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     pollTimeout,
		StartOffset: kafkago.FirstOffset,
		// CommitInterval zero keeps commits synchronous and manual.
	})

	return &Consumer{reader: reader, pollTimeout: pollTimeout}
}

// Fetch polls for one record with a bounded timeout. An elapsed timeout is
// reported as broker.ErrNoMessage, shutdown as broker.ErrClosed; anything
// else is a genuine broker error that the worker treats as fatal.
func (c *Consumer) Fetch(ctx context.Context) (broker.Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	m, err := c.reader.FetchMessage(fetchCtx)
	if err != nil {
		switch {
		case ctx.Err() != nil, errors.Is(err, io.EOF):
			return broker.Message{}, broker.ErrClosed
		case errors.Is(err, context.DeadlineExceeded):
			return broker.Message{}, broker.ErrNoMessage
		default:
			return broker.Message{}, fmt.Errorf("fetch message: %w", err)
		}
	}

	return broker.Message{
		Topic: m.Topic,
		Key:   m.Key,
		Value: m.Value,
		Raw:   m,
	}, nil
}

func (c *Consumer) Commit(ctx context.Context, msg broker.Message) error {
	m, ok := msg.Raw.(kafkago.Message)
	if !ok {
		return fmt.Errorf("commit: message does not originate from this consumer")
	}
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit offset: %w", err)
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
