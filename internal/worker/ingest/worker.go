// Package ingest drains the chat-messages stream and persists message.created
// events. Delivery is at-least-once; the store's uniqueness constraint on
// message_id makes the write exactly-once-effective.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/eqchat/internal/broker"
	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/pkg/log"
)

type Worker struct {
	consumer broker.Consumer
	store    core.ConversationStore
}

func NewWorker(consumer broker.Consumer, store core.ConversationStore) *Worker {
	return &Worker{consumer: consumer, store: store}
}

func (w *Worker) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Str("topic", core.TopicChatMessages).Msg("starting ingestion worker")

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := w.consumer.Fetch(ctx)
		switch {
		case errors.Is(err, broker.ErrNoMessage):
			continue
		case errors.Is(err, broker.ErrClosed), errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			// Genuine broker errors terminate the loop; process
			// supervision restarts the worker.
			logger.Error().Err(err).Msg("broker error, terminating worker")
			return fmt.Errorf("ingestion worker: %w", err)
		}

		// Finish the in-flight message even if shutdown starts mid-write.
		w.process(context.WithoutCancel(ctx), msg)
	}
}

func (w *Worker) process(ctx context.Context, msg broker.Message) {
	logger := log.FromCtx(ctx)

	event, err := core.DecodeMessageCreatedEvent(msg.Value)
	if err != nil {
		// Skip-ack malformed events so one poison message cannot stall
		// the partition.
		logger.Warn().Err(err).Msg("skipping malformed event")
		w.commit(ctx, msg)
		return
	}

	if event.EventType != core.EventMessageCreated {
		logger.Debug().Str("event_type", event.EventType).Msg("skipping unrecognized event type")
		w.commit(ctx, msg)
		return
	}

	stored, err := event.Message()
	if err != nil {
		logger.Warn().Err(err).Str("message_id", event.MessageID).Msg("skipping event with invalid payload")
		w.commit(ctx, msg)
		return
	}

	inserted, err := w.store.Insert(ctx, stored)
	if err != nil {
		// No commit: the store may be back for the redelivery.
		logger.Error().Err(err).Str("message_id", stored.MessageID).Msg("failed to persist message")
		return
	}

	if inserted {
		logger.Debug().Str("message_id", stored.MessageID).Str("user_id", stored.UserID).Msg("message ingested")
	} else {
		logger.Debug().Str("message_id", stored.MessageID).Msg("duplicate delivery, already stored")
	}

	w.commit(ctx, msg)
}

func (w *Worker) commit(ctx context.Context, msg broker.Message) {
	if err := w.consumer.Commit(ctx, msg); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to commit offset")
	}
}

func (w *Worker) Shutdown(ctx context.Context) error {
	return w.consumer.Close()
}
