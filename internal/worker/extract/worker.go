// Package extract drains the ltm-extract stream and turns queued user
// messages into long-term facts. Extraction is best-effort: a failed event
// is logged and advanced past, never redelivered forever.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/eqchat/internal/broker"
	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/pkg/log"
)

// Extractor is implemented by the memory service.
type Extractor interface {
	ExtractAndStore(ctx context.Context, userID, message string) ([]string, error)
}

type Worker struct {
	consumer  broker.Consumer
	extractor Extractor
}

func NewWorker(consumer broker.Consumer, extractor Extractor) *Worker {
	return &Worker{consumer: consumer, extractor: extractor}
}

func (w *Worker) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Str("topic", core.TopicExtract).Msg("starting extraction worker")

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
			logger.Error().Err(err).Msg("broker error, terminating worker")
			return fmt.Errorf("extraction worker: %w", err)
		}

		w.process(context.WithoutCancel(ctx), msg)
	}
}

func (w *Worker) process(ctx context.Context, msg broker.Message) {
	logger := log.FromCtx(ctx)

	req, err := core.DecodeExtractRequest(msg.Value)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping malformed extract request")
		w.commit(ctx, msg)
		return
	}

	userID := core.NormalizeUserID(string(req.UserID))
	facts, err := w.extractor.ExtractAndStore(ctx, userID, req.Message)
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("fact extraction failed")
	} else if len(facts) > 0 {
		logger.Info().Int("count", len(facts)).Str("user_id", userID).Msg("facts extracted")
	} else {
		logger.Debug().Str("user_id", userID).Msg("no facts extracted")
	}

	// Extraction is best-effort, so the offset advances either way.
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
