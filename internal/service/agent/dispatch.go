package agent

import (
	"context"
	"fmt"

	"github.com/sandevgo/eqchat/internal/broker"
	"github.com/sandevgo/eqchat/internal/core"
)

// ExtractDispatcher is the two-branch strategy behind the extract-facts
// stage. The branch is chosen once when the pipeline is built: an event
// channel when one is available, in-process extraction otherwise. Each
// branch can then be tested deterministically.
type ExtractDispatcher interface {
	Dispatch(ctx context.Context, userID, message, correlationID string) ([]string, error)
}

// Extractor is implemented by the memory service.
type Extractor interface {
	ExtractAndStore(ctx context.Context, userID, message string) ([]string, error)
}

// AsyncDispatcher publishes an extraction request fire-and-forget. Facts
// become available whenever the extraction worker gets to them, never
// within the same turn.
type AsyncDispatcher struct {
	producer broker.Producer
}

func NewAsyncDispatcher(producer broker.Producer) *AsyncDispatcher {
	return &AsyncDispatcher{producer: producer}
}

func (d *AsyncDispatcher) Dispatch(ctx context.Context, userID, message, correlationID string) ([]string, error) {
	payload, err := core.ExtractRequest{
		UserID:        core.FlexID(userID),
		Message:       message,
		CorrelationID: correlationID,
	}.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode extract request: %w", err)
	}

	if err := d.producer.Publish(ctx, core.TopicExtract, userID, payload); err != nil {
		return nil, fmt.Errorf("publish extract request: %w", err)
	}
	return nil, nil
}

// SyncDispatcher extracts and persists facts in-process, the fallback when
// no event channel is configured.
type SyncDispatcher struct {
	extractor Extractor
}

func NewSyncDispatcher(extractor Extractor) *SyncDispatcher {
	return &SyncDispatcher{extractor: extractor}
}

func (d *SyncDispatcher) Dispatch(ctx context.Context, userID, message, correlationID string) ([]string, error) {
	return d.extractor.ExtractAndStore(ctx, userID, message)
}
