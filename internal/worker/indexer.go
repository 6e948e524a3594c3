package worker

import (
	"context"
	"fmt"
	"time"

	"catalog-service/internal/broker"
	"catalog-service/internal/models"
	"catalog-service/internal/util"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DocumentIndex is the search-side apply surface. Stale versions must be
// rejected as no-ops so redelivered events are safe.
type DocumentIndex interface {
	ApplyIfNewer(ctx context.Context, doc *models.SearchDocument) (bool, error)
	Tombstone(ctx context.Context, id string, version int64) (bool, error)
}

// DeadLetterStore records events whose apply retries were exhausted.
type DeadLetterStore interface {
	InsertDeadLetter(ctx context.Context, eventID, productID string, payload []byte, reason string) error
}

// EventSource is the consuming side of the change-event topic.
type EventSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// Indexer consumes change events and applies them to the search index.
// Apply failures are retried with exponential backoff up to maxAttempts;
// exhausted events go to the dead-letter table. Nothing here is ever
// surfaced to the writer whose mutation already committed.
type Indexer struct {
	consumer    EventSource
	index       DocumentIndex
	deadLetters DeadLetterStore
	maxAttempts int
	maxInterval time.Duration
	logger      *zap.Logger
}

// NewIndexer creates an index worker.
func NewIndexer(consumer EventSource, index DocumentIndex, deadLetters DeadLetterStore, maxAttempts int) *Indexer {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Indexer{
		consumer:    consumer,
		index:       index,
		deadLetters: deadLetters,
		maxAttempts: maxAttempts,
		maxInterval: 5 * time.Second,
		logger:      util.GetLogger(),
	}
}

// Start consumes until ctx is cancelled.
func (ix *Indexer) Start(ctx context.Context) error {
	ix.logger.Info("Starting index worker")
	return ix.consumer.StartConsuming(ctx, ix.HandleMessage)
}

// Stop closes the underlying consumer.
func (ix *Indexer) Stop() error {
	ix.logger.Info("Stopping index worker")
	return ix.consumer.Close()
}

// HandleMessage decodes one change event and applies it with retries.
func (ix *Indexer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	event, err := broker.DecodeChange(msg.Value)
	if err != nil {
		// Malformed payloads can never succeed; dead-letter immediately.
		ix.deadLetter(ctx, "", string(msg.Key), msg.Value, err)
		return err
	}

	op := func() error {
		return ix.apply(ctx, event)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackoff(ix.maxInterval), uint64(ix.maxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		ix.deadLetter(ctx, event.EventID, event.ProductID, msg.Value, err)
		return err
	}
	return nil
}

// apply routes one event to the index. Stale versions are reported as
// skips, not errors, so duplicates never retry.
func (ix *Indexer) apply(ctx context.Context, event *models.ChangeEvent) error {
	start := time.Now()
	defer func() {
		util.IndexApplyLatency.Observe(time.Since(start).Seconds())
	}()

	switch event.Operation {
	case models.OpDeleted:
		applied, err := ix.index.Tombstone(ctx, event.ProductID, event.Version)
		if err != nil {
			return err
		}
		ix.observeApply(event, applied)
		return nil

	case models.OpCreated, models.OpUpdated:
		if event.Product == nil {
			return backoff.Permanent(fmt.Errorf("event %s has no product snapshot", event.EventID))
		}
		applied, err := ix.index.ApplyIfNewer(ctx, event.Product)
		if err != nil {
			return err
		}
		ix.observeApply(event, applied)
		return nil

	default:
		return backoff.Permanent(fmt.Errorf("unknown operation %q", event.Operation))
	}
}

func (ix *Indexer) observeApply(event *models.ChangeEvent, applied bool) {
	if applied {
		util.EventsAppliedTotal.Inc()
		return
	}
	util.EventsSkippedStaleTotal.Inc()
	ix.logger.Debug("Skipped stale change event",
		zap.String("product_id", event.ProductID),
		zap.Int64("version", event.Version))
}

func (ix *Indexer) deadLetter(ctx context.Context, eventID, productID string, payload []byte, cause error) {
	util.EventsDeadLetteredTotal.Inc()
	ix.logger.Error("Change event dead-lettered",
		zap.String("event_id", eventID),
		zap.String("product_id", productID),
		zap.Error(cause))

	if err := ix.deadLetters.InsertDeadLetter(ctx, eventID, productID, payload, cause.Error()); err != nil {
		ix.logger.Error("Failed to persist dead letter",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

func newBackoff(maxInterval time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0
	return b
}
