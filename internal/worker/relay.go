// Package worker hosts the propagation pipeline: the outbox relay that
// moves committed change events to the broker, and the indexer that
// applies them to the search index.
package worker

import (
	"context"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/util"

	"go.uber.org/zap"
)

// OutboxStore is the durable event log the relay drains.
type OutboxStore interface {
	FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxRecord, error)
	MarkPublished(ctx context.Context, id int64) error
}

// EventSink publishes encoded change events keyed by product id.
type EventSink interface {
	PublishRaw(ctx context.Context, productID string, payload []byte) error
}

// Relay polls the outbox and publishes pending events to the broker. The
// outbox row is written in the same transaction as the product mutation,
// so a crash between commit and publish loses nothing: the row is still
// unpublished on restart.
type Relay struct {
	store     OutboxStore
	sink      EventSink
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

// NewRelay creates an outbox relay.
func NewRelay(store OutboxStore, sink EventSink, interval time.Duration, batchSize int) *Relay {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Relay{
		store:     store,
		sink:      sink,
		interval:  interval,
		batchSize: batchSize,
		logger:    util.GetLogger(),
	}
}

// Start runs the relay loop until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("Starting outbox relay", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("Outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// RelayOnce publishes one batch of unpublished events in insert order.
// Publishing stops at the first failure so per-product order is preserved;
// the remainder is retried on the next tick.
func (r *Relay) RelayOnce(ctx context.Context) error {
	records, err := r.store.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := r.sink.PublishRaw(ctx, rec.ProductID, rec.Payload); err != nil {
			return err
		}
		if err := r.store.MarkPublished(ctx, rec.ID); err != nil {
			// The event was published but not marked; it will be
			// republished next tick and deduplicated by version on apply.
			return err
		}
		util.EventsPublishedTotal.Inc()
	}
	return nil
}
