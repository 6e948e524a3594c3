package store

import (
	"context"

	"catalog-service/internal/models"
)

// FetchUnpublished returns the oldest unpublished outbox records, in insert
// order. Insert order per product id is mutation order, so the relay
// preserves per-product FIFO.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	var records []models.OutboxRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM outbox WHERE published = FALSE ORDER BY id LIMIT $1", limit)
	return records, err
}

// MarkPublished flags an outbox record as relayed to the broker.
func (s *Store) MarkPublished(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox SET published = TRUE WHERE id = $1", id)
	return err
}

// InsertDeadLetter records an event that exhausted its apply retry budget.
func (s *Store) InsertDeadLetter(ctx context.Context, eventID, productID string, payload []byte, reason string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO dead_letters (event_id, product_id, payload, reason) VALUES ($1, $2, $3, $4) ON CONFLICT (event_id) DO NOTHING",
		eventID, productID, payload, reason)
	return err
}

// ListDeadLetters returns dead-lettered events for manual inspection.
func (s *Store) ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	var letters []models.DeadLetter
	err := s.db.SelectContext(ctx, &letters,
		"SELECT * FROM dead_letters ORDER BY created_at DESC LIMIT $1", limit)
	return letters, err
}
