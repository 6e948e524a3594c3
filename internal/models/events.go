package models

import "time"

// Change operations
const (
	OpCreated = "PRODUCT_CREATED"
	OpUpdated = "PRODUCT_UPDATED"
	OpDeleted = "PRODUCT_DELETED"
)

// ChangeEvent describes one committed catalog mutation. Events are written
// to the outbox in the same transaction as the mutation, relayed to Kafka
// keyed by product id, and applied to the search index idempotently by
// version.
type ChangeEvent struct {
	EventID    string          `json:"event_id"`
	ProductID  string          `json:"product_id"`
	Operation  string          `json:"operation"`
	Version    int64           `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Product    *SearchDocument `json:"product,omitempty"` // nil for deletes
}

// OutboxRecord is the persisted form of a ChangeEvent awaiting relay to the
// broker. Rows are published in id order per product.
type OutboxRecord struct {
	ID        int64     `db:"id"`
	EventID   string    `db:"event_id"`
	ProductID string    `db:"product_id"`
	Payload   []byte    `db:"payload"`
	Published bool      `db:"published"`
	CreatedAt time.Time `db:"created_at"`
}

// DeadLetter records a ChangeEvent that exhausted its apply retry budget.
// It is held for manual inspection and never returned to any caller.
type DeadLetter struct {
	ID        int64     `db:"id"`
	EventID   string    `db:"event_id"`
	ProductID string    `db:"product_id"`
	Payload   []byte    `db:"payload"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}
