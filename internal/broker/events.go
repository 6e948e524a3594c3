package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"catalog-service/internal/models"
)

// EventPublisher publishes catalog change events keyed by product id.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishRaw publishes an encoded ChangeEvent payload from the outbox.
// The product id key keeps all events of one product on one partition, so
// creates, updates and the final delete arrive in mutation order.
func (ep *EventPublisher) PublishRaw(ctx context.Context, productID string, payload []byte) error {
	if err := ep.producer.Publish(ctx, productID, payload); err != nil {
		return fmt.Errorf("failed to write change event to kafka: %w", err)
	}
	return nil
}

// DecodeChange unmarshals a ChangeEvent payload.
func DecodeChange(payload []byte) (*models.ChangeEvent, error) {
	var event models.ChangeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal change event: %w", err)
	}
	if event.ProductID == "" {
		return nil, fmt.Errorf("change event missing product id")
	}
	return &event, nil
}
