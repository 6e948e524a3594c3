package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateProduct inserts a new product at version 1 and its change event in
// one transaction, so the event cannot be lost once the write commits.
func (s *Store) CreateProduct(ctx context.Context, ownerID string, fields *models.ProductFields) (*models.Product, error) {
	now := time.Now().UTC()
	product := &models.Product{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        fields.Name,
		PriceMinor:  fields.PriceMinor,
		StockCount:  fields.StockCount,
		Category:    fields.Category,
		Description: fields.Description,
		Tags:        models.TagList(fields.Tags),
		Active:      true,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, owner_id, name, price_minor, stock_count, category, description, tags, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		product.ID, product.OwnerID, product.Name, product.PriceMinor, product.StockCount,
		product.Category, product.Description, product.Tags, product.Active, product.Version,
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	if err := insertOutboxTx(ctx, tx, product, models.OpCreated); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct applies a full-field replace under a row lock. The lock
// serializes concurrent writers on the same id, so the version increment
// never loses an update.
func (s *Store) UpdateProduct(ctx context.Context, id, ownerID string, fields *models.ProductFields) (*models.Product, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	current, err := lockProductTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}

	current.Name = fields.Name
	current.PriceMinor = fields.PriceMinor
	current.StockCount = fields.StockCount
	current.Category = fields.Category
	current.Description = fields.Description
	current.Tags = models.TagList(fields.Tags)
	current.Version++
	current.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET name = $1, price_minor = $2, stock_count = $3, category = $4,
		    description = $5, tags = $6, version = $7, updated_at = $8
		WHERE id = $9`,
		current.Name, current.PriceMinor, current.StockCount, current.Category,
		current.Description, current.Tags, current.Version, current.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if err := insertOutboxTx(ctx, tx, current, models.OpUpdated); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return current, nil
}

// DeleteProduct performs a logical delete: the row is retained with
// active=false so the pipeline can emit a tombstone. Deleted is terminal.
// The soft-deleted record is returned so the cache can hold its version.
func (s *Store) DeleteProduct(ctx context.Context, id, ownerID string) (*models.Product, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	current, err := lockProductTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}

	current.Active = false
	current.Version++
	current.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		"UPDATE products SET active = FALSE, version = $1, updated_at = $2 WHERE id = $3",
		current.Version, current.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	if err := insertOutboxTx(ctx, tx, current, models.OpDeleted); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return current, nil
}

// GetProduct retrieves an active product by id.
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 AND active = TRUE", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves a page of active products, newest first.
func (s *Store) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE active = TRUE ORDER BY created_at DESC, id LIMIT $1 OFFSET $2",
		limit, offset)
	return products, err
}

// CountProducts counts active products.
func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM products WHERE active = TRUE")
	return count, err
}

// lockProductTx loads an active product under FOR UPDATE so concurrent
// mutations of the same id serialize.
func lockProductTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Product, error) {
	var product models.Product
	err := tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 AND active = TRUE FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	return &product, nil
}

// insertOutboxTx records the change event alongside the mutation it
// describes. The payload for deletes carries no product snapshot.
func insertOutboxTx(ctx context.Context, tx *sqlx.Tx, product *models.Product, operation string) error {
	event := models.ChangeEvent{
		EventID:    uuid.New().String(),
		ProductID:  product.ID,
		Operation:  operation,
		Version:    product.Version,
		OccurredAt: product.UpdatedAt,
	}
	if operation != models.OpDeleted {
		event.Product = product.Document()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO outbox (event_id, product_id, payload) VALUES ($1, $2, $3)",
		event.EventID, event.ProductID, payload)
	if err != nil {
		return fmt.Errorf("failed to insert outbox record: %w", err)
	}
	return nil
}
