package models

import (
	"strings"
	"time"
)

// Product is the authoritative catalog record. Version increases by one on
// every committed mutation; Active=false is a terminal soft-delete state.
type Product struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	Name        string    `db:"name" json:"name"`
	PriceMinor  int64     `db:"price_minor" json:"price_minor"`
	StockCount  int       `db:"stock_count" json:"stock_count"`
	Category    string    `db:"category" json:"category"`
	Description string    `db:"description" json:"description"`
	Tags        TagList   `db:"tags" json:"tags"`
	Active      bool      `db:"active" json:"-"`
	Version     int64     `db:"version" json:"version"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SearchDocument is the denormalized read-side projection of a Product.
// SourceVersion is copied from the originating catalog mutation and is
// never ahead of the catalog's version for the same id.
type SearchDocument struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Name          string    `json:"name"`
	PriceMinor    int64     `json:"price_minor"`
	StockCount    int       `json:"stock_count"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	SourceVersion int64     `json:"source_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Principal is an authenticated identity resolved from a session
// credential. It is scoped to a single request and never persisted.
type Principal struct {
	ID            string `json:"id"`
	EmailVerified bool   `json:"email_verified"`
}

// Product categories (closed set)
const (
	CategoryElectronics = "Electronics"
	CategoryBooks       = "Books"
	CategoryClothing    = "Clothing"
	CategoryHomeKitchen = "Home & Kitchen"
	CategorySports      = "Sports"
)

var categories = map[string]bool{
	CategoryElectronics: true,
	CategoryBooks:       true,
	CategoryClothing:    true,
	CategoryHomeKitchen: true,
	CategorySports:      true,
}

// ValidCategory reports whether c belongs to the closed category set.
func ValidCategory(c string) bool {
	return categories[c]
}

const (
	nameMinLen = 2
	nameMaxLen = 100
	tagsMax    = 5
)

// ProductFields carries the caller-supplied fields of a create or a
// full-field update. Ownership, id, version and timestamps are assigned by
// the store.
type ProductFields struct {
	Name        string   `json:"name" binding:"required"`
	PriceMinor  int64    `json:"price_minor" binding:"required"`
	StockCount  int      `json:"stock_count"`
	Category    string   `json:"category" binding:"required"`
	Description string   `json:"description"`
	Tags        []string `json:"tags" binding:"required"`
}

// Validate checks the catalog invariants. It returns a *ValidationError
// naming the first offending field.
func (f *ProductFields) Validate() error {
	name := strings.TrimSpace(f.Name)
	if len(name) < nameMinLen || len(name) > nameMaxLen {
		return &ValidationError{Field: "name", Reason: "must be between 2 and 100 characters"}
	}
	if f.PriceMinor <= 0 {
		return &ValidationError{Field: "price_minor", Reason: "must be greater than zero"}
	}
	if f.StockCount < 0 {
		return &ValidationError{Field: "stock_count", Reason: "must not be negative"}
	}
	if !ValidCategory(f.Category) {
		return &ValidationError{Field: "category", Reason: "unknown category"}
	}
	if len(f.Tags) == 0 {
		return &ValidationError{Field: "tags", Reason: "must not be empty"}
	}
	if len(f.Tags) > tagsMax {
		return &ValidationError{Field: "tags", Reason: "must not exceed 5 entries"}
	}
	for _, t := range f.Tags {
		if strings.TrimSpace(t) == "" {
			return &ValidationError{Field: "tags", Reason: "must not contain blank entries"}
		}
	}
	return nil
}

// Document projects the product into its search representation at the
// current version.
func (p *Product) Document() *SearchDocument {
	return &SearchDocument{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Name:          p.Name,
		PriceMinor:    p.PriceMinor,
		StockCount:    p.StockCount,
		Category:      p.Category,
		Description:   p.Description,
		Tags:          []string(p.Tags),
		SourceVersion: p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
