package service

import (
	"context"
	"errors"
	"fmt"

	"catalog-service/internal/models"
	"catalog-service/internal/util"

	"go.uber.org/zap"
)

// ProductStore is the authoritative catalog storage. *store.Store
// implements it against Postgres; tests use an in-memory fake.
type ProductStore interface {
	CreateProduct(ctx context.Context, ownerID string, fields *models.ProductFields) (*models.Product, error)
	UpdateProduct(ctx context.Context, id, ownerID string, fields *models.ProductFields) (*models.Product, error)
	DeleteProduct(ctx context.Context, id, ownerID string) (*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error)
	CountProducts(ctx context.Context) (int64, error)
}

// ProductCache is the read-through cache in front of GetProduct.
// SetProduct must be version-guarded: it never replaces a cached entry
// whose version is >= the given product's, so a slow read-through fill
// cannot overwrite the state a concurrent mutation just cached.
type ProductCache interface {
	GetProduct(ctx context.Context, id string) (*models.Product, bool, error)
	SetProduct(ctx context.Context, product *models.Product) error
	InvalidateProduct(ctx context.Context, id string) error
}

// CatalogService owns product CRUD and every domain invariant, so no entry
// point can bypass validation by skipping the HTTP layer.
type CatalogService struct {
	store  ProductStore
	cache  ProductCache
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store ProductStore, cache ProductCache) *CatalogService {
	return &CatalogService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// Create validates and persists a new product owned by the principal.
// Retried creates without any client-side key produce duplicate products;
// that is accepted behavior, not deduplicated here.
func (s *CatalogService) Create(ctx context.Context, principal *models.Principal, fields *models.ProductFields) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	defer span.End()

	if err := fields.Validate(); err != nil {
		util.ProductWritesFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	product, err := s.store.CreateProduct(ctx, principal.ID, fields)
	if err != nil {
		util.ProductWritesFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("owner_id", product.OwnerID))
	return product, nil
}

// Update replaces all caller-supplied fields of a product the principal
// owns and bumps the version.
func (s *CatalogService) Update(ctx context.Context, principal *models.Principal, id string, fields *models.ProductFields) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	defer span.End()

	if err := fields.Validate(); err != nil {
		util.ProductWritesFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	product, err := s.store.UpdateProduct(ctx, id, principal.ID, fields)
	if err != nil {
		util.ProductWritesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	s.refresh(ctx, product)

	util.ProductsUpdatedTotal.Inc()
	s.logger.Info("Product updated",
		zap.String("product_id", product.ID),
		zap.Int64("version", product.Version))
	return product, nil
}

// Delete logically deletes a product the principal owns. The state is
// terminal: subsequent gets and updates see ErrNotFound.
func (s *CatalogService) Delete(ctx context.Context, principal *models.Principal, id string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.Delete")
	defer span.End()

	deleted, err := s.store.DeleteProduct(ctx, id, principal.ID)
	if err != nil {
		util.ProductWritesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return err
	}

	// the inactive record is cached as a tombstone at the bumped version,
	// so a racing read-through fill of an older version cannot resurrect it
	s.refresh(ctx, deleted)

	util.ProductsDeletedTotal.Inc()
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// Get returns an active product, reading through the cache.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Get")
	defer span.End()

	if cached, ok, err := s.cache.GetProduct(ctx, id); err != nil {
		s.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
	} else if ok {
		util.ProductCacheHitsTotal.Inc()
		if !cached.Active {
			return nil, models.ErrNotFound
		}
		return cached, nil
	}
	util.ProductCacheMissesTotal.Inc()

	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetProduct(ctx, product); err != nil {
		s.logger.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
	}
	return product, nil
}

// List returns a page of active products, newest first.
func (s *CatalogService) List(ctx context.Context, page, size int) ([]models.Product, int64, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.List")
	defer span.End()

	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	products, err := s.store.ListProducts(ctx, size, page*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	total, err := s.store.CountProducts(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}
	return products, total, nil
}

// refresh writes the post-mutation state through to the cache. The
// version-guarded set wins over any concurrent fill of an older version.
// If the write fails the entry is evicted instead, so the cache never
// serves state older than the mutation.
func (s *CatalogService) refresh(ctx context.Context, product *models.Product) {
	if err := s.cache.SetProduct(ctx, product); err != nil {
		s.logger.Warn("Product cache refresh failed", zap.String("product_id", product.ID), zap.Error(err))
		if err := s.cache.InvalidateProduct(ctx, product.ID); err != nil {
			s.logger.Warn("Product cache eviction failed", zap.String("product_id", product.ID), zap.Error(err))
		}
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrForbidden):
		return "forbidden"
	default:
		return "db_error"
	}
}
