package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/service"
	"catalog-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Catalog is the write-side surface the gateway routes mutations to.
type Catalog interface {
	Create(ctx context.Context, principal *models.Principal, fields *models.ProductFields) (*models.Product, error)
	Update(ctx context.Context, principal *models.Principal, id string, fields *models.ProductFields) (*models.Product, error)
	Delete(ctx context.Context, principal *models.Principal, id string) error
	Get(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, page, size int) ([]models.Product, int64, error)
}

// Searcher is the read-side surface the gateway routes queries to.
type Searcher interface {
	GetByID(id string) (*models.SearchDocument, error)
	QueryByText(q string) ([]models.SearchDocument, error)
	QueryByCategory(category string) ([]models.SearchDocument, error)
	QueryByPriceRange(minPrice, maxPrice int64) ([]models.SearchDocument, error)
}

// DeadLetterLister exposes dead-lettered change events for manual
// inspection.
type DeadLetterLister interface {
	ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error)
}

// Handler is the query gateway: reads are public, writes require a valid
// session. It performs no business validation; every domain invariant
// lives behind the Catalog interface.
type Handler struct {
	catalog     Catalog
	index       Searcher
	sessions    service.SessionValidator
	deadLetters DeadLetterLister
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog Catalog, index Searcher, sessions service.SessionValidator, deadLetters DeadLetterLister) *Handler {
	return &Handler{
		catalog:     catalog,
		index:       index,
		sessions:    sessions,
		deadLetters: deadLetters,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/search", h.search)
		v1.GET("/search/:id", h.getDocument)

		authed := v1.Group("")
		authed.Use(h.requireSession())
		{
			authed.POST("/products", h.createProduct)
			authed.PUT("/products/:id", h.updateProduct)
			authed.DELETE("/products/:id", h.deleteProduct)
			authed.GET("/dead-letters", h.listDeadLetters)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

const principalKey = "principal"

// requireSession resolves the session cookie to a Principal before any
// write reaches the catalog. Ownership is checked again inside the
// catalog; this middleware only answers "is someone logged in".
func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := h.sessions.Validate(c.Request.Context(), c.GetHeader("Cookie"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func currentPrincipal(c *gin.Context) *models.Principal {
	return c.MustGet(principalKey).(*models.Principal)
}

// createProduct handles product creation
func (h *Handler) createProduct(c *gin.Context) {
	var fields models.ProductFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	product, err := h.catalog.Create(c.Request.Context(), currentPrincipal(c), &fields)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// getProduct handles get product by id (authoritative catalog read)
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// listProducts handles paginated catalog listing
func (h *Handler) listProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	products, total, err := h.catalog.List(c.Request.Context(), page, size)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"page":     page,
		"size":     size,
		"total":    total,
	})
}

// updateProduct handles full-field product replacement (owner only)
func (h *Handler) updateProduct(c *gin.Context) {
	var fields models.ProductFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	product, err := h.catalog.Update(c.Request.Context(), currentPrincipal(c), c.Param("id"), &fields)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// deleteProduct handles logical product deletion (owner only)
func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), currentPrincipal(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getDocument handles search index reads by id
func (h *Handler) getDocument(c *gin.Context) {
	doc, err := h.index.GetByID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// listDeadLetters exposes events that exhausted the apply retry budget.
func (h *Handler) listDeadLetters(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	letters, err := h.deadLetters.ListDeadLetters(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dead_letters": letters, "count": len(letters)})
}

// search dispatches on which query parameter is present: q, category, or
// minPrice/maxPrice.
func (h *Handler) search(c *gin.Context) {
	var (
		docs []models.SearchDocument
		err  error
		kind string
	)

	switch {
	case c.Query("q") != "":
		kind = "text"
		docs, err = h.index.QueryByText(c.Query("q"))

	case c.Query("category") != "":
		kind = "category"
		docs, err = h.index.QueryByCategory(c.Query("category"))

	case c.Query("minPrice") != "" || c.Query("maxPrice") != "":
		kind = "price_range"
		var minPrice, maxPrice int64
		minPrice, err = strconv.ParseInt(c.DefaultQuery("minPrice", "0"), 10, 64)
		if err != nil {
			writeError(c, &models.ValidationError{Field: "minPrice", Reason: "must be an integer"})
			return
		}
		maxPrice, err = strconv.ParseInt(c.DefaultQuery("maxPrice", strconv.FormatInt(int64(1)<<62, 10)), 10, 64)
		if err != nil {
			writeError(c, &models.ValidationError{Field: "maxPrice", Reason: "must be an integer"})
			return
		}
		docs, err = h.index.QueryByPriceRange(minPrice, maxPrice)

	default:
		writeError(c, &models.ValidationError{Field: "query", Reason: "one of q, category, or minPrice/maxPrice is required"})
		return
	}

	if err != nil {
		writeError(c, err)
		return
	}

	util.SearchQueriesTotal.WithLabelValues(kind).Inc()
	c.JSON(http.StatusOK, gin.H{"results": docs, "count": len(docs)})
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, models.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not the owner of this product"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
