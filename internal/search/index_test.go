package search

import (
	"context"
	"testing"
	"time"

	"catalog-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id string, version int64, name string) *models.SearchDocument {
	return &models.SearchDocument{
		ID:            id,
		OwnerID:       "u1",
		Name:          name,
		PriceMinor:    1000,
		StockCount:    5,
		Category:      models.CategoryBooks,
		Description:   "",
		Tags:          []string{"tag"},
		SourceVersion: version,
		UpdatedAt:     time.Now().UTC(),
	}
}

func TestApplyIfNewerIsIdempotent(t *testing.T) {
	ix := New()
	ctx := context.Background()

	applied, err := ix.ApplyIfNewer(ctx, doc("p1", 1, "first"))
	require.NoError(t, err)
	assert.True(t, applied)

	// same version again: no-op
	applied, err = ix.ApplyIfNewer(ctx, doc("p1", 1, "replayed"))
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := ix.GetByID("p1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)
	assert.Equal(t, int64(1), got.SourceVersion)
}

func TestVersionIsMonotonicUnderReordering(t *testing.T) {
	ix := New()
	ctx := context.Background()

	// deliver out of order with duplicates
	for _, v := range []int64{2, 1, 3, 2, 3, 1} {
		_, err := ix.ApplyIfNewer(ctx, doc("p1", v, "v"))
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), ix.Version("p1"))
}

func TestTombstoneRemovesDocument(t *testing.T) {
	ix := New()
	ctx := context.Background()

	_, err := ix.ApplyIfNewer(ctx, doc("p1", 1, "gone soon"))
	require.NoError(t, err)

	applied, err := ix.Tombstone(ctx, "p1", 2)
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = ix.GetByID("p1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, ix.Len())
}

func TestTombstoneBlocksResurrection(t *testing.T) {
	ix := New()
	ctx := context.Background()

	applied, err := ix.Tombstone(ctx, "p1", 3)
	require.NoError(t, err)
	assert.True(t, applied)

	// a late update below the tombstone version must not revive the id
	applied, err = ix.ApplyIfNewer(ctx, doc("p1", 2, "zombie"))
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = ix.GetByID("p1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStaleTombstoneIsNoOp(t *testing.T) {
	ix := New()
	ctx := context.Background()

	_, err := ix.ApplyIfNewer(ctx, doc("p1", 5, "current"))
	require.NoError(t, err)

	applied, err := ix.Tombstone(ctx, "p1", 4)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := ix.GetByID("p1")
	require.NoError(t, err)
	assert.Equal(t, "current", got.Name)
}

func TestQueryByTextRelevanceAndTies(t *testing.T) {
	ix := New()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := doc("a", 1, "laptop stand")
	a.UpdatedAt = base
	b := doc("b", 1, "gaming laptop")
	b.Description = "fast laptop"
	b.UpdatedAt = base
	c := doc("c", 1, "laptop")
	c.UpdatedAt = base.Add(time.Hour)
	d := doc("d", 1, "desk lamp")
	d.UpdatedAt = base

	for _, dd := range []*models.SearchDocument{a, b, c, d} {
		_, err := ix.ApplyIfNewer(ctx, dd)
		require.NoError(t, err)
	}

	results, err := ix.QueryByText("laptop")
	require.NoError(t, err)
	require.Len(t, results, 3)

	// equal relevance: newest first, then id ascending
	assert.Equal(t, "c", results[0].ID)
	assert.Equal(t, "a", results[1].ID)
	assert.Equal(t, "b", results[2].ID)
}

func TestQueryByTextMatchesTags(t *testing.T) {
	ix := New()
	ctx := context.Background()

	d := doc("p1", 1, "plain name")
	d.Tags = []string{"vintage"}
	_, err := ix.ApplyIfNewer(ctx, d)
	require.NoError(t, err)

	results, err := ix.QueryByText("VINTAGE")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ID)
}

func TestQueryByTextRejectsEmptyQuery(t *testing.T) {
	ix := New()
	_, err := ix.QueryByText("   ")
	assert.True(t, models.IsValidation(err))
}

func TestQueryByCategory(t *testing.T) {
	ix := New()
	ctx := context.Background()

	a := doc("a", 1, "novel")
	a.Category = models.CategoryBooks
	b := doc("b", 1, "headphones")
	b.Category = models.CategoryElectronics

	for _, dd := range []*models.SearchDocument{a, b} {
		_, err := ix.ApplyIfNewer(ctx, dd)
		require.NoError(t, err)
	}

	results, err := ix.QueryByCategory(models.CategoryBooks)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)

	_, err = ix.QueryByCategory("NotACategory")
	assert.True(t, models.IsValidation(err))
}

func TestQueryByPriceRange(t *testing.T) {
	ix := New()
	ctx := context.Background()

	cheap := doc("cheap", 1, "pencil")
	cheap.PriceMinor = 50
	mid := doc("mid", 1, "notebook")
	mid.PriceMinor = 1200
	dear := doc("dear", 1, "fountain pen")
	dear.PriceMinor = 9000

	for _, dd := range []*models.SearchDocument{dear, cheap, mid} {
		_, err := ix.ApplyIfNewer(ctx, dd)
		require.NoError(t, err)
	}

	results, err := ix.QueryByPriceRange(40, 2000)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "cheap", results[0].ID)
	assert.Equal(t, "mid", results[1].ID)

	_, err = ix.QueryByPriceRange(2000, 40)
	assert.True(t, models.IsValidation(err))

	_, err = ix.QueryByPriceRange(-1, 40)
	assert.True(t, models.IsValidation(err))
}

func TestUpdateThenRangeQueryScenario(t *testing.T) {
	ix := New()
	ctx := context.Background()

	v1 := doc("p1", 1, "Clean Architecture")
	v1.PriceMinor = 1000
	_, err := ix.ApplyIfNewer(ctx, v1)
	require.NoError(t, err)

	v2 := doc("p1", 2, "Clean Architecture")
	v2.PriceMinor = 1200
	_, err = ix.ApplyIfNewer(ctx, v2)
	require.NoError(t, err)

	inRange, err := ix.QueryByPriceRange(1100, 1300)
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, "p1", inRange[0].ID)

	outOfRange, err := ix.QueryByPriceRange(1, 100)
	require.NoError(t, err)
	assert.Empty(t, outOfRange)
}

func TestDeleteThenTextQueryScenario(t *testing.T) {
	ix := New()
	ctx := context.Background()

	v2 := doc("p1", 2, "Clean Architecture")
	v2.PriceMinor = 1200
	_, err := ix.ApplyIfNewer(ctx, v2)
	require.NoError(t, err)

	_, err = ix.Tombstone(ctx, "p1", 3)
	require.NoError(t, err)

	results, err := ix.QueryByText("clean")
	require.NoError(t, err)
	assert.Empty(t, results)
}
