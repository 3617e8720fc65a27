package catalog

import (
	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMemoryCatalog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCatalog()
	c.AddProduct(models.Product{ProductID: "p1", Title: "Vintage camera", StartPrice: decimal.NewFromInt(100000), StockCount: 1})

	p, err := c.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, models.ProductAvailable, p.Status, "new products default to available")

	require.NoError(t, c.UpdateProductStatus(ctx, "p1", models.ProductInAuction))
	p, err = c.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, models.ProductInAuction, p.Status)

	_, err = c.GetProduct(ctx, "missing")
	require.True(t, errors.Is(err, biddingerrors.ErrProductNotFound))
	require.True(t, errors.Is(c.UpdateProductStatus(ctx, "missing", models.ProductInAuction), biddingerrors.ErrProductNotFound))
}
