// Package catalog is the auction core's view of product management. The
// catalog itself lives elsewhere; the core only looks products up and moves
// their auction status.
package catalog

import (
	"auction-house/internal/biddingerrors"
	"auction-house/internal/models"
	"context"
	"fmt"
	"sync"
)

// Catalog is the product lookup and status mutation surface the core consumes
type Catalog interface {
	GetProduct(ctx context.Context, productID string) (models.Product, error)
	UpdateProductStatus(ctx context.Context, productID string, status models.ProductStatus) error
}

// MemoryCatalog is a concurrency-safe in-memory Catalog
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

// NewMemoryCatalog creates an empty catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{products: make(map[string]models.Product)}
}

// AddProduct registers or replaces a product
func (c *MemoryCatalog) AddProduct(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.Status == "" {
		p.Status = models.ProductAvailable
	}
	c.products[p.ProductID] = p
}

// GetProduct returns the product with the given id
func (c *MemoryCatalog) GetProduct(ctx context.Context, productID string) (models.Product, error) {
	if err := ctx.Err(); err != nil {
		return models.Product{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[productID]
	if !ok {
		return models.Product{}, fmt.Errorf("catalog: product %s: %w", productID, biddingerrors.ErrProductNotFound)
	}
	return p, nil
}

// UpdateProductStatus records the product's auction status
func (c *MemoryCatalog) UpdateProductStatus(ctx context.Context, productID string, status models.ProductStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[productID]
	if !ok {
		return fmt.Errorf("catalog: product %s: %w", productID, biddingerrors.ErrProductNotFound)
	}
	p.Status = status
	c.products[productID] = p
	return nil
}
