package port

import (
	"context"
	"errors"

	"github.com/rl1809/storefront-cart/internal/core/domain"
)

var ErrProductNotFound = errors.New("product not found")

type ProductCatalog interface {
	// GetProduct returns the product attributes, ErrProductNotFound for unknown ids
	GetProduct(ctx context.Context, productID int) (domain.Product, error)

	// GetStock returns the currently available quantity for a product
	GetStock(ctx context.Context, productID int) (domain.Stock, error)
}

// FreshStockReader is implemented by catalogs that cache stock and can read
// past the cache when a caller needs the current value.
type FreshStockReader interface {
	GetFreshStock(ctx context.Context, productID int) (domain.Stock, error)
}
