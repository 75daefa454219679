package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/port"
)

// MySQLCatalog reads the products and inventory tables directly.
type MySQLCatalog struct {
	db *sql.DB
}

func NewMySQLCatalog(db *sql.DB) *MySQLCatalog {
	return &MySQLCatalog{db: db}
}

func (m *MySQLCatalog) GetProduct(ctx context.Context, productID int) (domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, title, price, image
		FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Title, &p.Price, &p.Image)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, port.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (m *MySQLCatalog) GetStock(ctx context.Context, productID int) (domain.Stock, error) {
	var s domain.Stock
	err := m.db.QueryRowContext(ctx, `
		SELECT product_id, stock
		FROM inventory WHERE product_id = ?`, productID,
	).Scan(&s.ID, &s.Amount)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Stock{}, port.ErrProductNotFound
	}
	if err != nil {
		return domain.Stock{}, fmt.Errorf("query inventory: %w", err)
	}
	return s, nil
}
