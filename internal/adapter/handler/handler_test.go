package handler

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront-cart/internal/adapter/notify"
	"github.com/rl1809/storefront-cart/internal/adapter/storage"
	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/core/service"
	"github.com/rl1809/storefront-cart/internal/port"
)

// Mock ProductCatalog with fixed stock per product
type mockCatalog struct {
	mu    sync.Mutex
	stock map[int]int
	down  bool
}

func (m *mockCatalog) GetProduct(ctx context.Context, productID int) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return domain.Product{}, context.DeadlineExceeded
	}
	if _, ok := m.stock[productID]; !ok {
		return domain.Product{}, port.ErrProductNotFound
	}
	return domain.Product{ID: productID, Title: "Sneaker", Price: 100, Image: "sneaker.jpg"}, nil
}

func (m *mockCatalog) GetStock(ctx context.Context, productID int) (domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return domain.Stock{}, context.DeadlineExceeded
	}
	amount, ok := m.stock[productID]
	if !ok {
		return domain.Stock{}, port.ErrProductNotFound
	}
	return domain.Stock{ID: productID, Amount: amount}, nil
}

func newTestService(t *testing.T, catalog *mockCatalog, feed *notify.Feed) *service.CartService {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	opts := service.Options{Logger: logger}
	if feed != nil {
		opts.Notifier = feed
	}
	return service.NewCartService(context.Background(), catalog, storage.NewMemoryKV(), opts)
}
