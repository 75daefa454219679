package catalog

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/port"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

// Mock ProductCatalog counting lookups
type countingCatalog struct {
	mu           sync.Mutex
	stock        int
	productCalls int
	stockCalls   int
}

func (c *countingCatalog) GetProduct(ctx context.Context, productID int) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.productCalls++
	if productID == 404 {
		return domain.Product{}, port.ErrProductNotFound
	}
	return domain.Product{ID: productID, Title: "cached", Price: 2.5}, nil
}

func (c *countingCatalog) GetStock(ctx context.Context, productID int) (domain.Stock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stockCalls++
	return domain.Stock{ID: productID, Amount: c.stock}, nil
}

func TestCachedCatalog_GetStock(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	client.Del(ctx, "stock:9001")
	defer client.Del(ctx, "stock:9001")

	next := &countingCatalog{stock: 7}
	c := NewCachedCatalog(next, client, time.Minute, time.Minute, quietLogger())

	for i := 0; i < 3; i++ {
		s, err := c.GetStock(ctx, 9001)
		if err != nil {
			t.Fatalf("GetStock failed: %v", err)
		}
		if s.Amount != 7 {
			t.Errorf("expected stock 7, got %d", s.Amount)
		}
	}

	if next.stockCalls != 1 {
		t.Errorf("expected 1 upstream lookup, got %d", next.stockCalls)
	}
}

func TestCachedCatalog_SetStockOverrides(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	defer client.Del(ctx, "stock:9002")

	next := &countingCatalog{stock: 1}
	c := NewCachedCatalog(next, client, time.Minute, time.Minute, quietLogger())

	if err := c.SetStock(ctx, 9002, 42); err != nil {
		t.Fatalf("SetStock failed: %v", err)
	}

	s, err := c.GetStock(ctx, 9002)
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	if s.Amount != 42 {
		t.Errorf("expected stock 42, got %d", s.Amount)
	}
	if next.stockCalls != 0 {
		t.Errorf("expected no upstream lookup, got %d", next.stockCalls)
	}

	ttl, _ := client.TTL(ctx, "stock:9002").Result()
	if ttl != -1 {
		t.Errorf("expected no expiry, got %v", ttl)
	}
}

func TestCachedCatalog_GetProduct(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	client.Del(ctx, "product:9003")
	defer client.Del(ctx, "product:9003")

	next := &countingCatalog{}
	c := NewCachedCatalog(next, client, time.Minute, time.Minute, quietLogger())

	for i := 0; i < 2; i++ {
		p, err := c.GetProduct(ctx, 9003)
		if err != nil {
			t.Fatalf("GetProduct failed: %v", err)
		}
		if p.ID != 9003 || p.Title != "cached" {
			t.Errorf("unexpected product: %+v", p)
		}
	}

	if next.productCalls != 1 {
		t.Errorf("expected 1 upstream lookup, got %d", next.productCalls)
	}
}

func TestCachedCatalog_NotFoundIsNotCached(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	client.Del(ctx, "product:404")

	next := &countingCatalog{}
	c := NewCachedCatalog(next, client, time.Minute, time.Minute, quietLogger())

	for i := 0; i < 2; i++ {
		if _, err := c.GetProduct(ctx, 404); err != port.ErrProductNotFound {
			t.Errorf("expected ErrProductNotFound, got: %v", err)
		}
	}
	if next.productCalls != 2 {
		t.Errorf("expected 2 upstream lookups, got %d", next.productCalls)
	}
}

func TestCachedCatalog_RedisDownFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	next := &countingCatalog{stock: 4}
	c := NewCachedCatalog(next, client, time.Minute, time.Minute, quietLogger())

	s, err := c.GetStock(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected fallback to upstream, got: %v", err)
	}
	if s.Amount != 4 {
		t.Errorf("expected stock 4, got %d", s.Amount)
	}
}

func TestCachedCatalog_GetFreshStockSkipsCache(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	client.Del(ctx, "stock:9004")
	defer client.Del(ctx, "stock:9004")

	next := &countingCatalog{stock: 2}
	c := NewCachedCatalog(next, client, time.Minute, time.Minute, quietLogger())

	if _, err := c.GetStock(ctx, 9004); err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}

	next.mu.Lock()
	next.stock = 6
	next.mu.Unlock()

	s, err := c.GetStock(ctx, 9004)
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	if s.Amount != 2 {
		t.Errorf("expected cached stock 2, got %d", s.Amount)
	}

	s, err = c.GetFreshStock(ctx, 9004)
	if err != nil {
		t.Fatalf("GetFreshStock failed: %v", err)
	}
	if s.Amount != 6 {
		t.Errorf("expected fresh stock 6, got %d", s.Amount)
	}

	// The fresh value replaces the cached one.
	s, err = c.GetStock(ctx, 9004)
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	if s.Amount != 6 {
		t.Errorf("expected refreshed stock 6, got %d", s.Amount)
	}
	if next.stockCalls != 2 {
		t.Errorf("expected 2 upstream lookups, got %d", next.stockCalls)
	}
}

func TestCachedCatalog_GetFreshStockKeepsPinnedStock(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	defer client.Del(ctx, "stock:9005")

	next := &countingCatalog{stock: 1}
	c := NewCachedCatalog(next, client, time.Minute, time.Minute, quietLogger())

	if err := c.SetStock(ctx, 9005, 30); err != nil {
		t.Fatalf("SetStock failed: %v", err)
	}

	s, err := c.GetFreshStock(ctx, 9005)
	if err != nil {
		t.Fatalf("GetFreshStock failed: %v", err)
	}
	if s.Amount != 30 {
		t.Errorf("expected pinned stock 30, got %d", s.Amount)
	}
	if next.stockCalls != 0 {
		t.Errorf("expected no upstream lookup, got %d", next.stockCalls)
	}
}

func TestCachedCatalog_GetFreshStockRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	next := &countingCatalog{stock: 9}
	c := NewCachedCatalog(next, client, time.Minute, time.Minute, quietLogger())

	s, err := c.GetFreshStock(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected fallback to upstream, got: %v", err)
	}
	if s.Amount != 9 {
		t.Errorf("expected stock 9, got %d", s.Amount)
	}
}
