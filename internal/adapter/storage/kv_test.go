package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/core/service"
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

func openSQLite(t *testing.T) *SQLiteKV {
	kv, err := OpenSQLiteKV(context.Background(), filepath.Join(t.TempDir(), "cart.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteKV failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

// testKV runs the behaviour every PersistentKV must share.
func testKV(t *testing.T, kv port.PersistentKV, key string) {
	ctx := context.Background()

	_, ok, err := kv.Read(ctx, key)
	if err != nil {
		t.Fatalf("read absent key: %v", err)
	}
	if ok {
		t.Fatal("expected absent key")
	}

	if err := kv.Write(ctx, key, `[{"id":1,"amount":1}]`); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := kv.Write(ctx, key, `[{"id":1,"amount":2}]`); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	val, ok, err := kv.Read(ctx, key)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !ok || val != `[{"id":1,"amount":2}]` {
		t.Errorf("expected overwritten value, got %q (ok=%v)", val, ok)
	}
}

// testCartRoundTrip checks that a cart written by one service is restored by the next.
func testCartRoundTrip(t *testing.T, kv port.PersistentKV, key string) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	catalog := staticCatalog{1: 5, 2: 5}
	opts := service.Options{StorageKey: key, Logger: logger}

	first := service.NewCartService(ctx, catalog, kv, opts)
	for _, id := range []int{2, 1, 2} {
		if _, err := first.AddProduct(ctx, id); err != nil {
			t.Fatalf("add %d failed: %v", id, err)
		}
	}

	second := service.NewCartService(ctx, catalog, kv, opts)
	got := second.Cart()
	want := first.Cart()

	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

type staticCatalog map[int]int

func (c staticCatalog) GetProduct(ctx context.Context, productID int) (domain.Product, error) {
	if _, ok := c[productID]; !ok {
		return domain.Product{}, port.ErrProductNotFound
	}
	return domain.Product{ID: productID, Title: "item", Price: 1.5, Image: "item.png"}, nil
}

func (c staticCatalog) GetStock(ctx context.Context, productID int) (domain.Stock, error) {
	amount, ok := c[productID]
	if !ok {
		return domain.Stock{}, port.ErrProductNotFound
	}
	return domain.Stock{ID: productID, Amount: amount}, nil
}

func TestMemoryKV(t *testing.T) {
	testKV(t, NewMemoryKV(), "memory-test")
}

func TestMemoryKV_CartRoundTrip(t *testing.T) {
	testCartRoundTrip(t, NewMemoryKV(), "memory-cart")
}

func TestSQLiteKV(t *testing.T) {
	testKV(t, openSQLite(t), "sqlite-test")
}

func TestSQLiteKV_CartRoundTrip(t *testing.T) {
	testCartRoundTrip(t, openSQLite(t), service.DefaultStorageKey)
}

func TestSQLiteKV_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cart.db")

	kv, err := OpenSQLiteKV(ctx, path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := kv.Write(ctx, "k", "v"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	kv.Close()

	reopened, err := OpenSQLiteKV(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	val, ok, err := reopened.Read(ctx, "k")
	if err != nil || !ok || val != "v" {
		t.Errorf("expected v after reopen, got %q ok=%v err=%v", val, ok, err)
	}
}

func TestOpenSQLiteKV_RequiresPath(t *testing.T) {
	if _, err := OpenSQLiteKV(context.Background(), "  "); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestRedisKV(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	client.Del(ctx, "test:kv", "test:cart")

	testKV(t, NewRedisKV(client), "test:kv")
	testCartRoundTrip(t, NewRedisKV(client), "test:cart")

	client.Del(ctx, "test:kv", "test:cart")
}
