package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront-cart/internal/adapter/catalog"
	"github.com/rl1809/storefront-cart/internal/adapter/storage"
	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	productID     = 1001
	storageKey    = "stress:cart"
	initialStock  = 20
	totalRequests = 50
)

// fixedProduct answers product lookups; stock comes from Redis.
type fixedProduct struct{}

func (fixedProduct) GetProduct(ctx context.Context, id int) (domain.Product, error) {
	return domain.Product{ID: id, Title: "stress-item", Price: 1}, nil
}

func (fixedProduct) GetStock(ctx context.Context, id int) (domain.Stock, error) {
	return domain.Stock{ID: id}, nil
}

func main() {
	ctx := context.Background()
	log := logrus.New()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Clear previous test data
	rdb.Del(ctx, storageKey, fmt.Sprintf("stock:%d", productID), fmt.Sprintf("product:%d", productID))

	// Initialize adapters and service
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	stockCache := catalog.NewCachedCatalog(fixedProduct{}, rdb, time.Minute, time.Minute, quiet)
	if err := stockCache.SetStock(ctx, productID, initialStock); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	cartService := service.NewCartService(ctx, stockCache, storage.NewRedisKV(rdb), service.Options{
		StorageKey: storageKey,
		Logger:     quiet,
	})

	var publications atomic.Int32
	cartService.Subscribe(func(domain.Cart) { publications.Add(1) })

	// Counters
	var successCount atomic.Int32
	var outOfStockCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := cartService.AddProduct(ctx, productID)
			switch service.Classify(err) {
			case service.FailureNone:
				successCount.Add(1)
			case service.FailureBusinessRule:
				outOfStockCount.Add(1)
			default:
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	outOfStock := outOfStockCount.Load()
	fail := failCount.Load()
	cart := cartService.Cart()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", outOfStock)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Publications:     %d\n", publications.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if err := cart.Validate(); err != nil {
		fmt.Printf("FAIL: cart invariants violated: %v\n", err)
	} else {
		fmt.Println("PASS: no duplicate line items")
	}

	if success == initialStock && outOfStock == totalRequests-initialStock && fail == 0 {
		fmt.Printf("PASS: exactly %d adds succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success/%d out of stock, got %d/%d (%d failed)\n",
			initialStock, totalRequests-initialStock, success, outOfStock, fail)
	}

	// Verify the persisted cart
	reloaded := service.NewCartService(ctx, stockCache, storage.NewRedisKV(rdb), service.Options{
		StorageKey: storageKey,
		Logger:     quiet,
	}).Cart()

	if item, _, ok := reloaded.Find(productID); ok && item.Amount == initialStock {
		fmt.Printf("PASS: persisted amount %d\n", item.Amount)
	} else {
		fmt.Printf("FAIL: expected persisted amount %d, got %+v\n", initialStock, reloaded)
	}
}
