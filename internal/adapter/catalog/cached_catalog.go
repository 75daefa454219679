package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/port"
)

const (
	stockKeyPrefix   = "stock:"
	productKeyPrefix = "product:"
)

// CachedCatalog serves products and stock from Redis and falls back to next
// on a miss. Redis errors degrade to next instead of failing the lookup.
type CachedCatalog struct {
	next       port.ProductCatalog
	client     *redis.Client
	productTTL time.Duration
	stockTTL   time.Duration
	log        *logrus.Logger
}

func NewCachedCatalog(next port.ProductCatalog, client *redis.Client, productTTL, stockTTL time.Duration, log *logrus.Logger) *CachedCatalog {
	return &CachedCatalog{
		next:       next,
		client:     client,
		productTTL: productTTL,
		stockTTL:   stockTTL,
		log:        log,
	}
}

func (c *CachedCatalog) GetProduct(ctx context.Context, productID int) (domain.Product, error) {
	key := productKeyPrefix + strconv.Itoa(productID)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
		c.log.WithField("key", key).Warn("dropping undecodable cached product")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).WithField("key", key).Warn("product cache read failed")
	}

	p, err := c.next.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, key, data, c.productTTL).Err(); err != nil {
			c.log.WithError(err).WithField("key", key).Warn("product cache write failed")
		}
	}
	return p, nil
}

func (c *CachedCatalog) GetStock(ctx context.Context, productID int) (domain.Stock, error) {
	key := stockKeyPrefix + strconv.Itoa(productID)

	amount, err := c.client.Get(ctx, key).Int()
	switch {
	case err == nil:
		return domain.Stock{ID: productID, Amount: amount}, nil
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).WithField("key", key).Warn("stock cache read failed")
	}

	return c.refreshStock(ctx, key, productID)
}

// GetFreshStock asks next for the stock and refreshes the cache with it.
// Stock pinned with SetStock has no upstream value and is returned as is.
func (c *CachedCatalog) GetFreshStock(ctx context.Context, productID int) (domain.Stock, error) {
	key := stockKeyPrefix + strconv.Itoa(productID)

	ttl, err := c.client.TTL(ctx, key).Result()
	switch {
	case err != nil:
		c.log.WithError(err).WithField("key", key).Warn("stock cache ttl read failed")
	case ttl == -1:
		amount, err := c.client.Get(ctx, key).Int()
		if err == nil {
			return domain.Stock{ID: productID, Amount: amount}, nil
		}
		c.log.WithError(err).WithField("key", key).Warn("pinned stock read failed")
	}

	return c.refreshStock(ctx, key, productID)
}

func (c *CachedCatalog) refreshStock(ctx context.Context, key string, productID int) (domain.Stock, error) {
	s, err := c.next.GetStock(ctx, productID)
	if err != nil {
		return domain.Stock{}, err
	}

	if err := c.client.Set(ctx, key, s.Amount, c.stockTTL).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("stock cache write failed")
	}
	return s, nil
}

// SetStock pins the stock for a product without expiry, making Redis the
// source of truth for it until the key is deleted.
func (c *CachedCatalog) SetStock(ctx context.Context, productID, amount int) error {
	return c.client.Set(ctx, stockKeyPrefix+strconv.Itoa(productID), amount, 0).Err()
}
