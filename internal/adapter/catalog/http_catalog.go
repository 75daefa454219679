package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/port"
)

const maxResponseBytes = 1 << 20

// HTTPCatalog reads products and stock from the storefront REST API
// (GET /products/{id}, GET /stock/{id}).
type HTTPCatalog struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	sf      singleflight.Group
	log     *logrus.Logger
}

func NewHTTPCatalog(baseURL string, timeout time.Duration, log *logrus.Logger) *HTTPCatalog {
	st := gobreaker.Settings{
		Name:        "CatalogCircuitBreaker",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		// Unknown products are an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, port.ErrProductNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("%s state changed from %s to %s", name, from, to)
		},
	}

	return &HTTPCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cb:      gobreaker.NewCircuitBreaker(st),
		log:     log,
	}
}

func (c *HTTPCatalog) GetProduct(ctx context.Context, productID int) (domain.Product, error) {
	var product domain.Product
	if err := c.get(ctx, fmt.Sprintf("/products/%d", productID), &product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (c *HTTPCatalog) GetStock(ctx context.Context, productID int) (domain.Stock, error) {
	var stock domain.Stock
	if err := c.get(ctx, fmt.Sprintf("/stock/%d", productID), &stock); err != nil {
		return domain.Stock{}, err
	}
	return stock, nil
}

// get collapses concurrent identical requests into one round trip.
func (c *HTTPCatalog) get(ctx context.Context, path string, out any) error {
	v, err, shared := c.sf.Do(path, func() (any, error) {
		return c.cb.Execute(func() (any, error) {
			return c.fetch(ctx, path)
		})
	})
	if err != nil {
		return err
	}
	if shared {
		c.log.WithField("path", path).Debug("catalog response shared")
	}

	if err := json.Unmarshal(v.([]byte), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPCatalog) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", path, port.ErrProductNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}
