package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/port"
)

const DefaultStorageKey = "@storefront:cart"

var tracer = otel.Tracer("github.com/rl1809/storefront-cart/internal/core/service")

type UpdateProductAmount struct {
	ProductID int
	Amount    int
}

type Options struct {
	StorageKey string
	Notifier   port.Notifier
	Logger     *logrus.Logger
}

type subscriber struct {
	id int
	fn func(domain.Cart)
}

// CartService owns the cart and mirrors every change to the persistent store
// before publishing it to subscribers.
//
// Operations snapshot the cart, query the catalog without holding the lock and
// commit with a version check. A commit against a stale snapshot restarts the
// operation, so overlapping calls never overwrite each other. Every restart
// means another operation committed, so restarts stop only on success or when
// the caller's context ends.
type CartService struct {
	catalog  port.ProductCatalog
	kv       port.PersistentKV
	notifier port.Notifier
	log      *logrus.Logger
	key      string

	mu      sync.Mutex
	cart    domain.Cart
	version uint64
	subs    []subscriber
	nextSub int

	// publishMu keeps subscriber callbacks in commit order.
	publishMu sync.Mutex
}

func NewCartService(ctx context.Context, catalog port.ProductCatalog, kv port.PersistentKV, opts Options) *CartService {
	if opts.StorageKey == "" {
		opts.StorageKey = DefaultStorageKey
	}
	if opts.Notifier == nil {
		opts.Notifier = discardNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	s := &CartService{
		catalog:  catalog,
		kv:       kv,
		notifier: opts.Notifier,
		log:      opts.Logger,
		key:      opts.StorageKey,
	}
	s.cart = s.load(ctx)
	return s
}

// Cart returns a copy of the current cart.
func (s *CartService) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Subscribe registers fn to receive the cart after every successful mutation.
// fn runs synchronously on the mutating goroutine and must not mutate the cart.
func (s *CartService) Subscribe(fn func(domain.Cart)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *CartService) AddProduct(ctx context.Context, productID int) (domain.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.AddProduct",
		trace.WithAttributes(attribute.Int("product.id", productID)))
	defer span.End()

	var added bool
	cart, err := s.mutate(ctx, func(snap domain.Cart) (domain.Cart, bool, error) {
		added = false

		item, idx, ok := snap.Find(productID)
		if !ok {
			product, stock, err := s.lookup(ctx, productID)
			if err != nil {
				return nil, false, err
			}
			if stock.Amount <= 0 {
				return nil, false, nil
			}
			product.ID = productID
			added = true
			return append(snap, domain.LineItem{Product: product, Amount: 1}), true, nil
		}

		stock, err := s.catalog.GetStock(ctx, productID)
		if err != nil {
			return nil, false, fmt.Errorf("get stock: %w", err)
		}
		if !stock.Exceeds(item.Amount) {
			return nil, false, ErrInsufficientStock
		}
		snap[idx].Amount++
		return snap, true, nil
	})

	log := s.log.WithField("product_id", productID)
	switch {
	case err == nil:
		if added {
			s.notify(ctx, domain.NoticeAdded, productID)
		}
		log.WithField("added", added).Debug("add product committed")
	case errors.Is(err, ErrInsufficientStock):
		log.Info("add product rejected: out of stock")
		s.notify(ctx, domain.NoticeOutOfStock, productID)
	default:
		err = fmt.Errorf("%w: %w", ErrAddFailed, err)
		log.WithError(err).Warn("add product failed")
		s.notify(ctx, domain.NoticeAdditionFailed, productID)
	}
	endSpan(span, err)
	return cart, err
}

func (s *CartService) RemoveProduct(ctx context.Context, productID int) (domain.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.RemoveProduct",
		trace.WithAttributes(attribute.Int("product.id", productID)))
	defer span.End()

	cart, err := s.mutate(ctx, func(snap domain.Cart) (domain.Cart, bool, error) {
		_, idx, ok := snap.Find(productID)
		if !ok {
			return nil, false, ErrProductNotInCart
		}
		next := make(domain.Cart, 0, len(snap)-1)
		next = append(next, snap[:idx]...)
		next = append(next, snap[idx+1:]...)
		return next, true, nil
	})

	log := s.log.WithField("product_id", productID)
	switch {
	case err == nil:
		log.Debug("remove product committed")
	case errors.Is(err, ErrProductNotInCart):
		log.Info("remove product rejected: not in cart")
		s.notify(ctx, domain.NoticeRemovalFailed, productID)
	default:
		err = fmt.Errorf("%w: %w", ErrRemoveFailed, err)
		log.WithError(err).Warn("remove product failed")
		s.notify(ctx, domain.NoticeRemovalFailed, productID)
	}
	endSpan(span, err)
	return cart, err
}

// UpdateProductAmount sets the amount of a product already in the cart.
// Amounts <= 0 are ignored; removing goes through RemoveProduct.
func (s *CartService) UpdateProductAmount(ctx context.Context, req UpdateProductAmount) (domain.Cart, error) {
	if req.Amount <= 0 {
		return s.Cart(), nil
	}

	ctx, span := tracer.Start(ctx, "CartService.UpdateProductAmount",
		trace.WithAttributes(
			attribute.Int("product.id", req.ProductID),
			attribute.Int("product.amount", req.Amount),
		))
	defer span.End()

	log := s.log.WithFields(logrus.Fields{"product_id": req.ProductID, "amount": req.Amount})

	cart, err := s.mutate(ctx, func(snap domain.Cart) (domain.Cart, bool, error) {
		if !snap.Contains(req.ProductID) {
			return nil, false, ErrProductNotInCart
		}

		stock, err := s.catalog.GetStock(ctx, req.ProductID)
		if err != nil {
			return nil, false, fmt.Errorf("get stock: %w", err)
		}
		if !stock.Covers(req.Amount) {
			// Re-read once; stock may have been replenished since the first read.
			stock, err = s.recheckStock(ctx, req.ProductID)
			if err != nil {
				return nil, false, fmt.Errorf("recheck stock: %w", err)
			}
			if !stock.Exceeds(req.Amount) {
				return nil, false, ErrInsufficientStock
			}
			log.WithField("stock", stock.Amount).Debug("stock covered amount on recheck")
		}

		next := make(domain.Cart, len(snap))
		for i, item := range snap {
			if item.ID == req.ProductID {
				item.Amount = req.Amount
			}
			next[i] = item
		}
		return next, true, nil
	})

	switch {
	case err == nil:
		log.Debug("update amount committed")
	case errors.Is(err, ErrInsufficientStock):
		log.Info("update amount rejected: out of stock")
		s.notify(ctx, domain.NoticeOutOfStock, req.ProductID)
	case errors.Is(err, ErrProductNotInCart):
		log.Info("update amount rejected: not in cart")
		s.notify(ctx, domain.NoticeQuantityUpdateFailed, req.ProductID)
	default:
		err = fmt.Errorf("%w: %w", ErrUpdateFailed, err)
		log.WithError(err).Warn("update amount failed")
		s.notify(ctx, domain.NoticeQuantityUpdateFailed, req.ProductID)
	}
	endSpan(span, err)
	return cart, err
}

// mutate runs op against a private snapshot and commits its result. op reports
// whether there is anything to commit; returning false leaves the cart as is.
func (s *CartService) mutate(ctx context.Context, op func(snap domain.Cart) (domain.Cart, bool, error)) (domain.Cart, error) {
	for attempt := 0; ; attempt++ {
		snap, version := s.snapshot()

		next, changed, err := op(snap.Clone())
		if err != nil {
			return snap, err
		}
		if !changed {
			return snap, nil
		}

		err = s.commit(ctx, version, next)
		if err == nil {
			return next.Clone(), nil
		}
		if !errors.Is(err, errStaleSnapshot) {
			return s.Cart(), err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return s.Cart(), fmt.Errorf("%w: %w", err, ctxErr)
		}
		s.log.WithField("attempt", attempt+1).Debug("cart changed during lookup, retrying")
	}
}

func (s *CartService) snapshot() (domain.Cart, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone(), s.version
}

func (s *CartService) commit(ctx context.Context, version uint64, next domain.Cart) error {
	if next == nil {
		next = domain.Cart{}
	}

	s.mu.Lock()
	if s.version != version {
		s.mu.Unlock()
		return errStaleSnapshot
	}

	data, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Write(ctx, s.key, string(data)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist cart: %w", err)
	}

	s.cart = next
	s.version++
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)

	s.publishMu.Lock()
	s.mu.Unlock()
	defer s.publishMu.Unlock()

	for _, sub := range subs {
		sub.fn(next.Clone())
	}
	return nil
}

func (s *CartService) lookup(ctx context.Context, productID int) (domain.Product, domain.Stock, error) {
	var (
		product domain.Product
		stock   domain.Stock
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.catalog.GetProduct(gctx, productID)
		if err != nil {
			return fmt.Errorf("get product: %w", err)
		}
		product = p
		return nil
	})
	g.Go(func() error {
		st, err := s.catalog.GetStock(gctx, productID)
		if err != nil {
			return fmt.Errorf("get stock: %w", err)
		}
		stock = st
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.Product{}, domain.Stock{}, err
	}
	return product, stock, nil
}

// recheckStock reads stock past any catalog cache when the catalog allows it.
func (s *CartService) recheckStock(ctx context.Context, productID int) (domain.Stock, error) {
	if fresh, ok := s.catalog.(port.FreshStockReader); ok {
		return fresh.GetFreshStock(ctx, productID)
	}
	return s.catalog.GetStock(ctx, productID)
}

func (s *CartService) load(ctx context.Context) domain.Cart {
	log := s.log.WithField("key", s.key)

	raw, ok, err := s.kv.Read(ctx, s.key)
	if err != nil {
		log.WithError(err).Warn("failed to read stored cart, starting empty")
		return domain.Cart{}
	}
	if !ok || raw == "" {
		return domain.Cart{}
	}

	var cart domain.Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		log.WithError(err).Warn("stored cart is malformed, starting empty")
		return domain.Cart{}
	}
	if err := cart.Validate(); err != nil {
		log.WithError(err).Warn("stored cart is invalid, starting empty")
		return domain.Cart{}
	}
	if cart == nil {
		cart = domain.Cart{}
	}

	log.WithField("items", len(cart)).Info("restored cart")
	return cart
}

func (s *CartService) notify(ctx context.Context, kind domain.NoticeKind, productID int) {
	s.notifier.Notify(ctx, domain.NewNotice(kind, productID))
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("cart.failure", Classify(err).String()))
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, domain.Notice) {}
