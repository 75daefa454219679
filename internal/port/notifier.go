package port

import (
	"context"

	"github.com/rl1809/storefront-cart/internal/core/domain"
)

type Notifier interface {
	// Notify delivers a transient user-facing message; it must not block
	Notify(ctx context.Context, notice domain.Notice)
}
