package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/port"
)

type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, notice domain.Notice) {
	entry := n.log.WithFields(logrus.Fields{
		"notice_id":  notice.ID.String(),
		"kind":       notice.Kind,
		"product_id": notice.ProductID,
	})
	if notice.Level == domain.NoticeLevelError {
		entry.Warn(notice.Message)
		return
	}
	entry.Info(notice.Message)
}

// Feed keeps the most recent notices so the UI can poll for them.
type Feed struct {
	mu      sync.Mutex
	notices []domain.Notice
	next    int
	full    bool
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 1
	}
	return &Feed{notices: make([]domain.Notice, size)}
}

func (f *Feed) Notify(ctx context.Context, notice domain.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notices[f.next] = notice
	f.next = (f.next + 1) % len(f.notices)
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns up to n notices, newest first.
func (f *Feed) Recent(n int) []domain.Notice {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := f.next
	if f.full {
		count = len(f.notices)
	}
	if n <= 0 || n > count {
		n = count
	}

	out := make([]domain.Notice, 0, n)
	for i := 1; i <= n; i++ {
		idx := (f.next - i + len(f.notices)) % len(f.notices)
		out = append(out, f.notices[idx])
	}
	return out
}

type multi []port.Notifier

// Multi fans a notice out to every notifier in order.
func Multi(notifiers ...port.Notifier) port.Notifier {
	return multi(notifiers)
}

func (m multi) Notify(ctx context.Context, notice domain.Notice) {
	for _, n := range m {
		n.Notify(ctx, notice)
	}
}
