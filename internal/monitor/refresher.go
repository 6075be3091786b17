// internal/monitor/refresher.go
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"go.uber.org/zap"
)

// DefaultOrderRefreshInterval is the polling period for resting orders.
const DefaultOrderRefreshInterval = 30 * time.Second

// OrdersSource returns an owner's resting orders across venues.
type OrdersSource interface {
	GetOpenOrders(ctx context.Context, owner solana.PublicKey, deadline time.Duration) ([]types.Order, error)
}

// BookSource returns the merged book for a pair.
type BookSource interface {
	GetOrderBook(ctx context.Context, in, out types.Token, deadline time.Duration) (types.OrderBook, error)
}

// Snapshot is the latest refresh result.
type Snapshot struct {
	Orders    []types.Order
	Book      *types.OrderBook
	UpdatedAt time.Time
	// Err is set when the last refresh failed; Orders and Book keep the previous values.
	Err error
}

type RefresherConfig struct {
	Owner    solana.PublicKey
	Interval time.Duration
	// Deadline bounds each refresh; zero uses the source default.
	Deadline time.Duration
	// Book and the pair are optional: when set, the merged book is refreshed too.
	Book   BookSource
	Input  types.Token
	Output types.Token
}

// OrderRefresher keeps the user's open orders (and optionally a book) fresh.
type OrderRefresher struct {
	orders  OrdersSource
	cfg     RefresherConfig
	poller  *Poller
	logger  *zap.Logger
	updates chan Snapshot

	mu        sync.RWMutex
	snap      Snapshot
	closeOnce sync.Once
}

// NewOrderRefresher создает обновление ордеров по расписанию.
func NewOrderRefresher(orders OrdersSource, cfg RefresherConfig, logger *zap.Logger) (*OrderRefresher, error) {
	if orders == nil {
		return nil, errors.New("orders source cannot be nil")
	}
	if cfg.Owner.IsZero() {
		return nil, errors.New("owner is not set")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultOrderRefreshInterval
	}
	r := &OrderRefresher{
		orders:  orders,
		cfg:     cfg,
		logger:  logger.Named("order-refresher").With(zap.String("owner", cfg.Owner.String())),
		updates: make(chan Snapshot, 1),
	}
	p, err := NewPoller("orders", cfg.Interval, r.refresh, logger)
	if err != nil {
		return nil, err
	}
	r.poller = p
	return r, nil
}

func (r *OrderRefresher) Start(ctx context.Context) error {
	return r.poller.Start(ctx)
}

// Stop ends polling and closes Updates. Safe to call more than once.
func (r *OrderRefresher) Stop() {
	r.poller.Stop()
	r.closeOnce.Do(func() { close(r.updates) })
}

// Updates delivers snapshots; only the latest undelivered one is kept.
func (r *OrderRefresher) Updates() <-chan Snapshot {
	return r.updates
}

// Snapshot returns the latest refresh result.
func (r *OrderRefresher) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

func (r *OrderRefresher) refresh(ctx context.Context) {
	orders, err := r.orders.GetOpenOrders(ctx, r.cfg.Owner, r.cfg.Deadline)
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	next := r.snap
	next.UpdatedAt = time.Now()
	next.Err = err
	if err == nil {
		next.Orders = orders
	}
	r.mu.Unlock()

	if err == nil && r.cfg.Book != nil {
		book, bookErr := r.cfg.Book.GetOrderBook(ctx, r.cfg.Input, r.cfg.Output, r.cfg.Deadline)
		if ctx.Err() != nil {
			return
		}
		if bookErr != nil {
			next.Err = bookErr
		} else {
			next.Book = &book
		}
	}

	if next.Err != nil {
		r.logger.Warn("refresh failed", zap.Error(next.Err))
	} else {
		r.logger.Debug("orders refreshed", zap.Int("orders", len(next.Orders)))
	}

	r.mu.Lock()
	r.snap = next
	r.mu.Unlock()
	r.publish(next)
}

// publish заменяет недоставленный снимок новым.
func (r *OrderRefresher) publish(s Snapshot) {
	for {
		select {
		case r.updates <- s:
			return
		default:
		}
		select {
		case <-r.updates:
		default:
		}
	}
}
