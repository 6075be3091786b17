// internal/aggregator/orderbook.go
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"go.uber.org/zap"
)

// GetOrderBook merges the books of every provider with the same partial-failure
// discipline as GetBestRoute. No deduplication across venues.
func (a *Aggregator) GetOrderBook(ctx context.Context, in, out types.Token, deadline time.Duration) (types.OrderBook, error) {
	const op = "GetOrderBook"
	if err := in.Validate(); err != nil {
		return types.OrderBook{}, types.NewError(types.KindValidation, op, err)
	}
	if err := out.Validate(); err != nil {
		return types.OrderBook{}, types.NewError(types.KindValidation, op, err)
	}
	if in.Mint.Equals(out.Mint) {
		return types.OrderBook{}, types.Errorf(types.KindValidation, op, "input and output tokens are the same")
	}
	providers := a.registry.OrderBookProviders()
	if len(providers) == 0 {
		return types.OrderBook{}, types.Errorf(types.KindNoLiquidity, op, "no venue exposes an order book")
	}
	if deadline <= 0 {
		deadline = a.cfg.Deadline
	}

	logger := a.logger.With(zap.String("pair", in.String()+"/"+out.String()))
	outcomes := fanOut(ctx, op, deadline, a.cfg.GraceMargin, providers,
		dex.OrderBookProvider.Venue,
		func(ctx context.Context, p dex.OrderBookProvider) (types.OrderBook, error) {
			return p.GetOrderBook(ctx, in, out)
		})
	if err := ctx.Err(); err != nil {
		return types.OrderBook{}, fmt.Errorf("%s: %w", op, err)
	}

	books := make([]types.OrderBook, 0, len(outcomes))
	for _, o := range outcomes {
		a.record(logger, o.Venue, o.Err, o.Elapsed, o.TimedOut)
		if o.Err == nil {
			books = append(books, o.Value)
		}
	}
	if len(books) == 0 {
		return types.OrderBook{}, types.Errorf(types.KindNoLiquidity, op, "no venue returned an order book")
	}

	merged := mergeBooks(books, a.cfg.PurgeInactiveOrders, a.now())
	a.metrics.ObserveBook(len(merged.Bids), len(merged.Asks))
	return merged, nil
}

// GetOpenOrders collects the owner's resting orders from every order venue,
// oldest first. A venue failure only drops that venue's orders.
func (a *Aggregator) GetOpenOrders(ctx context.Context, owner solana.PublicKey, deadline time.Duration) ([]types.Order, error) {
	const op = "GetOpenOrders"
	if owner.IsZero() {
		return nil, types.Errorf(types.KindValidation, op, "owner is not set")
	}
	venues := a.registry.OrderVenues()
	if len(venues) == 0 {
		return nil, nil
	}
	if deadline <= 0 {
		deadline = a.cfg.Deadline
	}

	logger := a.logger.With(zap.String("owner", owner.String()))
	outcomes := fanOut(ctx, op, deadline, a.cfg.GraceMargin, venues,
		dex.OrderVenue.Venue,
		func(ctx context.Context, v dex.OrderVenue) ([]types.Order, error) {
			return v.GetOpenOrders(ctx, owner)
		})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		orders []types.Order
		failed int
		errs   error
	)
	for _, o := range outcomes {
		a.record(logger, o.Venue, o.Err, o.Elapsed, o.TimedOut)
		if o.Err != nil {
			failed++
			errs = errors.Join(errs, o.Err)
			continue
		}
		orders = append(orders, o.Value...)
	}
	if failed == len(outcomes) {
		return nil, types.NewError(types.KindUnavailable, op, errs)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

// mergeBooks concatenates books in the given order. Bids are stable-sorted by
// price desc, asks by price asc; equal prices keep the earliest CreatedAt first.
func mergeBooks(books []types.OrderBook, purgeInactive bool, now time.Time) types.OrderBook {
	var merged types.OrderBook
	for _, b := range books {
		merged.Bids = appendOrders(merged.Bids, b.Bids, purgeInactive, now)
		merged.Asks = appendOrders(merged.Asks, b.Asks, purgeInactive, now)
	}
	sort.SliceStable(merged.Bids, func(i, j int) bool {
		bi, bj := merged.Bids[i], merged.Bids[j]
		if c := bi.Price.Cmp(bj.Price); c != 0 {
			return c > 0
		}
		return bi.CreatedAt.Before(bj.CreatedAt)
	})
	sort.SliceStable(merged.Asks, func(i, j int) bool {
		ai, aj := merged.Asks[i], merged.Asks[j]
		if c := ai.Price.Cmp(aj.Price); c != 0 {
			return c < 0
		}
		return ai.CreatedAt.Before(aj.CreatedAt)
	})
	return merged
}

func appendOrders(dst, src []types.Order, purgeInactive bool, now time.Time) []types.Order {
	for _, o := range src {
		if purgeInactive && !o.IsActive(now) {
			continue
		}
		dst = append(dst, o)
	}
	return dst
}
