package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookVenue struct {
	*fakeVenue
	book   types.OrderBook
	orders []types.Order
	err    error
}

func (f *fakeBookVenue) GetOrderBook(context.Context, types.Token, types.Token) (types.OrderBook, error) {
	return f.book, f.err
}

func (f *fakeBookVenue) GetOpenOrders(context.Context, solana.PublicKey) ([]types.Order, error) {
	return f.orders, f.err
}

func (f *fakeBookVenue) BuildPlaceOrderInstructions(context.Context, dex.OrderRequest) (*dex.SwapInstructions, error) {
	return nil, errors.New("not used")
}

func (f *fakeBookVenue) BuildCancelOrderInstructions(context.Context, types.Order, solana.PublicKey) (*dex.SwapInstructions, error) {
	return nil, errors.New("not used")
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func order(venue types.Venue, id string, price int64, createdSec int) types.Order {
	return types.Order{
		ID:        id,
		Venue:     venue,
		Price:     decimal.NewFromInt(price),
		CreatedAt: t0.Add(time.Duration(createdSec) * time.Second),
		Status:    types.OrderOpen,
	}
}

func prices(orders []types.Order) []int64 {
	out := make([]int64, len(orders))
	for i, o := range orders {
		out[i] = o.Price.IntPart()
	}
	return out
}

func ids(orders []types.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestMergeBooks(t *testing.T) {
	a := types.OrderBook{
		Bids: []types.Order{order(types.VenueJupiter, "a1", 10, 1), order(types.VenueJupiter, "a2", 12, 2)},
		Asks: []types.Order{order(types.VenueJupiter, "a3", 15, 1)},
	}
	b := types.OrderBook{
		Bids: []types.Order{order(types.VenueRaydium, "b1", 11, 3)},
		Asks: []types.Order{order(types.VenueRaydium, "b2", 13, 5), order(types.VenueRaydium, "b3", 15, 0)},
	}

	merged := mergeBooks([]types.OrderBook{a, b}, true, t0)
	assert.Equal(t, []int64{12, 11, 10}, prices(merged.Bids))
	assert.Equal(t, []int64{13, 15, 15}, prices(merged.Asks))
	assert.Equal(t, []string{"b2", "b3", "a3"}, ids(merged.Asks), "equal prices: earlier createdAt first")
}

func TestMergeBooksPurgesInactive(t *testing.T) {
	cancelled := order(types.VenueJupiter, "c", 20, 0)
	cancelled.Status = types.OrderCancelled
	expired := order(types.VenueJupiter, "e", 19, 0)
	expired.Expiry = t0.Add(-time.Minute)
	live := order(types.VenueJupiter, "l", 18, 0)
	live.Expiry = t0.Add(time.Hour)

	book := types.OrderBook{Bids: []types.Order{cancelled, expired, live}}

	assert.Equal(t, []string{"l"}, ids(mergeBooks([]types.OrderBook{book}, true, t0).Bids))
	assert.Len(t, mergeBooks([]types.OrderBook{book}, false, t0).Bids, 3)
}

func TestGetOrderBookPartialFailure(t *testing.T) {
	ok := &fakeBookVenue{
		fakeVenue: quoting(types.VenueJupiter, 1, 0),
		book:      types.OrderBook{Bids: []types.Order{order(types.VenueJupiter, "j1", 10, 0)}},
	}
	broken := &fakeBookVenue{
		fakeVenue: quoting(types.VenueRaydium, 1, 0),
		err:       types.NewVenueError(types.VenueRaydium, types.KindUnavailable, "GetOrderBook", errors.New("rpc down")),
	}
	a := newAggregator(t, DefaultConfig(), nil, ok, broken, quoting(types.VenueOrca, 1, 0))
	a.now = func() time.Time { return t0 }

	book, err := a.GetOrderBook(context.Background(), types.NativeSOL, usdc, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"j1"}, ids(book.Bids))
	assert.Empty(t, book.Asks)

	a = newAggregator(t, DefaultConfig(), nil, broken)
	_, err = a.GetOrderBook(context.Background(), types.NativeSOL, usdc, 0)
	assert.Equal(t, types.KindNoLiquidity, types.KindOf(err))

	a = newAggregator(t, DefaultConfig(), nil, quoting(types.VenueOrca, 1, 0))
	_, err = a.GetOrderBook(context.Background(), types.NativeSOL, usdc, 0)
	assert.Equal(t, types.KindNoLiquidity, types.KindOf(err), "no provider registered")

	_, err = a.GetOrderBook(context.Background(), usdc, usdc, 0)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestGetOpenOrders(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	jup := &fakeBookVenue{
		fakeVenue: quoting(types.VenueJupiter, 1, 0),
		orders:    []types.Order{order(types.VenueJupiter, "late", 1, 10), order(types.VenueJupiter, "early", 1, 1)},
	}
	a := newAggregator(t, DefaultConfig(), nil, jup)

	orders, err := a.GetOpenOrders(context.Background(), owner, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, ids(orders))

	_, err = a.GetOpenOrders(context.Background(), solana.PublicKey{}, 0)
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	jup.err = types.NewVenueError(types.VenueJupiter, types.KindUnavailable, "GetOpenOrders", errors.New("503"))
	_, err = a.GetOpenOrders(context.Background(), owner, 0)
	assert.Equal(t, types.KindUnavailable, types.KindOf(err))
}
