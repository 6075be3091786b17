// =============================
// File: internal/dex/dex.go
// =============================
package dex

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/types"
)

// Adapter is the capability set every venue implements. Errors are *types.Error
// with kind KindUnavailable, KindNoRoute or KindInvalidParams. Implementations
// must honor the context deadline.
type Adapter interface {
	Venue() types.Venue
	GetQuote(ctx context.Context, req QuoteRequest) (types.Quote, error)
	// BuildSwapInstructions may read on-chain account existence, nothing else.
	BuildSwapInstructions(ctx context.Context, route types.Route, signer solana.PublicKey) (*SwapInstructions, error)
}

// OrderBookProvider is implemented by venues with resting orders.
type OrderBookProvider interface {
	Venue() types.Venue
	GetOrderBook(ctx context.Context, inputToken, outputToken types.Token) (types.OrderBook, error)
}

// OrderVenue is implemented by venues that accept limit orders from the user.
type OrderVenue interface {
	Venue() types.Venue
	GetOpenOrders(ctx context.Context, owner solana.PublicKey) ([]types.Order, error)
	BuildPlaceOrderInstructions(ctx context.Context, req OrderRequest) (*SwapInstructions, error)
	BuildCancelOrderInstructions(ctx context.Context, order types.Order, owner solana.PublicKey) (*SwapInstructions, error)
}

// AccountReader is the on-chain read surface adapters are allowed to use.
type AccountReader interface {
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
	GetMultipleAccountData(ctx context.Context, accounts []solana.PublicKey) ([][]byte, error)
}
