// internal/types/types.go
package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Venue идентифицирует внешний источник ликвидности.
type Venue string

const (
	VenueJupiter Venue = "jupiter"
	VenueRaydium Venue = "raydium"
	VenueOrca    Venue = "orca"
	VenueMeteora Venue = "meteora"

	// VenueWallet помечает прямые переводы между кошельками, это не площадка.
	VenueWallet Venue = "wallet"
)

func (v Venue) String() string { return string(v) }

// LamportsPerSOL is the scaling factor of the settlement currency.
const LamportsPerSOL uint64 = 1_000_000_000

// Token describes an SPL mint. Immutable after construction.
type Token struct {
	Symbol   string           `json:"symbol" mapstructure:"symbol"`
	Name     string           `json:"name" mapstructure:"name"`
	Mint     solana.PublicKey `json:"mint" mapstructure:"-"`
	Decimals uint8            `json:"decimals" mapstructure:"decimals"`
	LogoURI  string           `json:"logoURI,omitempty" mapstructure:"logo_uri"`
}

// NativeSOL is wrapped SOL, the settlement currency for fees.
var NativeSOL = Token{
	Symbol:   "SOL",
	Name:     "Wrapped SOL",
	Mint:     solana.SolMint,
	Decimals: 9,
}

// Validate rejects tokens that cannot be routed.
func (t Token) Validate() error {
	if t.Mint.IsZero() {
		return fmt.Errorf("token %q has empty mint address", t.Symbol)
	}
	if t.Decimals > 19 {
		return fmt.Errorf("token %q: decimals %d out of range", t.Symbol, t.Decimals)
	}
	return nil
}

// IsSOL reports whether the token is the settlement currency.
func (t Token) IsSOL() bool {
	return t.Mint.Equals(solana.SolMint)
}

// ToDisplay converts base units into a display amount (integer / 10^decimals).
func (t Token) ToDisplay(base uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(base), -int32(t.Decimals))
}

// FromDisplay converts a display amount into base units, flooring any excess precision.
func (t Token) FromDisplay(amount decimal.Decimal) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", amount)
	}
	base := amount.Shift(int32(t.Decimals)).Floor().BigInt()
	if !base.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows %s base units", amount, t.Symbol)
	}
	return base.Uint64(), nil
}

func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Mint.String()
}

// Quote is a single venue's answer to a quote request.
type Quote struct {
	Venue          Venue
	InputToken     Token
	OutputToken    Token
	InputAmount    uint64
	OutputAmount   uint64
	PriceImpactPct float64
	SlippageBps    uint16
	// NotionalSOL is InputAmount expressed in the settlement currency.
	NotionalSOL float64
	FeeSOL      float64
	// RouteData is opaque outside the adapter that produced the quote.
	RouteData any
}

// WithFee returns a copy of the quote carrying the computed protocol fee.
func (q Quote) WithFee(notionalSOL, feeSOL float64) Quote {
	q.NotionalSOL = notionalSOL
	q.FeeSOL = feeSOL
	return q
}

// Route is the quote selected for execution.
type Route struct {
	Quote
	MinimumReceived uint64
}

// NewRoute freezes a quote into an executable route.
func NewRoute(q Quote) Route {
	return Route{
		Quote:           q,
		MinimumReceived: MinimumReceived(q.OutputAmount, q.SlippageBps),
	}
}

// OrderStatus is the lifecycle state of a resting order.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderExpired   OrderStatus = "expired"
)

// Side of the book an order rests on.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Order is a resting limit order on a venue. Orders are unique by (Venue, ID).
type Order struct {
	ID           string
	Owner        solana.PublicKey
	InputToken   Token
	OutputToken  Token
	InputAmount  uint64
	OutputAmount uint64
	Price        decimal.Decimal
	Side         Side
	Expiry       time.Time
	CreatedAt    time.Time
	Status       OrderStatus
	Venue        Venue
	// Account is the on-chain order account when the venue exposes one.
	Account solana.PublicKey
}

// PriceOf returns output/input in display units, zero when input is empty.
func PriceOf(in Token, inAmount uint64, out Token, outAmount uint64) decimal.Decimal {
	if inAmount == 0 {
		return decimal.Zero
	}
	return out.ToDisplay(outAmount).Div(in.ToDisplay(inAmount))
}

// IsActive reports whether the order is open and not past its expiry.
func (o Order) IsActive(now time.Time) bool {
	if o.Status != OrderOpen {
		return false
	}
	return o.Expiry.IsZero() || now.Before(o.Expiry)
}

// Key returns the globally unique identity of the order.
func (o Order) Key() string {
	return string(o.Venue) + ":" + o.ID
}

// OrderBook holds bids sorted by price descending and asks sorted ascending.
type OrderBook struct {
	Bids []Order
	Asks []Order
}

// Len returns the total number of orders on both sides.
func (b OrderBook) Len() int { return len(b.Bids) + len(b.Asks) }

// TxStatus is the state of a PendingTransaction.
type TxStatus string

const (
	TxBuilt     TxStatus = "built"
	TxSigned    TxStatus = "signed"
	TxSubmitted TxStatus = "submitted"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// PendingTransaction is an assembled, unsigned instruction sequence.
// Instructions[0] is always the protocol fee transfer.
type PendingTransaction struct {
	Instructions []solana.Instruction
	Signer       solana.PublicKey
	Venue        Venue
	FeeLamports  uint64
	Status       TxStatus
}
