// internal/dex/jupiter/trigger.go
package jupiter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxOrderPages = 10

// GetOpenOrders returns the owner's active trigger orders.
func (a *Adapter) GetOpenOrders(ctx context.Context, owner solana.PublicKey) ([]types.Order, error) {
	const op = "GetOpenOrders"

	var orders []types.Order
	for page := 1; page <= maxOrderPages; page++ {
		q := url.Values{}
		q.Set("user", owner.String())
		q.Set("orderStatus", "active")
		q.Set("page", strconv.Itoa(page))

		var resp triggerOrdersResponse
		if err := a.trigger.GetJSON(ctx, op, "/getTriggerOrders", q, &resp); err != nil {
			return nil, err
		}
		for _, raw := range resp.Orders {
			o, err := a.convertOrder(raw)
			if err != nil {
				a.logger.Debug("skip malformed trigger order", zap.String("order", raw.OrderKey), zap.Error(err))
				continue
			}
			orders = append(orders, o)
		}
		if resp.TotalPages <= page {
			break
		}
	}
	return orders, nil
}

func (a *Adapter) convertOrder(raw triggerOrder) (types.Order, error) {
	inMint, err := solana.PublicKeyFromBase58(raw.InputMint)
	if err != nil {
		return types.Order{}, fmt.Errorf("input mint: %w", err)
	}
	outMint, err := solana.PublicKeyFromBase58(raw.OutputMint)
	if err != nil {
		return types.Order{}, fmt.Errorf("output mint: %w", err)
	}
	owner, err := solana.PublicKeyFromBase58(raw.UserPubkey)
	if err != nil {
		return types.Order{}, fmt.Errorf("owner: %w", err)
	}
	account, _ := solana.PublicKeyFromBase58(raw.OrderKey)

	inAmount, _ := strconv.ParseUint(raw.RawMakingAmount, 10, 64)
	outAmount, _ := strconv.ParseUint(raw.RawTakingAmount, 10, 64)

	price := decimal.Zero
	making, errM := decimal.NewFromString(raw.MakingAmount)
	taking, errT := decimal.NewFromString(raw.TakingAmount)
	if errM == nil && errT == nil && making.IsPositive() {
		price = taking.Div(making)
	}

	order := types.Order{
		ID:           raw.OrderKey,
		Owner:        owner,
		InputToken:   dex.ResolveToken(a.tokens, inMint),
		OutputToken:  dex.ResolveToken(a.tokens, outMint),
		InputAmount:  inAmount,
		OutputAmount: outAmount,
		Price:        price,
		Side:         types.SideAsk,
		Status:       orderStatus(raw.Status),
		Venue:        types.VenueJupiter,
		Account:      account,
	}
	order.CreatedAt, _ = parseTime(raw.CreatedAt)
	if raw.ExpiredAt != nil {
		order.Expiry, _ = parseTime(*raw.ExpiredAt)
	}
	return order, nil
}

func orderStatus(s string) types.OrderStatus {
	switch strings.ToLower(s) {
	case "completed", "filled":
		return types.OrderFilled
	case "cancelled", "canceled":
		return types.OrderCancelled
	case "expired":
		return types.OrderExpired
	default:
		return types.OrderOpen
	}
}

// parseTime accepts RFC3339 or unix seconds.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised time %q", s)
	}
	return time.Unix(sec, 0).UTC(), nil
}

// BuildPlaceOrderInstructions creates a trigger order and decompiles the returned transaction.
func (a *Adapter) BuildPlaceOrderInstructions(ctx context.Context, req dex.OrderRequest) (*dex.SwapInstructions, error) {
	const op = "BuildPlaceOrderInstructions"
	if err := req.Validate(); err != nil {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindInvalidParams, op, err)
	}

	body := createOrderRequest{
		InputMint:  req.InputToken.Mint.String(),
		OutputMint: req.OutputToken.Mint.String(),
		Maker:      req.Owner.String(),
		Payer:      req.Owner.String(),
		Params: createOrderParams{
			MakingAmount: strconv.FormatUint(req.InputAmount, 10),
			TakingAmount: strconv.FormatUint(req.OutputAmount, 10),
		},
		ComputeUnitPrice: "auto",
		WrapAndUnwrapSol: true,
	}
	if !req.Expiry.IsZero() {
		body.Params.ExpiredAt = strconv.FormatInt(req.Expiry.Unix(), 10)
	}

	var resp orderTxResponse
	if err := a.trigger.PostJSON(ctx, op, "/createOrder", body, &resp); err != nil {
		return nil, err
	}
	ixs, err := decodeOrderTx(resp)
	if err != nil {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, err)
	}
	a.logger.Info("trigger order prepared", zap.String("order", resp.Order), zap.String("request_id", resp.RequestID))
	return &dex.SwapInstructions{Swap: ixs}, nil
}

// BuildCancelOrderInstructions cancels one trigger order.
func (a *Adapter) BuildCancelOrderInstructions(ctx context.Context, order types.Order, owner solana.PublicKey) (*dex.SwapInstructions, error) {
	const op = "BuildCancelOrderInstructions"
	if order.Venue != types.VenueJupiter {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindInvalidParams, op,
			fmt.Errorf("order %s belongs to %s", order.ID, order.Venue))
	}
	if !order.Owner.IsZero() && !order.Owner.Equals(owner) {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindInvalidParams, op, errors.New("order is owned by another wallet"))
	}

	body := cancelOrderRequest{
		Maker:            owner.String(),
		Order:            order.ID,
		ComputeUnitPrice: "auto",
	}
	var resp orderTxResponse
	if err := a.trigger.PostJSON(ctx, op, "/cancelOrder", body, &resp); err != nil {
		return nil, err
	}
	ixs, err := decodeOrderTx(resp)
	if err != nil {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, err)
	}
	return &dex.SwapInstructions{Swap: ixs}, nil
}

func decodeOrderTx(resp orderTxResponse) ([]solana.Instruction, error) {
	if resp.Transaction == "" {
		return nil, errors.New("response has no transaction")
	}
	return dex.InstructionsFromTransaction(resp.Transaction)
}
