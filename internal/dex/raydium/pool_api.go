// internal/dex/raydium/pool_api.go
package raydium

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
)

// computeSwap вызывает /compute/swap-base-in.
func (a *Adapter) computeSwap(ctx context.Context, req dex.QuoteRequest) (*computeData, error) {
	const op = "GetQuote"

	q := url.Values{}
	q.Set("inputMint", req.InputToken.Mint.String())
	q.Set("outputMint", req.OutputToken.Mint.String())
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(int(req.SlippageBps)))
	q.Set("txVersion", "LEGACY")

	var resp computeResponse
	if err := a.compute.GetJSON(ctx, op, "/compute/swap-base-in", q, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, types.NewVenueError(types.VenueRaydium, computeErrorKind(resp.Msg), op, fmt.Errorf("compute failed: %s", resp.Msg))
	}
	return resp.Data, nil
}

// computeErrorKind переводит msg API в вид ошибки.
func computeErrorKind(msg string) types.ErrorKind {
	m := strings.ToUpper(msg)
	switch {
	case strings.Contains(m, "ROUTE"), strings.Contains(m, "LIQUIDITY"), strings.Contains(m, "NOT_FOUND"):
		return types.KindNoRoute
	case strings.HasPrefix(m, "REQ_"):
		return types.KindInvalidParams
	default:
		return types.KindUnavailable
	}
}

// poolKeys возвращает ключи AMM v4 пула, кешируя их навсегда: они не меняются.
func (a *Adapter) poolKeys(ctx context.Context, poolID string) (*PoolKeys, error) {
	const op = "poolKeys"
	return a.keys.GetOrLoad(poolID, func() (*PoolKeys, error) {
		q := url.Values{}
		q.Set("ids", poolID)

		var resp poolKeysResponse
		if err := a.api.GetJSON(ctx, op, "/pools/key/ids", q, &resp); err != nil {
			return nil, err
		}
		if !resp.Success || len(resp.Data) == 0 {
			return nil, types.NewVenueError(types.VenueRaydium, types.KindNoRoute, op, fmt.Errorf("pool %s not found", poolID))
		}
		raw := resp.Data[0]
		if raw.ProgramID != a.programID.String() {
			return nil, types.NewVenueError(types.VenueRaydium, types.KindNoRoute, op,
				fmt.Errorf("pool %s is owned by %s, only AMM v4 is supported", poolID, raw.ProgramID))
		}
		keys, err := raw.parse()
		if err != nil {
			return nil, types.NewVenueError(types.VenueRaydium, types.KindUnavailable, op, err)
		}
		return keys, nil
	})
}

// marketForPair находит OpenBook маркет самого ликвидного стандартного пула пары.
func (a *Adapter) marketForPair(ctx context.Context, in, out types.Token) (solana.PublicKey, error) {
	const op = "GetOrderBook"
	key := pairKey(in.Mint, out.Mint)
	return a.markets.GetOrLoad(key, func() (solana.PublicKey, error) {
		q := url.Values{}
		q.Set("mint1", in.Mint.String())
		q.Set("mint2", out.Mint.String())
		q.Set("poolType", "standard")
		q.Set("poolSortField", "liquidity")
		q.Set("sortType", "desc")
		q.Set("pageSize", "1")
		q.Set("page", "1")

		var resp poolsByMintResponse
		if err := a.api.GetJSON(ctx, op, "/pools/info/mint", q, &resp); err != nil {
			return solana.PublicKey{}, err
		}
		for _, p := range resp.Data.Data {
			if p.MarketID == "" {
				continue
			}
			market, err := solana.PublicKeyFromBase58(p.MarketID)
			if err != nil {
				continue
			}
			return market, nil
		}
		return solana.PublicKey{}, types.NewVenueError(types.VenueRaydium, types.KindNoRoute, op,
			errors.New("no standard pool with an OpenBook market for pair"))
	})
}

// pairKey не зависит от направления.
func pairKey(a, b solana.PublicKey) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}
