// internal/dex/orca/orca.go
package orca

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"go.uber.org/zap"
)

// Config lists the token swap pools the adapter may route through.
type Config struct {
	ProgramID string   `mapstructure:"program_id"`
	Pools     []string `mapstructure:"pools"`
}

// Adapter quotes configured Orca token swap pools from on-chain reserves.
type Adapter struct {
	programID solana.PublicKey
	pools     []solana.PublicKey
	accounts  dex.AccountReader
	logger    *zap.Logger

	layouts dex.KeyedCache[*SwapLayout]
}

// RouteData is carried in types.Quote.RouteData for Orca quotes.
type RouteData struct {
	Pool   solana.PublicKey
	Layout *SwapLayout
	// AToB - направление свапа внутри пула
	AToB bool
}

var _ dex.Adapter = (*Adapter)(nil)

// New создает адаптер Orca.
func New(cfg Config, deps dex.Deps) (*Adapter, error) {
	programID := DefaultProgramID
	if cfg.ProgramID != "" {
		pk, err := solana.PublicKeyFromBase58(cfg.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("invalid orca program id: %w", err)
		}
		programID = pk
	}
	pools := make([]solana.PublicKey, 0, len(cfg.Pools))
	for _, p := range cfg.Pools {
		pk, err := solana.PublicKeyFromBase58(p)
		if err != nil {
			return nil, fmt.Errorf("invalid orca pool %q: %w", p, err)
		}
		pools = append(pools, pk)
	}
	return &Adapter{
		programID: programID,
		pools:     pools,
		accounts:  deps.Accounts,
		logger:    deps.Logger.Named("orca"),
	}, nil
}

func (a *Adapter) Venue() types.Venue { return types.VenueOrca }

func (a *Adapter) layout(ctx context.Context, pool solana.PublicKey) (*SwapLayout, error) {
	return a.layouts.GetOrLoad(pool.String(), func() (*SwapLayout, error) {
		data, err := a.accounts.GetAccountData(ctx, pool)
		if err != nil {
			return nil, err
		}
		return DecodeSwapLayout(data)
	})
}

// GetQuote выбирает лучший из настроенных пулов пары.
func (a *Adapter) GetQuote(ctx context.Context, req dex.QuoteRequest) (types.Quote, error) {
	const op = "GetQuote"

	var (
		best     *swapResult
		bestData RouteData
		lastErr  error
	)
	for _, pool := range a.pools {
		layout, err := a.layout(ctx, pool)
		if err != nil {
			if ctx.Err() != nil {
				return types.Quote{}, types.NewVenueError(types.VenueOrca, types.KindUnavailable, op, ctx.Err())
			}
			a.logger.Debug("skip pool", zap.String("pool", pool.String()), zap.Error(err))
			lastErr = err
			continue
		}
		if layout.SwapCurve.CurveType != curveConstantProduct {
			continue
		}
		var aToB bool
		switch {
		case layout.MintA.Equals(req.InputToken.Mint) && layout.MintB.Equals(req.OutputToken.Mint):
			aToB = true
		case layout.MintB.Equals(req.InputToken.Mint) && layout.MintA.Equals(req.OutputToken.Mint):
			aToB = false
		default:
			continue
		}

		res, err := a.quotePool(ctx, layout, aToB, req.Amount)
		if err != nil {
			if ctx.Err() != nil {
				return types.Quote{}, types.NewVenueError(types.VenueOrca, types.KindUnavailable, op, ctx.Err())
			}
			lastErr = err
			continue
		}
		if best == nil || res.AmountOut > best.AmountOut {
			r := res
			best = &r
			bestData = RouteData{Pool: pool, Layout: layout, AToB: aToB}
		}
	}

	if best == nil {
		if lastErr != nil {
			return types.Quote{}, types.NewVenueError(types.VenueOrca, types.KindNoRoute, op, lastErr)
		}
		return types.Quote{}, types.NewVenueError(types.VenueOrca, types.KindNoRoute, op,
			fmt.Errorf("no configured pool for %s/%s", req.InputToken, req.OutputToken))
	}

	return types.Quote{
		Venue:          types.VenueOrca,
		InputToken:     req.InputToken,
		OutputToken:    req.OutputToken,
		InputAmount:    req.Amount,
		OutputAmount:   best.AmountOut,
		PriceImpactPct: best.PriceImpactPct,
		SlippageBps:    req.SlippageBps,
		RouteData:      bestData,
	}, nil
}

// quotePool читает резервы и считает выход. Резервы не кешируются.
func (a *Adapter) quotePool(ctx context.Context, layout *SwapLayout, aToB bool, amount uint64) (swapResult, error) {
	vaults, err := a.accounts.GetMultipleAccountData(ctx, []solana.PublicKey{layout.VaultA, layout.VaultB})
	if err != nil {
		return swapResult{}, fmt.Errorf("load vaults: %w", err)
	}
	if len(vaults) != 2 {
		return swapResult{}, fmt.Errorf("expected 2 vaults, got %d", len(vaults))
	}
	reserveA, err := tokenAccountAmount(vaults[0])
	if err != nil {
		return swapResult{}, fmt.Errorf("vault A: %w", err)
	}
	reserveB, err := tokenAccountAmount(vaults[1])
	if err != nil {
		return swapResult{}, fmt.Errorf("vault B: %w", err)
	}
	if aToB {
		return swapConstantProduct(layout.Fees, reserveA, reserveB, amount)
	}
	return swapConstantProduct(layout.Fees, reserveB, reserveA, amount)
}

// BuildSwapInstructions строит инструкцию Swap программы token swap.
func (a *Adapter) BuildSwapInstructions(ctx context.Context, route types.Route, signer solana.PublicKey) (*dex.SwapInstructions, error) {
	const op = "BuildSwapInstructions"

	data, ok := route.RouteData.(RouteData)
	if !ok || data.Layout == nil {
		return nil, types.NewVenueError(types.VenueOrca, types.KindInvalidParams, op, errors.New("route does not carry an Orca pool"))
	}
	authority, err := solana.CreateProgramAddress([][]byte{data.Pool.Bytes(), {data.Layout.BumpSeed}}, a.programID)
	if err != nil {
		return nil, types.NewVenueError(types.VenueOrca, types.KindInvalidParams, op, fmt.Errorf("derive pool authority: %w", err))
	}

	accs, err := dex.PrepareTokenAccounts(ctx, a.accounts, signer, route.InputToken, route.OutputToken, route.InputAmount)
	if err != nil {
		return nil, types.NewVenueError(types.VenueOrca, types.KindUnavailable, op, err)
	}

	poolSource, poolDest := data.Layout.VaultA, data.Layout.VaultB
	if !data.AToB {
		poolSource, poolDest = poolDest, poolSource
	}

	ix := solana.NewInstruction(a.programID,
		[]*solana.AccountMeta{
			solana.NewAccountMeta(data.Pool, false, false),
			solana.NewAccountMeta(authority, false, false),
			solana.NewAccountMeta(signer, false, true),
			solana.NewAccountMeta(accs.Source, true, false),
			solana.NewAccountMeta(poolSource, true, false),
			solana.NewAccountMeta(poolDest, true, false),
			solana.NewAccountMeta(accs.Destination, true, false),
			solana.NewAccountMeta(data.Layout.PoolMint, true, false),
			solana.NewAccountMeta(data.Layout.PoolFeeAccount, true, false),
			solana.NewAccountMeta(data.Layout.TokenProgramID, false, false),
		},
		swapData(route.InputAmount, route.MinimumReceived),
	)

	a.logger.Debug("swap instruction built",
		zap.String("pool", data.Pool.String()),
		zap.Bool("a_to_b", data.AToB),
		zap.Uint64("min_amount_out", route.MinimumReceived))

	return &dex.SwapInstructions{
		Setup:   accs.Setup,
		Swap:    []solana.Instruction{ix},
		Cleanup: accs.Cleanup,
	}, nil
}

func swapData(amountIn, minOut uint64) []byte {
	data := make([]byte, 17)
	data[0] = swapInstruction
	binary.LittleEndian.PutUint64(data[1:9], amountIn)
	binary.LittleEndian.PutUint64(data[9:17], minOut)
	return data
}
