// internal/dex/raydium/raydium.go
package raydium

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"go.uber.org/zap"
)

// Config holds Raydium endpoints.
type Config struct {
	ComputeURL string `mapstructure:"compute_url"`
	APIURL     string `mapstructure:"api_url"`
	// ProgramID переопределяет AMM v4 (devnet).
	ProgramID string `mapstructure:"program_id"`
}

// Adapter quotes through the Raydium compute API and swaps directly against AMM v4 pools.
type Adapter struct {
	compute   *dex.APIClient
	api       *dex.APIClient
	accounts  dex.AccountReader
	tokens    dex.TokenDirectory
	programID solana.PublicKey
	logger    *zap.Logger

	keys    dex.KeyedCache[*PoolKeys]
	markets dex.KeyedCache[solana.PublicKey]
	layouts dex.KeyedCache[*marketState]
}

var (
	_ dex.Adapter           = (*Adapter)(nil)
	_ dex.OrderBookProvider = (*Adapter)(nil)
)

// New создает адаптер Raydium.
func New(cfg Config, deps dex.Deps) (*Adapter, error) {
	if cfg.ComputeURL == "" {
		cfg.ComputeURL = DefaultComputeURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	programID := AmmV4ProgramID
	if cfg.ProgramID != "" {
		pk, err := solana.PublicKeyFromBase58(cfg.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("invalid raydium program id: %w", err)
		}
		programID = pk
	}
	logger := deps.Logger.Named("raydium")
	return &Adapter{
		compute:   dex.NewAPIClient(types.VenueRaydium, cfg.ComputeURL, deps.HTTPClient, logger),
		api:       dex.NewAPIClient(types.VenueRaydium, cfg.APIURL, deps.HTTPClient, logger),
		accounts:  deps.Accounts,
		tokens:    deps.Tokens,
		programID: programID,
		logger:    logger,
	}, nil
}

func (a *Adapter) Venue() types.Venue { return types.VenueRaydium }

// GetQuote возвращает котировку для прямого маршрута через один AMM v4 пул.
// Многошаговые маршруты и пулы других программ не котируются: их нельзя исполнить этим адаптером.
func (a *Adapter) GetQuote(ctx context.Context, req dex.QuoteRequest) (types.Quote, error) {
	const op = "GetQuote"

	data, err := a.computeSwap(ctx, req)
	if err != nil {
		return types.Quote{}, err
	}
	if data.OutputMint != req.OutputToken.Mint.String() {
		return types.Quote{}, types.NewVenueError(types.VenueRaydium, types.KindInvalidParams, op,
			fmt.Errorf("quote output mint %s does not match %s", data.OutputMint, req.OutputToken.Mint))
	}
	if len(data.RoutePlan) != 1 {
		return types.Quote{}, types.NewVenueError(types.VenueRaydium, types.KindNoRoute, op,
			fmt.Errorf("route has %d hops, only direct pools are supported", len(data.RoutePlan)))
	}

	inAmount, err := strconv.ParseUint(data.InputAmount, 10, 64)
	if err != nil {
		return types.Quote{}, types.NewVenueError(types.VenueRaydium, types.KindUnavailable, op, fmt.Errorf("parse inputAmount: %w", err))
	}
	outAmount, err := strconv.ParseUint(data.OutputAmount, 10, 64)
	if err != nil {
		return types.Quote{}, types.NewVenueError(types.VenueRaydium, types.KindUnavailable, op, fmt.Errorf("parse outputAmount: %w", err))
	}
	if outAmount == 0 {
		return types.Quote{}, types.NewVenueError(types.VenueRaydium, types.KindNoRoute, op, errors.New("zero output"))
	}

	poolID := data.RoutePlan[0].PoolID
	keys, err := a.poolKeys(ctx, poolID)
	if err != nil {
		return types.Quote{}, err
	}

	impact := data.PriceImpactPct
	if impact < 0 {
		impact = -impact
	}
	return types.Quote{
		Venue:          types.VenueRaydium,
		InputToken:     req.InputToken,
		OutputToken:    req.OutputToken,
		InputAmount:    inAmount,
		OutputAmount:   outAmount,
		PriceImpactPct: impact,
		SlippageBps:    req.SlippageBps,
		RouteData:      RouteData{PoolID: poolID, Keys: keys},
	}, nil
}

// BuildSwapInstructions строит swapBaseIn с минимальным выходом маршрута.
func (a *Adapter) BuildSwapInstructions(ctx context.Context, route types.Route, signer solana.PublicKey) (*dex.SwapInstructions, error) {
	const op = "BuildSwapInstructions"

	data, ok := route.RouteData.(RouteData)
	if !ok || data.Keys == nil {
		return nil, types.NewVenueError(types.VenueRaydium, types.KindInvalidParams, op, errors.New("route does not carry Raydium pool keys"))
	}
	if !poolTrades(data.Keys, route.InputToken.Mint, route.OutputToken.Mint) {
		return nil, types.NewVenueError(types.VenueRaydium, types.KindInvalidParams, op,
			fmt.Errorf("pool %s does not trade %s/%s", data.PoolID, route.InputToken, route.OutputToken))
	}

	accs, err := dex.PrepareTokenAccounts(ctx, a.accounts, signer, route.InputToken, route.OutputToken, route.InputAmount)
	if err != nil {
		return nil, types.NewVenueError(types.VenueRaydium, types.KindUnavailable, op, err)
	}

	swapIx := BuildSwapInstruction(a.programID,
		SwapInstructionData{AmountIn: route.InputAmount, MinAmountOut: route.MinimumReceived},
		SwapInstructionAccounts{
			UserAuthority:   signer,
			UserSourceToken: accs.Source,
			UserDestToken:   accs.Destination,
			Pool:            data.Keys,
		})

	a.logger.Debug("swap instruction built",
		zap.String("pool", data.PoolID),
		zap.Uint64("amount_in", route.InputAmount),
		zap.Uint64("min_amount_out", route.MinimumReceived))

	return &dex.SwapInstructions{
		Setup:   accs.Setup,
		Swap:    []solana.Instruction{swapIx},
		Cleanup: accs.Cleanup,
	}, nil
}

func poolTrades(k *PoolKeys, in, out solana.PublicKey) bool {
	return (k.CoinMint.Equals(in) && k.PCMint.Equals(out)) || (k.PCMint.Equals(in) && k.CoinMint.Equals(out))
}
