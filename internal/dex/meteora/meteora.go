// internal/dex/meteora/meteora.go
package meteora

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config lists the DLMM pairs the adapter may route through.
type Config struct {
	APIURL    string   `mapstructure:"api_url"`
	ProgramID string   `mapstructure:"program_id"`
	Pairs     []string `mapstructure:"pairs"`
}

// Adapter quotes Meteora DLMM pairs from the pair API and swaps against the lb_clmm program.
type Adapter struct {
	api       *dex.APIClient
	accounts  dex.AccountReader
	programID solana.PublicKey
	pairs     []solana.PublicKey
	logger    *zap.Logger
}

var _ dex.Adapter = (*Adapter)(nil)

// New создает адаптер Meteora.
func New(cfg Config, deps dex.Deps) (*Adapter, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	programID := DefaultProgramID
	if cfg.ProgramID != "" {
		pk, err := solana.PublicKeyFromBase58(cfg.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("invalid meteora program id: %w", err)
		}
		programID = pk
	}
	pairs := make([]solana.PublicKey, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		pk, err := solana.PublicKeyFromBase58(p)
		if err != nil {
			return nil, fmt.Errorf("invalid meteora pair %q: %w", p, err)
		}
		pairs = append(pairs, pk)
	}
	logger := deps.Logger.Named("meteora")
	return &Adapter{
		api:       dex.NewAPIClient(types.VenueMeteora, cfg.APIURL, deps.HTTPClient, logger),
		accounts:  deps.Accounts,
		programID: programID,
		pairs:     pairs,
		logger:    logger,
	}, nil
}

func (a *Adapter) Venue() types.Venue { return types.VenueMeteora }

// GetQuote оценивает выход по текущей цене активного бина и базовой комиссии пары.
// Оценка не проходит по бинам, поэтому ее точность падает на крупных объемах.
func (a *Adapter) GetQuote(ctx context.Context, req dex.QuoteRequest) (types.Quote, error) {
	const op = "GetQuote"

	var (
		best    *types.Quote
		lastErr error
	)
	for _, pair := range a.pairs {
		var info pairResponse
		if err := a.api.GetJSON(ctx, op, "/pair/"+pair.String(), nil, &info); err != nil {
			if ctx.Err() != nil {
				return types.Quote{}, err
			}
			lastErr = err
			continue
		}

		var swapForY bool
		switch {
		case info.MintX == req.InputToken.Mint.String() && info.MintY == req.OutputToken.Mint.String():
			swapForY = true
		case info.MintY == req.InputToken.Mint.String() && info.MintX == req.OutputToken.Mint.String():
			swapForY = false
		default:
			continue
		}

		q, err := a.quotePair(ctx, req, pair, info, swapForY)
		if err != nil {
			if ctx.Err() != nil {
				return types.Quote{}, types.NewVenueError(types.VenueMeteora, types.KindUnavailable, op, ctx.Err())
			}
			a.logger.Debug("skip pair", zap.String("pair", pair.String()), zap.Error(err))
			lastErr = err
			continue
		}
		if best == nil || q.OutputAmount > best.OutputAmount {
			best = &q
		}
	}

	if best == nil {
		if lastErr != nil {
			if types.KindOf(lastErr) != "" {
				return types.Quote{}, lastErr
			}
			return types.Quote{}, types.NewVenueError(types.VenueMeteora, types.KindNoRoute, op, lastErr)
		}
		return types.Quote{}, types.NewVenueError(types.VenueMeteora, types.KindNoRoute, op,
			fmt.Errorf("no configured pair for %s/%s", req.InputToken, req.OutputToken))
	}
	return *best, nil
}

func (a *Adapter) quotePair(ctx context.Context, req dex.QuoteRequest, pair solana.PublicKey, info pairResponse, swapForY bool) (types.Quote, error) {
	if info.CurrentPrice <= 0 {
		return types.Quote{}, errors.New("pair has no price")
	}
	feePct, err := decimal.NewFromString(info.BaseFeePercentage)
	if err != nil {
		return types.Quote{}, fmt.Errorf("parse base fee %q: %w", info.BaseFeePercentage, err)
	}

	// current_price - цена X в Y в единицах отображения
	price := decimal.NewFromFloat(info.CurrentPrice)
	in := req.InputToken.ToDisplay(req.Amount).
		Mul(decimal.NewFromInt(1).Sub(feePct.Div(decimal.NewFromInt(100))))
	var outDisplay decimal.Decimal
	var reserveOut uint64
	if swapForY {
		outDisplay = in.Mul(price)
		reserveOut = info.ReserveYAmount
	} else {
		outDisplay = in.Div(price)
		reserveOut = info.ReserveXAmount
	}
	out, err := req.OutputToken.FromDisplay(outDisplay)
	if err != nil {
		return types.Quote{}, err
	}
	if out == 0 {
		return types.Quote{}, errors.New("output is zero")
	}
	if out > reserveOut {
		return types.Quote{}, fmt.Errorf("output %d exceeds pair reserve %d", out, reserveOut)
	}

	data, err := a.accounts.GetAccountData(ctx, pair)
	if err != nil {
		return types.Quote{}, fmt.Errorf("load lb pair: %w", err)
	}
	state, err := decodeLbPair(data)
	if err != nil {
		return types.Quote{}, err
	}

	// доля резерва выходного токена, которую забирает свап
	impact, _ := decimal.NewFromInt(100).
		Mul(decimal.NewFromBigInt(u64(out), 0)).
		Div(decimal.NewFromBigInt(u64(reserveOut), 0)).
		Float64()

	return types.Quote{
		Venue:          types.VenueMeteora,
		InputToken:     req.InputToken,
		OutputToken:    req.OutputToken,
		InputAmount:    req.Amount,
		OutputAmount:   out,
		PriceImpactPct: impact,
		SlippageBps:    req.SlippageBps,
		RouteData:      RouteData{Pair: pair, State: state, SwapForY: swapForY},
	}, nil
}

// BuildSwapInstructions строит anchor инструкцию swap с бин-массивами вокруг активного бина.
func (a *Adapter) BuildSwapInstructions(ctx context.Context, route types.Route, signer solana.PublicKey) (*dex.SwapInstructions, error) {
	const op = "BuildSwapInstructions"

	data, ok := route.RouteData.(RouteData)
	if !ok || data.State == nil {
		return nil, types.NewVenueError(types.VenueMeteora, types.KindInvalidParams, op, errors.New("route does not carry a Meteora pair"))
	}

	accs, err := dex.PrepareTokenAccounts(ctx, a.accounts, signer, route.InputToken, route.OutputToken, route.InputAmount)
	if err != nil {
		return nil, types.NewVenueError(types.VenueMeteora, types.KindUnavailable, op, err)
	}

	eventAuthority, _, err := solana.FindProgramAddress([][]byte{[]byte("__event_authority")}, a.programID)
	if err != nil {
		return nil, types.NewVenueError(types.VenueMeteora, types.KindInvalidParams, op, err)
	}
	binArrays, err := a.binArrays(data.Pair, data.State.ActiveID, data.SwapForY)
	if err != nil {
		return nil, types.NewVenueError(types.VenueMeteora, types.KindInvalidParams, op, err)
	}

	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(swapArgs{
		Discriminator: swapDiscriminator,
		AmountIn:      route.InputAmount,
		MinAmountOut:  route.MinimumReceived,
	}); err != nil {
		return nil, types.NewVenueError(types.VenueMeteora, types.KindInvalidParams, op, fmt.Errorf("encode swap args: %w", err))
	}

	st := data.State
	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(data.Pair, true, false),
		solana.NewAccountMeta(a.programID, false, false), // bin_array_bitmap_extension: None
		solana.NewAccountMeta(st.ReserveX, true, false),
		solana.NewAccountMeta(st.ReserveY, true, false),
		solana.NewAccountMeta(accs.Source, true, false),
		solana.NewAccountMeta(accs.Destination, true, false),
		solana.NewAccountMeta(st.TokenXMint, false, false),
		solana.NewAccountMeta(st.TokenYMint, false, false),
		solana.NewAccountMeta(st.Oracle, true, false),
		solana.NewAccountMeta(a.programID, false, false), // host_fee_in: None
		solana.NewAccountMeta(signer, false, true),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(eventAuthority, false, false),
		solana.NewAccountMeta(a.programID, false, false),
	}
	for _, arr := range binArrays {
		metas = append(metas, solana.NewAccountMeta(arr, true, false))
	}

	return &dex.SwapInstructions{
		Setup:   accs.Setup,
		Swap:    []solana.Instruction{solana.NewInstruction(a.programID, metas, buf.Bytes())},
		Cleanup: accs.Cleanup,
	}, nil
}

// binArrays возвращает массив активного бина и следующий по направлению свапа.
func (a *Adapter) binArrays(pair solana.PublicKey, activeID int32, swapForY bool) ([]solana.PublicKey, error) {
	idx := binArrayIndex(activeID)
	next := idx + 1
	if swapForY {
		next = idx - 1
	}
	out := make([]solana.PublicKey, 0, 2)
	for _, i := range []int64{idx, next} {
		seed := make([]byte, 8)
		binary.LittleEndian.PutUint64(seed, uint64(i))
		pda, _, err := solana.FindProgramAddress([][]byte{[]byte("bin_array"), pair.Bytes(), seed}, a.programID)
		if err != nil {
			return nil, fmt.Errorf("derive bin array %d: %w", i, err)
		}
		out = append(out, pda)
	}
	return out, nil
}

// binArrayIndex делит с округлением вниз и для отрицательных id.
func binArrayIndex(binID int32) int64 {
	idx := int64(binID) / maxBinPerArray
	if binID < 0 && int64(binID)%maxBinPerArray != 0 {
		idx--
	}
	return idx
}

func u64(v uint64) *big.Int { return new(big.Int).SetUint64(v) }
