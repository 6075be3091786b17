// internal/dex/jupiter/jupiter.go
package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds Jupiter endpoints and routing flags.
type Config struct {
	SwapURL          string `mapstructure:"swap_url"`
	TriggerURL       string `mapstructure:"trigger_url"`
	PriceURL         string `mapstructure:"price_url"`
	OnlyDirectRoutes bool   `mapstructure:"only_direct_routes"`
	MaxAccounts      int    `mapstructure:"max_accounts"`
}

// Adapter routes through the Jupiter aggregator API.
type Adapter struct {
	cfg     Config
	swap    *dex.APIClient
	trigger *dex.APIClient
	price   *dex.APIClient
	tokens  dex.TokenDirectory
	logger  *zap.Logger
}

var (
	_ dex.Adapter    = (*Adapter)(nil)
	_ dex.OrderVenue = (*Adapter)(nil)
)

// New создает адаптер Jupiter.
func New(cfg Config, deps dex.Deps) *Adapter {
	if cfg.SwapURL == "" {
		cfg.SwapURL = DefaultSwapURL
	}
	if cfg.TriggerURL == "" {
		cfg.TriggerURL = DefaultTriggerURL
	}
	if cfg.PriceURL == "" {
		cfg.PriceURL = DefaultPriceURL
	}
	logger := deps.Logger.Named("jupiter")
	return &Adapter{
		cfg:     cfg,
		swap:    dex.NewAPIClient(types.VenueJupiter, cfg.SwapURL, deps.HTTPClient, logger),
		trigger: dex.NewAPIClient(types.VenueJupiter, cfg.TriggerURL, deps.HTTPClient, logger),
		price:   dex.NewAPIClient(types.VenueJupiter, cfg.PriceURL, deps.HTTPClient, logger),
		tokens:  deps.Tokens,
		logger:  logger,
	}
}

func (a *Adapter) Venue() types.Venue { return types.VenueJupiter }

// GetQuote запрашивает котировку у /quote.
func (a *Adapter) GetQuote(ctx context.Context, req dex.QuoteRequest) (types.Quote, error) {
	const op = "GetQuote"

	q := url.Values{}
	q.Set("inputMint", req.InputToken.Mint.String())
	q.Set("outputMint", req.OutputToken.Mint.String())
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(int(req.SlippageBps)))
	q.Set("swapMode", "ExactIn")
	q.Set("asLegacyTransaction", "true")
	if a.cfg.OnlyDirectRoutes {
		q.Set("onlyDirectRoutes", "true")
	}
	if a.cfg.MaxAccounts > 0 {
		q.Set("maxAccounts", strconv.Itoa(a.cfg.MaxAccounts))
	}

	var raw json.RawMessage
	if err := a.swap.GetJSON(ctx, op, "/quote", q, &raw); err != nil {
		return types.Quote{}, classifyQuoteError(err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return types.Quote{}, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, fmt.Errorf("decode quote: %w", err))
	}
	if resp.OutputMint != req.OutputToken.Mint.String() {
		return types.Quote{}, types.NewVenueError(types.VenueJupiter, types.KindInvalidParams, op,
			fmt.Errorf("quote output mint %s does not match %s", resp.OutputMint, req.OutputToken.Mint))
	}

	inAmount, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		return types.Quote{}, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, fmt.Errorf("parse inAmount: %w", err))
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return types.Quote{}, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, fmt.Errorf("parse outAmount: %w", err))
	}
	if outAmount == 0 {
		return types.Quote{}, types.NewVenueError(types.VenueJupiter, types.KindNoRoute, op, errors.New("zero output"))
	}
	// API отдает долю (0.01 = 1%), котировки других площадок - проценты
	impact := impactPercent(resp.PriceImpactPct)

	labels := make([]string, 0, len(resp.RoutePlan))
	for _, step := range resp.RoutePlan {
		labels = append(labels, step.SwapInfo.Label)
	}

	return types.Quote{
		Venue:          types.VenueJupiter,
		InputToken:     req.InputToken,
		OutputToken:    req.OutputToken,
		InputAmount:    inAmount,
		OutputAmount:   outAmount,
		PriceImpactPct: impact,
		SlippageBps:    req.SlippageBps,
		RouteData:      RouteData{Raw: raw, Labels: labels},
	}, nil
}

// classifyQuoteError maps Jupiter's "no route" 400 into KindNoRoute.
func classifyQuoteError(err error) error {
	body, ok := dex.ResponseBody(err)
	if !ok {
		return err
	}
	var apiErr apiError
	if json.Unmarshal([]byte(body), &apiErr) == nil && apiErr.ErrorCode == errCodeNoRoute {
		return types.NewVenueError(types.VenueJupiter, types.KindNoRoute, "GetQuote", errors.New(apiErr.Error))
	}
	if strings.Contains(body, "No routes found") {
		return types.NewVenueError(types.VenueJupiter, types.KindNoRoute, "GetQuote", errors.New(body))
	}
	return err
}

// BuildSwapInstructions получает инструкции для маршрута через /swap-instructions.
func (a *Adapter) BuildSwapInstructions(ctx context.Context, route types.Route, signer solana.PublicKey) (*dex.SwapInstructions, error) {
	const op = "BuildSwapInstructions"

	data, ok := route.RouteData.(RouteData)
	if !ok || len(data.Raw) == 0 {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindInvalidParams, op, errors.New("route does not carry a Jupiter quote"))
	}

	body := swapInstructionsRequest{
		QuoteResponse:       data.Raw,
		UserPublicKey:       signer.String(),
		WrapAndUnwrapSol:    true,
		AsLegacyTransaction: true,
	}
	var resp swapInstructionsResponse
	if err := a.swap.PostJSON(ctx, op, "/swap-instructions", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindInvalidParams, op, errors.New(resp.Error))
	}
	if resp.SwapInstruction == nil {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, errors.New("response has no swap instruction"))
	}
	if len(resp.AddressLookupTableAddresses) > 0 {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindInvalidParams, op,
			fmt.Errorf("route requires %d address lookup tables", len(resp.AddressLookupTableAddresses)))
	}

	out := &dex.SwapInstructions{}
	var err error
	if out.Setup, err = toInstructions(resp.SetupInstructions); err != nil {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, err)
	}
	swapIx, err := resp.SwapInstruction.toInstruction()
	if err != nil {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, err)
	}
	out.Swap = []solana.Instruction{swapIx}
	others, err := toInstructions(resp.OtherInstructions)
	if err != nil {
		return nil, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, err)
	}
	out.Swap = append(out.Swap, others...)
	if resp.CleanupInstruction != nil {
		cleanup, err := resp.CleanupInstruction.toInstruction()
		if err != nil {
			return nil, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, err)
		}
		out.Cleanup = []solana.Instruction{cleanup}
	}

	a.logger.Debug("swap instructions built",
		zap.Strings("route", data.Labels),
		zap.Int("setup", len(out.Setup)),
		zap.Int("cleanup", len(out.Cleanup)))
	return out, nil
}

func impactPercent(fraction string) float64 {
	d, err := decimal.NewFromString(fraction)
	if err != nil {
		return 0
	}
	pct, _ := d.Abs().Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
