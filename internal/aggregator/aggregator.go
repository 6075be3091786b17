// internal/aggregator/aggregator.go
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/rovshanmuradov/swap-router/internal/utils/metrics"
	"go.uber.org/zap"
)

// Config задает дедлайны и политики агрегации.
type Config struct {
	Deadline    time.Duration `mapstructure:"deadline"`
	GraceMargin time.Duration `mapstructure:"grace_margin"`
	// MaxPriceImpactPct excludes quotes above the threshold; 0 disables the guard.
	MaxPriceImpactPct   float64 `mapstructure:"max_price_impact_pct"`
	PurgeInactiveOrders bool    `mapstructure:"purge_inactive_orders"`
	DefaultSlippageBps  uint16  `mapstructure:"default_slippage_bps"`
}

func DefaultConfig() Config {
	return Config{
		Deadline:            3 * time.Second,
		GraceMargin:         250 * time.Millisecond,
		PurgeInactiveOrders: true,
		DefaultSlippageBps:  50,
	}
}

// FeeCalculator is the part of the fee policy the aggregator needs.
type FeeCalculator interface {
	CalculateFee(notionalSOL float64) float64
}

// PriceSource prices one display unit of a token in SOL.
type PriceSource interface {
	PriceInSOL(ctx context.Context, token types.Token) (float64, error)
}

// BestRoute is the ranked result of one aggregation.
type BestRoute struct {
	Routes []types.Quote
	Best   types.Route
}

// Aggregator fans requests out across the registry and ranks the answers.
type Aggregator struct {
	registry *dex.Registry
	fees     FeeCalculator
	prices   PriceSource
	cfg      Config
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

// New создает агрегатор. prices и collector могут быть nil.
func New(registry *dex.Registry, fees FeeCalculator, prices PriceSource, cfg Config, collector *metrics.Collector, logger *zap.Logger) (*Aggregator, error) {
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if fees == nil {
		return nil, errors.New("fee calculator cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	def := DefaultConfig()
	if cfg.Deadline <= 0 {
		cfg.Deadline = def.Deadline
	}
	if cfg.GraceMargin <= 0 {
		cfg.GraceMargin = def.GraceMargin
	}
	return &Aggregator{
		registry: registry,
		fees:     fees,
		prices:   prices,
		cfg:      cfg,
		metrics:  collector,
		logger:   logger.Named("aggregator"),
		now:      time.Now,
	}, nil
}

// Config returns the effective configuration.
func (a *Aggregator) Config() Config { return a.cfg }

func (a *Aggregator) Registry() *dex.Registry { return a.registry }

// GetBestRoute queries every venue concurrently and ranks the quotes by output
// amount desc, then price impact asc, then registry order. Venues that fail or
// miss the deadline are dropped. deadline <= 0 uses the configured one.
func (a *Aggregator) GetBestRoute(ctx context.Context, in, out types.Token, amount uint64, slippageBps uint16, deadline time.Duration) (*BestRoute, error) {
	const op = "GetBestRoute"
	if err := validateRequest(in, out, amount, slippageBps); err != nil {
		return nil, types.NewError(types.KindValidation, op, err)
	}
	if deadline <= 0 {
		deadline = a.cfg.Deadline
	}
	hardline := time.Now().Add(deadline + a.cfg.GraceMargin)

	req := dex.QuoteRequest{InputToken: in, OutputToken: out, Amount: amount, SlippageBps: slippageBps}
	logger := a.logger.With(zap.String("request", req.String()))

	price := a.startPriceLookup(ctx, in, out, deadline)

	outcomes := fanOut(ctx, op, deadline, a.cfg.GraceMargin, a.registry.Adapters(),
		dex.Adapter.Venue,
		func(ctx context.Context, ad dex.Adapter) (types.Quote, error) {
			return ad.GetQuote(ctx, req)
		})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	quotes := make([]types.Quote, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil && !o.Value.OutputToken.Mint.Equals(out.Mint) {
			o.Err = types.NewVenueError(o.Venue, types.KindInvalidParams, op,
				fmt.Errorf("quote output mint %s, requested %s", o.Value.OutputToken.Mint, out.Mint))
		}
		if o.Err == nil && o.Value.OutputAmount == 0 {
			o.Err = types.NewVenueError(o.Venue, types.KindNoRoute, op, errors.New("zero output"))
		}
		a.record(logger, o.Venue, o.Err, o.Elapsed, o.TimedOut)
		if o.Err != nil {
			continue
		}
		q := o.Value
		q.Venue = o.Venue
		q.SlippageBps = slippageBps
		quotes = append(quotes, q)
	}

	if len(quotes) == 0 {
		return nil, types.Errorf(types.KindNoLiquidity, op, "no venue returned a usable quote for %s", req)
	}

	if a.cfg.MaxPriceImpactPct > 0 {
		kept := quotes[:0:0]
		for _, q := range quotes {
			if q.PriceImpactPct > a.cfg.MaxPriceImpactPct {
				logger.Info("quote excluded by price impact guard",
					zap.String("venue", string(q.Venue)),
					zap.Float64("price_impact_pct", q.PriceImpactPct),
					zap.Float64("max_pct", a.cfg.MaxPriceImpactPct))
				continue
			}
			kept = append(kept, q)
		}
		if len(kept) == 0 {
			return nil, types.Errorf(types.KindPriceImpact, op,
				"all %d quotes exceed %.2f%% price impact", len(quotes), a.cfg.MaxPriceImpactPct)
		}
		quotes = kept
	}

	inputPrice := price.wait(hardline)
	for i, q := range quotes {
		notional := notionalSOL(q, inputPrice)
		quotes[i] = q.WithFee(notional, a.fees.CalculateFee(notional))
	}

	a.rank(quotes)
	best := types.NewRoute(quotes[0])
	logger.Debug("best route selected",
		zap.String("venue", string(best.Venue)),
		zap.Uint64("output", best.OutputAmount),
		zap.Uint64("min_received", best.MinimumReceived),
		zap.Int("quotes", len(quotes)))
	return &BestRoute{Routes: quotes, Best: best}, nil
}

// rank сортирует детерминированно, независимо от порядка прихода ответов.
func (a *Aggregator) rank(quotes []types.Quote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		qi, qj := quotes[i], quotes[j]
		if qi.OutputAmount != qj.OutputAmount {
			return qi.OutputAmount > qj.OutputAmount
		}
		if qi.PriceImpactPct != qj.PriceImpactPct {
			return qi.PriceImpactPct < qj.PriceImpactPct
		}
		return a.registry.Index(qi.Venue) < a.registry.Index(qj.Venue)
	})
}

func (a *Aggregator) record(logger *zap.Logger, venue types.Venue, err error, elapsed time.Duration, timedOut bool) {
	outcome := metrics.OutcomeOK
	switch {
	case timedOut:
		outcome = metrics.OutcomeTimeout
	case err != nil:
		outcome = metrics.OutcomeError
	}
	a.metrics.ObserveQuote(string(venue), outcome, elapsed)
	if err == nil {
		return
	}
	kind := types.KindOf(err)
	a.metrics.VenueFailure(string(venue), string(kind))
	logger.Warn("venue dropped",
		zap.String("venue", string(venue)),
		zap.String("kind", string(kind)),
		zap.Bool("timed_out", timedOut),
		zap.Duration("elapsed", elapsed),
		zap.Error(err))
}

func validateRequest(in, out types.Token, amount uint64, slippageBps uint16) error {
	if amount == 0 {
		return errors.New("amount must be positive")
	}
	if err := in.Validate(); err != nil {
		return fmt.Errorf("input token: %w", err)
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("output token: %w", err)
	}
	if in.Mint.Equals(out.Mint) {
		return errors.New("input and output tokens are the same")
	}
	return types.ValidateSlippageBps(slippageBps)
}

// notionalSOL expresses the quote input in SOL; 0 when no conversion is known.
func notionalSOL(q types.Quote, inputPriceSOL float64) float64 {
	switch {
	case q.InputToken.IsSOL():
		v, _ := q.InputToken.ToDisplay(q.InputAmount).Float64()
		return v
	case q.OutputToken.IsSOL():
		v, _ := q.OutputToken.ToDisplay(q.OutputAmount).Float64()
		return v
	case inputPriceSOL > 0:
		v, _ := q.InputToken.ToDisplay(q.InputAmount).Float64()
		return v * inputPriceSOL
	default:
		return 0
	}
}

// Notional expresses a trade of inAmount for outAmount in SOL, for fee sizing
// outside of GetBestRoute (limit orders). 0 when no conversion is known.
func (a *Aggregator) Notional(ctx context.Context, in, out types.Token, inAmount, outAmount uint64) float64 {
	var price float64
	if a.prices != nil && !in.IsSOL() && !out.IsSOL() {
		p, err := a.prices.PriceInSOL(ctx, in)
		if err != nil {
			a.logger.Debug("settlement price unavailable", zap.String("token", in.String()), zap.Error(err))
		} else {
			price = p
		}
	}
	return notionalSOL(types.Quote{InputToken: in, OutputToken: out, InputAmount: inAmount, OutputAmount: outAmount}, price)
}

type priceLookup struct {
	ch chan float64
}

// startPriceLookup prices the input token alongside the venue calls when
// neither side of the pair is SOL.
func (a *Aggregator) startPriceLookup(ctx context.Context, in, out types.Token, deadline time.Duration) priceLookup {
	if a.prices == nil || in.IsSOL() || out.IsSOL() {
		return priceLookup{}
	}
	ch := make(chan float64, 1)
	go func() {
		pctx, cancel := context.WithTimeout(ctx, deadline)
		defer cancel()
		p, err := a.prices.PriceInSOL(pctx, in)
		if err != nil {
			a.logger.Debug("settlement price unavailable, minimum fee applies",
				zap.String("token", in.String()), zap.Error(err))
			p = 0
		}
		ch <- p
	}()
	return priceLookup{ch: ch}
}

func (p priceLookup) wait(hardline time.Time) float64 {
	if p.ch == nil {
		return 0
	}
	timer := time.NewTimer(time.Until(hardline))
	defer timer.Stop()
	select {
	case v := <-p.ch:
		return v
	case <-timer.C:
		return 0
	}
}
