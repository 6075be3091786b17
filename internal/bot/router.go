// internal/bot/router.go
package bot

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rovshanmuradov/swap-router/internal/aggregator"
	"github.com/rovshanmuradov/swap-router/internal/blockchain"
	"github.com/rovshanmuradov/swap-router/internal/blockchain/solbc"
	"github.com/rovshanmuradov/swap-router/internal/config"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/execution"
	"github.com/rovshanmuradov/swap-router/internal/monitor"
	"github.com/rovshanmuradov/swap-router/internal/transaction"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/rovshanmuradov/swap-router/internal/utils/metrics"
	"go.uber.org/zap"
)

// Wallet signs on behalf of the account that pays for and owns a trade.
type Wallet interface {
	execution.Signer
	Account() solana.PublicKey
}

// Router wires the RPC client, venues, fee policy, aggregator, assembler and
// executor into the operations a caller needs.
type Router struct {
	cfg        *config.Config
	chain      blockchain.Client
	registry   *dex.Registry
	fees       *transaction.FeePolicy
	aggregator *aggregator.Aggregator
	assembler  *transaction.Assembler
	metrics    *metrics.Collector
	shutdown   *ShutdownHandler
	logger     *zap.Logger
}

// NewRouter builds a Router against the configured RPC endpoint. reg may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	chain := solbc.NewClient(cfg.RPCURL, blockchain.TransactionOptions{
		SkipPreflight:       cfg.SkipPreflight,
		PreflightCommitment: rpc.CommitmentType(cfg.Commitment),
	}, logger)
	factory, err := newFactory(cfg.Venues)
	if err != nil {
		return nil, err
	}
	return newRouter(cfg, chain, factory, dex.NewHTTPTransport(cfg.HTTPTimeout), logger, reg)
}

func newRouter(cfg *config.Config, chain blockchain.Client, factory *dex.Factory, httpClient *http.Client, logger *zap.Logger, reg prometheus.Registerer) (*Router, error) {
	tokens, err := cfg.TokenList()
	if err != nil {
		return nil, err
	}
	feeCfg, err := cfg.FeeConfig()
	if err != nil {
		return nil, err
	}
	fees, err := transaction.NewFeePolicy(feeCfg)
	if err != nil {
		return nil, err
	}
	priority, err := types.ParsePriorityLevel(cfg.Priority)
	if err != nil {
		return nil, err
	}
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	deps := dex.Deps{
		Accounts:   chain,
		Tokens:     dex.NewStaticTokens(tokens...),
		HTTPClient: httpClient,
		Logger:     logger,
	}
	registry, err := factory.Build(cfg.Venues.Enabled, deps)
	if err != nil {
		return nil, err
	}
	agg, err := aggregator.New(registry, fees, priceSource(registry, cfg.Venues.Jupiter, deps), cfg.Aggregator, collector, logger)
	if err != nil {
		return nil, err
	}

	r := &Router{
		cfg:        cfg,
		chain:      chain,
		registry:   registry,
		fees:       fees,
		aggregator: agg,
		assembler:  transaction.NewAssembler(registry, fees, priority, logger),
		metrics:    collector,
		shutdown:   NewShutdownHandler(logger, 0),
		logger:     logger.Named("router"),
	}
	_ = r.shutdown.AddFunc("http-transport", func() error {
		httpClient.CloseIdleConnections()
		return nil
	})
	r.logger.Info("Router ready",
		zap.Strings("venues", venueNames(registry.Venues())),
		zap.String("priority", string(priority)),
		zap.String("fee_recipient", fees.Recipient().String()))
	return r, nil
}

func venueNames(venues []types.Venue) []string {
	names := make([]string, len(venues))
	for i, v := range venues {
		names[i] = string(v)
	}
	return names
}

// Venues lists the enabled venues in priority order.
func (r *Router) Venues() []types.Venue { return r.registry.Venues() }

// Fees returns the immutable fee configuration.
func (r *Router) Fees() transaction.FeeConfig { return r.fees.Config() }

// Shutdown exposes the handler so callers can register their own components.
func (r *Router) Shutdown() *ShutdownHandler { return r.shutdown }

// Token resolves a configured symbol or mint.
func (r *Router) Token(symbolOrMint string) (types.Token, error) {
	t, err := r.cfg.Token(symbolOrMint)
	if err != nil {
		return types.Token{}, types.NewError(types.KindValidation, "Token", err)
	}
	return t, nil
}

// Quote returns every venue quote for the pair with the best one on top.
func (r *Router) Quote(ctx context.Context, in, out types.Token, amount uint64, slippageBps uint16) (*aggregator.BestRoute, error) {
	return r.aggregator.GetBestRoute(ctx, in, out, amount, slippageBps, 0)
}

// QuoteSession returns a session where each refresh supersedes the previous one.
func (r *Router) QuoteSession() *aggregator.Session {
	return r.aggregator.NewSession()
}

// Swap assembles route for the wallet and runs it to a terminal state.
func (r *Router) Swap(ctx context.Context, route types.Route, w Wallet) (*execution.Result, error) {
	ptx, err := r.assembler.AssembleSwap(ctx, route, w.Account())
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, w, ptx)
}

// SwapBest quotes the pair and executes the best route.
func (r *Router) SwapBest(ctx context.Context, in, out types.Token, amount uint64, slippageBps uint16, w Wallet) (*execution.Result, error) {
	best, err := r.Quote(ctx, in, out, amount, slippageBps)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Executing best route",
		zap.String("venue", string(best.Best.Venue)),
		zap.Uint64("output", best.Best.OutputAmount),
		zap.Uint64("min_received", best.Best.MinimumReceived),
		zap.Float64("fee_sol", best.Best.FeeSOL))
	return r.Swap(ctx, best.Best, w)
}

// OrderBook merges the book of every venue that exposes one.
func (r *Router) OrderBook(ctx context.Context, in, out types.Token) (types.OrderBook, error) {
	return r.aggregator.GetOrderBook(ctx, in, out, 0)
}

// OpenOrders lists the owner's resting orders across venues.
func (r *Router) OpenOrders(ctx context.Context, owner solana.PublicKey) ([]types.Order, error) {
	return r.aggregator.GetOpenOrders(ctx, owner, 0)
}

// PlaceLimitOrder places req from the wallet. The fee follows the order notional.
func (r *Router) PlaceLimitOrder(ctx context.Context, w Wallet, req dex.OrderRequest) (*execution.Result, error) {
	const op = "PlaceLimitOrder"
	if req.Owner.IsZero() {
		req.Owner = w.Account()
	}
	if !req.Owner.Equals(w.Account()) {
		return nil, types.Errorf(types.KindValidation, op, "order owner %s is not the signing wallet", req.Owner)
	}
	if err := req.Validate(); err != nil {
		return nil, types.NewVenueError(req.Venue, types.KindValidation, op, err)
	}

	notional := r.aggregator.Notional(ctx, req.InputToken, req.OutputToken, req.InputAmount, req.OutputAmount)
	ptx, err := r.assembler.AssemblePlaceOrder(ctx, req, notional)
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, w, ptx)
}

// CancelOrder cancels one of the wallet's orders for the flat minimum fee.
func (r *Router) CancelOrder(ctx context.Context, w Wallet, order types.Order) (*execution.Result, error) {
	const op = "CancelOrder"
	if order.ID == "" {
		return nil, types.Errorf(types.KindValidation, op, "order id is empty")
	}
	if !order.Owner.IsZero() && !order.Owner.Equals(w.Account()) {
		return nil, types.Errorf(types.KindValidation, op, "order %s belongs to %s", order.Key(), order.Owner)
	}
	ptx, err := r.assembler.AssembleCancelOrder(ctx, order, w.Account())
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, w, ptx)
}

// Transfer sends amount base units of token from the wallet to another account,
// creating the recipient's token account when needed. It pays the flat fee.
func (r *Router) Transfer(ctx context.Context, w Wallet, token types.Token, to solana.PublicKey, amount uint64) (*execution.Result, error) {
	ptx, err := r.assembler.AssembleTransfer(ctx, r.chain, transaction.TransferRequest{
		Token:  token,
		From:   w.Account(),
		To:     to,
		Amount: amount,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("Sending transfer",
		zap.String("token", token.Symbol),
		zap.Stringer("to", to),
		zap.Uint64("amount", amount))
	return r.execute(ctx, w, ptx)
}

func (r *Router) execute(ctx context.Context, w Wallet, ptx *types.PendingTransaction) (*execution.Result, error) {
	coord, err := execution.NewCoordinator(w, r.chain, transaction.NewValidator(r.fees.Recipient()), r.cfg.Execution, r.metrics, r.logger)
	if err != nil {
		return nil, err
	}
	return coord.Execute(ctx, ptx)
}

// WatchOrders starts a refresher for cfg.Owner. Interval defaults to the
// configured order refresh interval; when a pair is set the merged book is
// refreshed as well. The refresher stops on Router shutdown.
func (r *Router) WatchOrders(ctx context.Context, cfg monitor.RefresherConfig) (*monitor.OrderRefresher, error) {
	const op = "WatchOrders"
	if r.shutdown.Closed() {
		return nil, types.NewError(types.KindUnavailable, op, ErrShutdownStarted)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = r.cfg.OrderRefreshInterval
	}
	if cfg.Book == nil && !cfg.Input.Mint.IsZero() && !cfg.Output.Mint.IsZero() {
		cfg.Book = r.aggregator
	}
	rf, err := monitor.NewOrderRefresher(r.aggregator, cfg, r.logger)
	if err != nil {
		return nil, types.NewError(types.KindValidation, op, err)
	}
	if err := rf.Start(ctx); err != nil {
		return nil, err
	}
	// Close may have run between the check above and here
	if err := r.shutdown.AddFunc("orders:"+cfg.Owner.String(), func() error {
		rf.Stop()
		return nil
	}); err != nil {
		rf.Stop()
		return nil, types.NewError(types.KindUnavailable, op, err)
	}
	return rf, nil
}

// FeeRecipientBalance returns the fee recipient balance in SOL.
func (r *Router) FeeRecipientBalance(ctx context.Context) (float64, error) {
	lamports, err := r.chain.GetBalance(ctx, r.fees.Recipient())
	if err != nil {
		return 0, types.NewError(types.KindUnavailable, "FeeRecipientBalance", err)
	}
	sol, _ := types.NativeSOL.ToDisplay(lamports).Float64()
	return sol, nil
}

// Close stops watchers and releases connections.
func (r *Router) Close(ctx context.Context) error {
	return r.shutdown.Shutdown(ctx)
}
