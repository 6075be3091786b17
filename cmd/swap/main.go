// ====================================
// File: cmd/swap/main.go
// ====================================
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-router/internal/bot"
	"github.com/rovshanmuradov/swap-router/internal/config"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/monitor"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/rovshanmuradov/swap-router/internal/utils/logger"
	"github.com/rovshanmuradov/swap-router/internal/wallet"
)

const usage = `usage: swap [flags] <command> [args]

commands:
  quote <in> <out> <amount>                 rank venue quotes
  swap <in> <out> <amount>                  execute the best route
  orderbook <in> <out>                      merged order book
  orders                                    open orders of the wallet (or --owner)
  place <venue> <in> <out> <in-amt> <out-amt>  place a limit order
  cancel <venue> <order-id>                 cancel an open order
  send <token> <recipient> <amount>         transfer SOL or an SPL token
  watch                                     poll open orders until interrupted
  balance                                   fee recipient balance

amounts are in display units, tokens are symbols or mints.
`

type cli struct {
	router  *bot.Router
	logger  *logger.Logger
	fs      *pflag.FlagSet
	slip    uint16
	owner   string
	expiry  time.Duration
	metrics string
	wallets string
	name    string
}

func main() {
	fs := pflag.NewFlagSet("swap", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", config.DefaultConfigPath, "path to the config file")
	c := &cli{fs: fs}
	fs.Uint16Var(&c.slip, "slippage", 0, "slippage tolerance in bps (default from config)")
	fs.StringVar(&c.owner, "owner", "", "order owner for orders/watch")
	fs.DurationVar(&c.expiry, "expiry", 0, "limit order lifetime, 0 is good-till-cancelled")
	fs.StringVar(&c.metrics, "metrics-addr", "", "serve prometheus metrics on this address")
	fs.StringVar(&c.wallets, "wallets", "", "CSV file with name,private_key rows")
	fs.StringVar(&c.name, "wallet", "", "wallet name in --wallets")
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	c.logger = log
	if c.slip == 0 {
		c.slip = cfg.Aggregator.DefaultSlippageBps
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router, err := bot.NewRouter(cfg, log.Logger, reg)
	if err != nil {
		log.Fatal("Failed to initialize router", zap.Error(err))
	}
	c.router = router

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if c.metrics != "" {
		srv := &http.Server{Addr: c.metrics, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithComponent("metrics").Error("Metrics server stopped", zap.Error(err))
			}
		}()
		_ = router.Shutdown().AddFunc("metrics-server", func() error {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	runErr := c.run(ctx, args[0], args[1:])
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := router.Close(closeCtx); err != nil {
		log.Warn("Shutdown finished with errors", zap.Error(err))
	}
	if runErr != nil {
		log.Error("Command failed",
			zap.String("command", args[0]),
			zap.String("remediation", string(types.RemediationFor(runErr))),
			zap.Error(runErr))
		_ = log.Sync()
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "quote":
		return c.quote(ctx, args)
	case "swap":
		return c.swap(ctx, args)
	case "orderbook":
		return c.orderBook(ctx, args)
	case "orders":
		return c.orders(ctx)
	case "place":
		return c.place(ctx, args)
	case "cancel":
		return c.cancel(ctx, args)
	case "send":
		return c.send(ctx, args)
	case "watch":
		return c.watch(ctx)
	case "balance":
		bal, err := c.router.FeeRecipientBalance(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s SOL\n", c.router.Fees().FeeRecipient, strconv.FormatFloat(bal, 'f', 9, 64))
		return nil
	default:
		c.fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func need(args []string, n int, form string) error {
	if len(args) != n {
		return types.Errorf(types.KindValidation, "args", "expected %s", form)
	}
	return nil
}

func (c *cli) pair(in, out string) (types.Token, types.Token, error) {
	tin, err := c.router.Token(in)
	if err != nil {
		return types.Token{}, types.Token{}, err
	}
	tout, err := c.router.Token(out)
	if err != nil {
		return types.Token{}, types.Token{}, err
	}
	return tin, tout, nil
}

func amount(t types.Token, s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, types.NewError(types.KindValidation, "amount", err)
	}
	v, err := t.FromDisplay(d)
	if err != nil {
		return 0, types.NewError(types.KindValidation, "amount", err)
	}
	return v, nil
}

func (c *cli) wallet() (*wallet.Wallet, error) {
	if c.wallets != "" {
		ws, err := wallet.LoadWallets(c.wallets)
		if err != nil {
			return nil, types.NewError(types.KindValidation, "wallet", err)
		}
		w, ok := ws[c.name]
		if !ok {
			return nil, types.Errorf(types.KindValidation, "wallet", "wallet %q not found in %s", c.name, c.wallets)
		}
		return w, nil
	}
	key := os.Getenv(config.EnvPrefix + "_PRIVATE_KEY")
	if key == "" {
		return nil, types.Errorf(types.KindValidation, "wallet", "set --wallets/--wallet or %s_PRIVATE_KEY", config.EnvPrefix)
	}
	w, err := wallet.NewWallet(key)
	if err != nil {
		return nil, types.NewError(types.KindValidation, "wallet", err)
	}
	return w, nil
}

func (c *cli) ownerKey() (solana.PublicKey, error) {
	if c.owner != "" {
		pk, err := solana.PublicKeyFromBase58(c.owner)
		if err != nil {
			return solana.PublicKey{}, types.NewError(types.KindValidation, "owner", err)
		}
		return pk, nil
	}
	w, err := c.wallet()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return w.Account(), nil
}

func (c *cli) quote(ctx context.Context, args []string) error {
	if err := need(args, 3, "quote <in> <out> <amount>"); err != nil {
		return err
	}
	in, out, err := c.pair(args[0], args[1])
	if err != nil {
		return err
	}
	amt, err := amount(in, args[2])
	if err != nil {
		return err
	}
	defer c.logger.TrackPerformance("quote")()

	best, err := c.router.Quote(ctx, in, out, amt, c.slip)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VENUE\tOUTPUT\tIMPACT %\tFEE SOL")
	for _, q := range best.Routes {
		fmt.Fprintf(tw, "%s\t%s %s\t%.4f\t%.6f\n", q.Venue, out.ToDisplay(q.OutputAmount), out.Symbol, q.PriceImpactPct, q.FeeSOL)
	}
	_ = tw.Flush()
	fmt.Printf("best: %s, minimum received %s %s\n", best.Best.Venue, out.ToDisplay(best.Best.MinimumReceived), out.Symbol)
	return nil
}

func (c *cli) swap(ctx context.Context, args []string) error {
	if err := need(args, 3, "swap <in> <out> <amount>"); err != nil {
		return err
	}
	w, err := c.wallet()
	if err != nil {
		return err
	}
	in, out, err := c.pair(args[0], args[1])
	if err != nil {
		return err
	}
	amt, err := amount(in, args[2])
	if err != nil {
		return err
	}
	log := c.logger.WithOperation("swap")
	res, err := c.router.SwapBest(ctx, in, out, amt, c.slip, w)
	if res != nil {
		log.Info("Swap finished",
			zap.String("execution_id", res.ID),
			zap.String("venue", string(res.Venue)),
			zap.String("state", string(res.State)),
			zap.Stringer("signature", res.Signature))
	}
	if err != nil {
		return err
	}
	fmt.Println(res.Signature)
	return nil
}

func (c *cli) orderBook(ctx context.Context, args []string) error {
	if err := need(args, 2, "orderbook <in> <out>"); err != nil {
		return err
	}
	in, out, err := c.pair(args[0], args[1])
	if err != nil {
		return err
	}
	book, err := c.router.OrderBook(ctx, in, out)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SIDE\tPRICE\tAMOUNT\tVENUE\tID")
	for _, o := range book.Bids {
		fmt.Fprintf(tw, "bid\t%s\t%s\t%s\t%s\n", o.Price, o.InputToken.ToDisplay(o.InputAmount), o.Venue, o.ID)
	}
	for _, o := range book.Asks {
		fmt.Fprintf(tw, "ask\t%s\t%s\t%s\t%s\n", o.Price, o.InputToken.ToDisplay(o.InputAmount), o.Venue, o.ID)
	}
	return tw.Flush()
}

func printOrders(orders []types.Order) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSELL\tBUY\tSTATUS\tEXPIRY")
	for _, o := range orders {
		expiry := "-"
		if !o.Expiry.IsZero() {
			expiry = o.Expiry.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s %s\t%s\t%s\n", o.Key(),
			o.InputToken.ToDisplay(o.InputAmount), o.InputToken.Symbol,
			o.OutputToken.ToDisplay(o.OutputAmount), o.OutputToken.Symbol,
			o.Status, expiry)
	}
	_ = tw.Flush()
}

func (c *cli) orders(ctx context.Context) error {
	owner, err := c.ownerKey()
	if err != nil {
		return err
	}
	orders, err := c.router.OpenOrders(ctx, owner)
	if err != nil {
		return err
	}
	printOrders(orders)
	return nil
}

func (c *cli) place(ctx context.Context, args []string) error {
	if err := need(args, 5, "place <venue> <in> <out> <in-amt> <out-amt>"); err != nil {
		return err
	}
	w, err := c.wallet()
	if err != nil {
		return err
	}
	in, out, err := c.pair(args[1], args[2])
	if err != nil {
		return err
	}
	inAmt, err := amount(in, args[3])
	if err != nil {
		return err
	}
	outAmt, err := amount(out, args[4])
	if err != nil {
		return err
	}
	req := dex.OrderRequest{
		Venue:        types.Venue(strings.ToLower(args[0])),
		Owner:        w.Account(),
		InputToken:   in,
		OutputToken:  out,
		InputAmount:  inAmt,
		OutputAmount: outAmt,
	}
	if c.expiry > 0 {
		req.Expiry = time.Now().Add(c.expiry)
	}
	res, err := c.router.PlaceLimitOrder(ctx, w, req)
	if err != nil {
		return err
	}
	fmt.Println(res.Signature)
	return nil
}

func (c *cli) cancel(ctx context.Context, args []string) error {
	if err := need(args, 2, "cancel <venue> <order-id>"); err != nil {
		return err
	}
	w, err := c.wallet()
	if err != nil {
		return err
	}
	orders, err := c.router.OpenOrders(ctx, w.Account())
	if err != nil {
		return err
	}
	key := strings.ToLower(args[0]) + ":" + args[1]
	for _, o := range orders {
		if o.Key() != key {
			continue
		}
		res, err := c.router.CancelOrder(ctx, w, o)
		if err != nil {
			return err
		}
		fmt.Println(res.Signature)
		return nil
	}
	return types.Errorf(types.KindValidation, "cancel", "no open order %s", key)
}

func (c *cli) send(ctx context.Context, args []string) error {
	if err := need(args, 3, "send <token> <recipient> <amount>"); err != nil {
		return err
	}
	w, err := c.wallet()
	if err != nil {
		return err
	}
	tok, err := c.router.Token(args[0])
	if err != nil {
		return err
	}
	to, err := solana.PublicKeyFromBase58(args[1])
	if err != nil {
		return types.NewError(types.KindValidation, "recipient", err)
	}
	amt, err := amount(tok, args[2])
	if err != nil {
		return err
	}
	res, err := c.router.Transfer(ctx, w, tok, to, amt)
	if err != nil {
		return err
	}
	fmt.Println(res.Signature)
	return nil
}

func (c *cli) watch(ctx context.Context) error {
	owner, err := c.ownerKey()
	if err != nil {
		return err
	}
	rf, err := c.router.WatchOrders(ctx, monitor.RefresherConfig{Owner: owner})
	if err != nil {
		return err
	}
	go func() {
		for snap := range rf.Updates() {
			if snap.Err != nil {
				c.logger.Warn("Order refresh failed", zap.Error(snap.Err))
				continue
			}
			fmt.Printf("-- %s\n", snap.UpdatedAt.Format(time.TimeOnly))
			printOrders(snap.Orders)
		}
	}()
	return c.router.Shutdown().Wait(ctx)
}
