// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rovshanmuradov/swap-router/internal/aggregator"
	"github.com/rovshanmuradov/swap-router/internal/dex/jupiter"
	"github.com/rovshanmuradov/swap-router/internal/dex/meteora"
	"github.com/rovshanmuradov/swap-router/internal/dex/orca"
	"github.com/rovshanmuradov/swap-router/internal/dex/raydium"
	"github.com/rovshanmuradov/swap-router/internal/execution"
	"github.com/rovshanmuradov/swap-router/internal/transaction"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/rovshanmuradov/swap-router/internal/utils/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	DefaultConfigPath = "configs/config.yaml"
	EnvPrefix         = "SWAP_ROUTER"
)

type Config struct {
	RPCURL               string                 `mapstructure:"rpc_url"`
	Commitment           string                 `mapstructure:"commitment"`
	SkipPreflight        bool                   `mapstructure:"skip_preflight"`
	Priority             string                 `mapstructure:"priority"`
	HTTPTimeout          time.Duration          `mapstructure:"http_timeout"`
	OrderRefreshInterval time.Duration          `mapstructure:"order_refresh_interval"`
	Fees                 FeesConfig             `mapstructure:"fees"`
	Aggregator           aggregator.Config      `mapstructure:"aggregator"`
	Execution            execution.Config       `mapstructure:"execution"`
	Venues               VenuesConfig           `mapstructure:"venues"`
	Tokens               map[string]TokenConfig `mapstructure:"tokens"`
	Log                  logger.Config          `mapstructure:"log"`
}

// FeesConfig - протокольная комиссия. Неизменяема после загрузки.
type FeesConfig struct {
	FeeBps       uint16  `mapstructure:"fee_bps"`
	MinFeeSOL    float64 `mapstructure:"min_fee_sol"`
	MaxFeeSOL    float64 `mapstructure:"max_fee_sol"`
	FeeRecipient string  `mapstructure:"fee_recipient"`
}

type VenuesConfig struct {
	Enabled []string       `mapstructure:"enabled"`
	Jupiter jupiter.Config `mapstructure:"jupiter"`
	Raydium raydium.Config `mapstructure:"raydium"`
	Orca    orca.Config    `mapstructure:"orca"`
	Meteora meteora.Config `mapstructure:"meteora"`
}

// TokenConfig describes a statically configured token, keyed by symbol.
type TokenConfig struct {
	Mint     string `mapstructure:"mint"`
	Decimals uint8  `mapstructure:"decimals"`
	Name     string `mapstructure:"name"`
}

// RegisterFlags adds the flags that override file values.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("rpc-url", "", "Solana RPC endpoint")
	fs.String("priority", "", "priority fee level: none, low, medium, high, extreme")
	fs.Duration("deadline", 0, "venue quote deadline")
	fs.Bool("log-development", false, "debug logging")
}

var flagKeys = map[string]string{
	"rpc-url":         "rpc_url",
	"priority":        "priority",
	"deadline":        "aggregator.deadline",
	"log-development": "log.development",
}

// LoadConfig reads the file at path, then applies SWAP_ROUTER_* environment
// variables and, when fs is not nil, the flags set on the command line.
func LoadConfig(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = DefaultConfigPath
	}
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			f := fs.Lookup(flag)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"rpc_url":                "https://api.mainnet-beta.solana.com",
		"commitment":             string(rpc.CommitmentConfirmed),
		"priority":               string(types.PriorityNone),
		"http_timeout":           "10s",
		"order_refresh_interval": "30s",

		"fees.fee_bps":       30,
		"fees.min_fee_sol":   0.001,
		"fees.max_fee_sol":   1.0,
		"fees.fee_recipient": transaction.DefaultFeeRecipient.String(),

		"aggregator.deadline":              "3s",
		"aggregator.grace_margin":          "250ms",
		"aggregator.max_price_impact_pct":  0.0,
		"aggregator.purge_inactive_orders": true,
		"aggregator.default_slippage_bps":  50,

		"execution.max_submit_retries": 3,
		"execution.initial_backoff":    "500ms",
		"execution.max_backoff":        "4s",
		"execution.confirm_timeout":    "60s",

		"venues.enabled": []string{"jupiter", "raydium", "orca", "meteora"},

		"log.file":        "swap-router.log",
		"log.max_size":    100,
		"log.max_age":     7,
		"log.max_backups": 3,
		"log.compress":    true,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var err error
	if u, perr := url.Parse(c.RPCURL); perr != nil || !strings.HasPrefix(u.Scheme, "http") {
		err = multierr.Append(err, fmt.Errorf("rpc_url %q must be an http(s) URL", c.RPCURL))
	}
	switch rpc.CommitmentType(c.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown commitment %q", c.Commitment))
	}
	if _, perr := types.ParsePriorityLevel(c.Priority); perr != nil {
		err = multierr.Append(err, perr)
	}
	if _, ferr := c.FeeConfig(); ferr != nil {
		err = multierr.Append(err, ferr)
	}
	if c.Aggregator.Deadline <= 0 {
		err = multierr.Append(err, errors.New("aggregator.deadline must be positive"))
	}
	if c.Aggregator.GraceMargin < 0 {
		err = multierr.Append(err, errors.New("aggregator.grace_margin cannot be negative"))
	}
	if c.Aggregator.MaxPriceImpactPct < 0 || c.Aggregator.MaxPriceImpactPct > 100 {
		err = multierr.Append(err, errors.New("aggregator.max_price_impact_pct must be within [0, 100]"))
	}
	if verr := types.ValidateSlippageBps(c.Aggregator.DefaultSlippageBps); verr != nil {
		err = multierr.Append(err, fmt.Errorf("aggregator.default_slippage_bps: %w", verr))
	}
	if c.Execution.MaxSubmitRetries < 0 {
		err = multierr.Append(err, errors.New("execution.max_submit_retries cannot be negative"))
	}
	if c.Execution.ConfirmTimeout <= 0 {
		err = multierr.Append(err, errors.New("execution.confirm_timeout must be positive"))
	}
	if c.OrderRefreshInterval <= 0 {
		err = multierr.Append(err, errors.New("order_refresh_interval must be positive"))
	}
	if len(c.Venues.Enabled) == 0 {
		err = multierr.Append(err, errors.New("venues.enabled is empty"))
	}
	if _, terr := c.TokenList(); terr != nil {
		err = multierr.Append(err, terr)
	}
	return err
}

// FeeConfig converts the fees section into the fee policy configuration.
func (c *Config) FeeConfig() (transaction.FeeConfig, error) {
	recipient, err := solana.PublicKeyFromBase58(c.Fees.FeeRecipient)
	if err != nil {
		return transaction.FeeConfig{}, fmt.Errorf("fees.fee_recipient: %w", err)
	}
	fc := transaction.FeeConfig{
		FeeBps:       c.Fees.FeeBps,
		MinFeeSOL:    c.Fees.MinFeeSOL,
		MaxFeeSOL:    c.Fees.MaxFeeSOL,
		FeeRecipient: recipient,
	}
	if err := fc.Validate(); err != nil {
		return transaction.FeeConfig{}, fmt.Errorf("fees: %w", err)
	}
	return fc, nil
}

// TokenList returns the configured tokens; SOL is always present.
func (c *Config) TokenList() ([]types.Token, error) {
	tokens := []types.Token{types.NativeSOL}
	var err error
	for symbol, tc := range c.Tokens {
		mint, perr := solana.PublicKeyFromBase58(tc.Mint)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("tokens.%s.mint: %w", symbol, perr))
			continue
		}
		t := types.Token{Symbol: strings.ToUpper(symbol), Name: tc.Name, Mint: mint, Decimals: tc.Decimals}
		if t.IsSOL() {
			continue
		}
		if verr := t.Validate(); verr != nil {
			err = multierr.Append(err, verr)
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens, err
}

// Token resolves a symbol or a mint address.
func (c *Config) Token(symbolOrMint string) (types.Token, error) {
	tokens, err := c.TokenList()
	if err != nil {
		return types.Token{}, err
	}
	for _, t := range tokens {
		if strings.EqualFold(t.Symbol, symbolOrMint) || t.Mint.String() == symbolOrMint {
			return t, nil
		}
	}
	return types.Token{}, fmt.Errorf("unknown token %q", symbolOrMint)
}
