package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rovshanmuradov/swap-router/internal/transaction"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimal = `
rpc_url: "http://localhost:8899"
tokens:
  usdc:
    mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
    decimals: 6
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimal), nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8899", cfg.RPCURL)
	assert.Equal(t, 3*time.Second, cfg.Aggregator.Deadline)
	assert.Equal(t, 250*time.Millisecond, cfg.Aggregator.GraceMargin)
	assert.True(t, cfg.Aggregator.PurgeInactiveOrders)
	assert.Equal(t, uint16(50), cfg.Aggregator.DefaultSlippageBps)
	assert.Equal(t, 30*time.Second, cfg.OrderRefreshInterval)
	assert.Equal(t, 3, cfg.Execution.MaxSubmitRetries)
	assert.Equal(t, []string{"jupiter", "raydium", "orca", "meteora"}, cfg.Venues.Enabled)

	fc, err := cfg.FeeConfig()
	require.NoError(t, err)
	assert.Equal(t, transaction.DefaultFeeConfig(), fc)
}

func TestLoadConfigSampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", DefaultConfigPath), nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.Aggregator.MaxPriceImpactPct)
	assert.Len(t, cfg.Venues.Orca.Pools, 1)

	usdc, err := cfg.Token("usdc")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), usdc.Decimals)
	assert.Equal(t, "USDC", usdc.Symbol)

	sol, err := cfg.Token("SOL")
	require.NoError(t, err)
	assert.True(t, sol.IsSOL())

	_, err = cfg.Token("DOGE")
	assert.Error(t, err)
}

func TestLoadConfigEnvAndFlags(t *testing.T) {
	t.Setenv("SWAP_ROUTER_RPC_URL", "https://rpc.example.com")
	t.Setenv("SWAP_ROUTER_FEES_FEE_BPS", "10")
	t.Setenv("SWAP_ROUTER_VENUES_ENABLED", "orca,jupiter")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--priority=high", "--deadline=1500ms"}))

	cfg, err := LoadConfig(writeConfig(t, minimal), fs)
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.com", cfg.RPCURL)
	assert.Equal(t, uint16(10), cfg.Fees.FeeBps)
	assert.Equal(t, []string{"orca", "jupiter"}, cfg.Venues.Enabled)
	assert.Equal(t, string(types.PriorityHigh), cfg.Priority)
	assert.Equal(t, 1500*time.Millisecond, cfg.Aggregator.Deadline)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	body := `
rpc_url: "ftp://nowhere"
commitment: eventually
fees:
  min_fee_sol: 2
  max_fee_sol: 1
tokens:
  bad:
    mint: "not-a-key"
`
	_, err := LoadConfig(writeConfig(t, body), nil)
	require.Error(t, err)
	assert.GreaterOrEqual(t, len(multierr.Errors(err)), 4)
	assert.Contains(t, err.Error(), "rpc_url")
	assert.Contains(t, err.Error(), "commitment")
	assert.Contains(t, err.Error(), "fees")
	assert.Contains(t, err.Error(), "tokens.bad.mint")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}
