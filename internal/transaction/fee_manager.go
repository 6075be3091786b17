// internal/transaction/fee_manager.go
package transaction

import (
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/shopspring/decimal"
)

const bpsDenominator = 10_000

// DefaultFeeRecipient получает протокольную комиссию.
var DefaultFeeRecipient = solana.MustPublicKeyFromBase58("6zkf4DviZZkpWVEh53MrcQV6vGXGpESnNXgAvU6KpBUH")

// FeeConfig is the process-wide protocol fee configuration.
type FeeConfig struct {
	FeeBps       uint16
	MinFeeSOL    float64
	MaxFeeSOL    float64
	FeeRecipient solana.PublicKey
}

// DefaultFeeConfig returns 0.3% bounded to [0.001, 1.0] SOL.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		FeeBps:       30,
		MinFeeSOL:    0.001,
		MaxFeeSOL:    1.0,
		FeeRecipient: DefaultFeeRecipient,
	}
}

// Validate checks the config invariants.
func (c FeeConfig) Validate() error {
	switch {
	case math.IsNaN(c.MinFeeSOL) || math.IsNaN(c.MaxFeeSOL):
		return errors.New("fee bounds must be numbers")
	case c.MinFeeSOL < 0:
		return fmt.Errorf("min fee %v must be non-negative", c.MinFeeSOL)
	case c.MinFeeSOL > c.MaxFeeSOL:
		return fmt.Errorf("min fee %v exceeds max fee %v", c.MinFeeSOL, c.MaxFeeSOL)
	case c.FeeBps > bpsDenominator:
		return fmt.Errorf("fee %d bps exceeds 100%%", c.FeeBps)
	case c.FeeRecipient.IsZero():
		return errors.New("fee recipient is not set")
	}
	return nil
}

// FeePolicy computes and builds the protocol fee. Read-only after construction.
type FeePolicy struct {
	cfg FeeConfig
}

// NewFeePolicy validates cfg and freezes it.
func NewFeePolicy(cfg FeeConfig) (*FeePolicy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fee config: %w", err)
	}
	return &FeePolicy{cfg: cfg}, nil
}

// Config returns a copy of the policy configuration.
func (p *FeePolicy) Config() FeeConfig {
	return p.cfg
}

// Recipient returns the fee recipient account.
func (p *FeePolicy) Recipient() solana.PublicKey {
	return p.cfg.FeeRecipient
}

// CalculateFee returns clamp(notional*feeBps/10000, min, max).
// Negative and NaN notionals are treated as zero.
func (p *FeePolicy) CalculateFee(notionalSOL float64) float64 {
	if math.IsNaN(notionalSOL) || notionalSOL < 0 {
		notionalSOL = 0
	}
	raw := notionalSOL * float64(p.cfg.FeeBps) / bpsDenominator
	return math.Min(math.Max(raw, p.cfg.MinFeeSOL), p.cfg.MaxFeeSOL)
}

// FeeLamports floors a SOL amount to whole lamports.
func FeeLamports(feeSOL float64) uint64 {
	if math.IsNaN(feeSOL) || feeSOL <= 0 {
		return 0
	}
	lamports := decimal.NewFromFloat(feeSOL).
		Mul(decimal.NewFromInt(int64(types.LamportsPerSOL))).
		Floor()
	return uint64(lamports.IntPart())
}

// BuildFeeInstruction builds the system transfer of the fee for a notional amount.
func (p *FeePolicy) BuildFeeInstruction(payer solana.PublicKey, notionalSOL float64) (solana.Instruction, uint64, error) {
	return p.transfer(payer, p.CalculateFee(notionalSOL))
}

// BuildFlatFeeInstruction charges the minimum fee, for actions without an amount (cancel, claim).
func (p *FeePolicy) BuildFlatFeeInstruction(payer solana.PublicKey) (solana.Instruction, uint64, error) {
	return p.transfer(payer, p.cfg.MinFeeSOL)
}

func (p *FeePolicy) transfer(payer solana.PublicKey, feeSOL float64) (solana.Instruction, uint64, error) {
	if payer.IsZero() {
		return nil, 0, errors.New("fee payer is not set")
	}
	lamports := FeeLamports(feeSOL)
	ix, err := system.NewTransferInstruction(lamports, payer, p.cfg.FeeRecipient).ValidateAndBuild()
	if err != nil {
		return nil, 0, fmt.Errorf("build fee transfer: %w", err)
	}
	return ix, lamports, nil
}

// FormatFee formats a fee for display, e.g. "0.0030 SOL".
func FormatFee(feeSOL float64) string {
	return fmt.Sprintf("%.4f SOL", feeSOL)
}
