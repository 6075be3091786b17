// internal/dex/orca/layout.go
package orca

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	SwapLayoutSize = 324

	curveConstantProduct uint8 = 0

	// amount в SPL token account
	tokenAccountAmountOffset = 64
	tokenAccountMinSize      = 72

	swapInstruction uint8 = 1
)

// DefaultProgramID - Orca token swap v2.
var DefaultProgramID = solana.MustPublicKeyFromBase58("9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP")

type Fees struct {
	TradeFeeNumerator           uint64
	TradeFeeDenominator         uint64
	OwnerTradeFeeNumerator      uint64
	OwnerTradeFeeDenominator    uint64
	OwnerWithdrawFeeNumerator   uint64
	OwnerWithdrawFeeDenominator uint64
	HostFeeNumerator            uint64
	HostFeeDenominator          uint64
}

type SwapCurve struct {
	CurveType  uint8
	Parameters [32]byte
}

// SwapLayout - аккаунт пула token swap.
type SwapLayout struct {
	Version        uint8
	IsInitialized  uint8
	BumpSeed       uint8
	TokenProgramID solana.PublicKey
	VaultA         solana.PublicKey
	VaultB         solana.PublicKey
	PoolMint       solana.PublicKey
	MintA          solana.PublicKey
	MintB          solana.PublicKey
	PoolFeeAccount solana.PublicKey
	Fees           Fees
	SwapCurve      SwapCurve
}

// DecodeSwapLayout декодирует аккаунт пула.
func DecodeSwapLayout(data []byte) (*SwapLayout, error) {
	if len(data) < SwapLayoutSize {
		return nil, fmt.Errorf("orca pool data size is not valid, expected: %d, actual: %d", SwapLayoutSize, len(data))
	}
	var layout SwapLayout
	if err := bin.NewBinDecoder(data[:SwapLayoutSize]).Decode(&layout); err != nil {
		return nil, fmt.Errorf("decode orca pool: %w", err)
	}
	if layout.IsInitialized == 0 {
		return nil, fmt.Errorf("orca pool is not initialized")
	}
	return &layout, nil
}

// tokenAccountAmount читает баланс SPL token account.
func tokenAccountAmount(data []byte) (uint64, error) {
	if len(data) < tokenAccountMinSize {
		return 0, fmt.Errorf("token account data too short: %d", len(data))
	}
	return binary.LittleEndian.Uint64(data[tokenAccountAmountOffset : tokenAccountAmountOffset+8]), nil
}
