// internal/types/slippage.go
package types

import (
	"fmt"
	"math"
	"math/big"
)

// MaxSlippageBps is 100%.
const MaxSlippageBps = 10_000

// ValidateSlippageBps rejects tolerances above 100%.
func ValidateSlippageBps(bps uint16) error {
	if bps > MaxSlippageBps {
		return fmt.Errorf("slippage %d bps exceeds %d", bps, MaxSlippageBps)
	}
	return nil
}

// MinimumReceived вычисляет floor(out * (10000 - bps) / 10000) в целых числах,
// чтобы результат был детерминирован для одинаковых входных данных.
func MinimumReceived(outputAmount uint64, slippageBps uint16) uint64 {
	if slippageBps >= MaxSlippageBps {
		return 0
	}
	n := new(big.Int).SetUint64(outputAmount)
	n.Mul(n, big.NewInt(int64(MaxSlippageBps-slippageBps)))
	n.Quo(n, big.NewInt(MaxSlippageBps))
	return n.Uint64()
}

// BpsFromPercent converts a percentage (1.0 = 1%) into basis points, rounding to nearest.
func BpsFromPercent(pct float64) (uint16, error) {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("invalid slippage percent %v", pct)
	}
	return uint16(math.Round(pct * 100)), nil
}
