// internal/dex/orca/math.go
package orca

import (
	"fmt"
	"math/big"
)

// swapResult - результат constant product свапа.
type swapResult struct {
	AmountOut      uint64
	TotalFee       uint64
	PriceImpactPct float64
}

// fee = amount * num / den, не меньше 1 если num > 0.
func tradingFee(amount *big.Int, num, den uint64) *big.Int {
	if num == 0 || den == 0 || amount.Sign() == 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(num))
	fee.Quo(fee, new(big.Int).SetUint64(den))
	if fee.Sign() == 0 {
		return big.NewInt(1)
	}
	return fee
}

// swapConstantProduct считает выход с учетом trade и owner комиссий.
func swapConstantProduct(fees Fees, sourceReserve, destReserve, amountIn uint64) (swapResult, error) {
	if sourceReserve == 0 || destReserve == 0 {
		return swapResult{}, fmt.Errorf("pool has no liquidity")
	}
	amount := new(big.Int).SetUint64(amountIn)
	totalFee := new(big.Int).Add(
		tradingFee(amount, fees.TradeFeeNumerator, fees.TradeFeeDenominator),
		tradingFee(amount, fees.OwnerTradeFeeNumerator, fees.OwnerTradeFeeDenominator),
	)
	lessFees := new(big.Int).Sub(amount, totalFee)
	if lessFees.Sign() <= 0 {
		return swapResult{}, fmt.Errorf("amount is too small")
	}

	src := new(big.Int).SetUint64(sourceReserve)
	dst := new(big.Int).SetUint64(destReserve)
	invariant := new(big.Int).Mul(src, dst)
	newSrc := new(big.Int).Add(src, lessFees)
	newDst := new(big.Int).Quo(invariant, newSrc)
	// округление вверх остатка в пользу пула
	if new(big.Int).Mul(newDst, newSrc).Cmp(invariant) < 0 {
		newDst.Add(newDst, big.NewInt(1))
	}
	out := new(big.Int).Sub(dst, newDst)
	if out.Sign() <= 0 {
		return swapResult{}, fmt.Errorf("output is zero")
	}

	// цена без проскальзывания кривой против фактической
	spot := new(big.Float).Quo(
		new(big.Float).Mul(new(big.Float).SetInt(lessFees), new(big.Float).SetInt(dst)),
		new(big.Float).SetInt(src),
	)
	impact, _ := new(big.Float).Quo(
		new(big.Float).Sub(spot, new(big.Float).SetInt(out)),
		spot,
	).Float64()

	return swapResult{
		AmountOut:      out.Uint64(),
		TotalFee:       totalFee.Uint64(),
		PriceImpactPct: impact * 100,
	}, nil
}
