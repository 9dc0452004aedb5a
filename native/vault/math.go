package vault

import (
	"math/big"

	nativecommon "cdpchain/native/common"
)

var (
	basisPoints = big.NewInt(10_000)
	// priceScale converts micro-dollar prices back to whole dollars.
	priceScale = big.NewInt(1_000_000)
)

// MaxRatio is reported for vaults without debt.
var MaxRatio = new(big.Int).Set(nativecommon.MaxUint128)

// collateralRatioBps computes collateral*price*10_000 / (debt*10^6), rounding
// down. A zero debt yields MaxRatio.
func collateralRatioBps(collateral, debt, price *big.Int) *big.Int {
	if debt == nil || debt.Sign() == 0 {
		return new(big.Int).Set(MaxRatio)
	}
	numerator := new(big.Int).Mul(cloneInt(collateral), cloneInt(price))
	numerator.Mul(numerator, basisPoints)
	denominator := new(big.Int).Mul(debt, priceScale)
	return numerator.Quo(numerator, denominator)
}

// maxMintable returns the largest additional debt the vault can take at price
// while staying at or above minBps.
func maxMintable(collateral, debt, price *big.Int, minBps uint64) *big.Int {
	if minBps == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(cloneInt(collateral), cloneInt(price))
	numerator.Mul(numerator, basisPoints)
	denominator := new(big.Int).Mul(new(big.Int).SetUint64(minBps), priceScale)
	ceiling := numerator.Quo(numerator, denominator)
	ceiling.Sub(ceiling, cloneInt(debt))
	if ceiling.Sign() < 0 {
		return big.NewInt(0)
	}
	return ceiling
}
