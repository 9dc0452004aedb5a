package common

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// MaxAmountBits bounds every stored amount to an unsigned 128-bit value.
const MaxAmountBits = 128

// MaxUint128 is the largest representable amount.
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), MaxAmountBits), big.NewInt(1))

// CheckAmount reports whether v is a strictly positive amount that fits in
// 128 bits.
func CheckAmount(v *big.Int) bool {
	if v == nil || v.Sign() <= 0 {
		return false
	}
	word, overflow := uint256.FromBig(v)
	if overflow {
		return false
	}
	return word.BitLen() <= MaxAmountBits
}

// CheckedAdd returns a+b, failing when the sum leaves the 128-bit range.
func CheckedAdd(a, b *big.Int) (*big.Int, bool) {
	x, overflowA := uint256.FromBig(zeroIfNil(a))
	y, overflowB := uint256.FromBig(zeroIfNil(b))
	if overflowA || overflowB {
		return nil, false
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow || sum.BitLen() > MaxAmountBits {
		return nil, false
	}
	return sum.ToBig(), true
}

// Clone returns a copy of v, mapping nil to zero.
func Clone(v *big.Int) *big.Int {
	return new(big.Int).Set(zeroIfNil(v))
}

// FormatUnits renders a fixed-point amount with the given number of decimals,
// e.g. FormatUnits(1_500_000, 6) == "1.500000".
func FormatUnits(v *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(zeroIfNil(v), -int32(decimals)).StringFixed(int32(decimals))
}

// ParseUnits converts a decimal string into fixed-point units, rejecting
// values with more precision than decimals allows.
func ParseUnits(s string, decimals uint8) (*big.Int, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, false
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, false
	}
	return scaled.BigInt(), true
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
