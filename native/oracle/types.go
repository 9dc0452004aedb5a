package oracle

import (
	"math/big"
	"strings"

	"cdpchain/crypto"
)

// PriceEntry is the latest observation recorded for an asset. Prices are
// quoted in micro-dollars (1_000_000 == 1 USD).
type PriceEntry struct {
	Asset     string
	Price     *big.Int
	Timestamp uint64
	Source    crypto.Address
}

// Clone returns a deep copy so callers cannot mutate engine-owned values.
func (p *PriceEntry) Clone() *PriceEntry {
	if p == nil {
		return nil
	}
	out := *p
	if p.Price != nil {
		out.Price = new(big.Int).Set(p.Price)
	}
	return &out
}

// NormalizeAsset canonicalises an asset symbol. Lookups are case-insensitive
// so "stx" and "STX" share one slot.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
