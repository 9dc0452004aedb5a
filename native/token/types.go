package token

import (
	"math/big"
	"strings"

	"cdpchain/crypto"
)

// Metadata describes a registered fungible token.
type Metadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}

// Allocation credits a genesis balance without passing through minting.
type Allocation struct {
	Account crypto.Address
	Amount  *big.Int
}

// MaxMemoLength bounds the optional transfer memo in bytes.
const MaxMemoLength = 34

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
