package vault

import (
	"math/big"

	"cdpchain/crypto"
)

// Vault is a collateralised debt position. Collateral is held in STX base
// units and debt in DIKO base units; both carry six decimals.
type Vault struct {
	ID         uint64
	Owner      crypto.Address
	Collateral *big.Int
	Debt       *big.Int
	CreatedAt  uint64
}

// Clone returns a deep copy of the vault.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	out := *v
	out.Collateral = cloneInt(v.Collateral)
	out.Debt = cloneInt(v.Debt)
	return &out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
