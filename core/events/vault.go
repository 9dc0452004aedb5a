package events

import (
	"math/big"

	"cdpchain/core/types"
	"cdpchain/crypto"
)

const (
	TypeVaultCreated         = "vault.created"
	TypeVaultCollateralAdded = "vault.collateral_added"
	TypeVaultDebtMinted      = "vault.debt_minted"
	TypeVaultDebtRepaid      = "vault.debt_repaid"
)

// VaultCreated is emitted when a new vault is opened.
type VaultCreated struct {
	VaultID    uint64
	Owner      crypto.Address
	Collateral *big.Int
	CreatedAt  uint64
}

func (VaultCreated) EventType() string { return TypeVaultCreated }

func (e VaultCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultCreated,
		Attributes: map[string]string{
			"vaultId":    uintToString(e.VaultID),
			"owner":      e.Owner.String(),
			"collateral": formatAmount(e.Collateral),
			"createdAt":  uintToString(e.CreatedAt),
		},
	}
}

// VaultCollateralAdded records a collateral top-up and the resulting total.
type VaultCollateralAdded struct {
	VaultID    uint64
	Owner      crypto.Address
	Amount     *big.Int
	Collateral *big.Int
}

func (VaultCollateralAdded) EventType() string { return TypeVaultCollateralAdded }

func (e VaultCollateralAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultCollateralAdded,
		Attributes: map[string]string{
			"vaultId":    uintToString(e.VaultID),
			"owner":      e.Owner.String(),
			"amount":     formatAmount(e.Amount),
			"collateral": formatAmount(e.Collateral),
		},
	}
}

// VaultDebtMinted records debt minted against a vault together with the
// collateral ratio and price that admitted it.
type VaultDebtMinted struct {
	VaultID  uint64
	Owner    crypto.Address
	Amount   *big.Int
	Debt     *big.Int
	RatioBps *big.Int
	Price    *big.Int
}

func (VaultDebtMinted) EventType() string { return TypeVaultDebtMinted }

func (e VaultDebtMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDebtMinted,
		Attributes: map[string]string{
			"vaultId":  uintToString(e.VaultID),
			"owner":    e.Owner.String(),
			"amount":   formatAmount(e.Amount),
			"debt":     formatAmount(e.Debt),
			"ratioBps": formatAmount(e.RatioBps),
			"price":    formatAmount(e.Price),
		},
	}
}

// VaultDebtRepaid records a repayment and the remaining debt.
type VaultDebtRepaid struct {
	VaultID uint64
	Owner   crypto.Address
	Amount  *big.Int
	Debt    *big.Int
}

func (VaultDebtRepaid) EventType() string { return TypeVaultDebtRepaid }

func (e VaultDebtRepaid) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDebtRepaid,
		Attributes: map[string]string{
			"vaultId": uintToString(e.VaultID),
			"owner":   e.Owner.String(),
			"amount":  formatAmount(e.Amount),
			"debt":    formatAmount(e.Debt),
		},
	}
}
