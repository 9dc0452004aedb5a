package state

import (
	"fmt"
	"math/big"

	"cdpchain/crypto"
	"cdpchain/native/vault"
)

type storedVault struct {
	ID         uint64
	Owner      string
	Collateral *big.Int
	Debt       *big.Int
	CreatedAt  uint64
}

func (m *Manager) VaultGet(id uint64) (*vault.Vault, bool, error) {
	var stored storedVault
	ok, err := m.KVGet(vaultRecordKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	owner, err := crypto.DecodeAddress(stored.Owner)
	if err != nil {
		return nil, false, fmt.Errorf("state: decode vault %d owner: %w", id, err)
	}
	return &vault.Vault{
		ID:         stored.ID,
		Owner:      owner,
		Collateral: stored.Collateral,
		Debt:       stored.Debt,
		CreatedAt:  stored.CreatedAt,
	}, true, nil
}

func (m *Manager) VaultPut(v *vault.Vault) error {
	if v == nil || v.ID == 0 {
		return fmt.Errorf("state: vault requires a non-zero id")
	}
	return m.KVPut(vaultRecordKey(v.ID), storedVault{
		ID:         v.ID,
		Owner:      v.Owner.String(),
		Collateral: nonNil(v.Collateral),
		Debt:       nonNil(v.Debt),
		CreatedAt:  v.CreatedAt,
	})
}

// VaultNextID allocates the next vault identifier. Identifiers start at 1 and
// are never reused.
func (m *Manager) VaultNextID() (uint64, error) {
	var last uint64
	if _, err := m.KVGet(vaultNextIDKey, &last); err != nil {
		return 0, err
	}
	next := last + 1
	if next == 0 {
		return 0, fmt.Errorf("state: vault id space exhausted")
	}
	if err := m.KVPut(vaultNextIDKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

// VaultLastID returns the most recently allocated identifier, or zero.
func (m *Manager) VaultLastID() (uint64, error) {
	var last uint64
	_, err := m.KVGet(vaultNextIDKey, &last)
	return last, err
}

func (m *Manager) VaultAppendOwner(owner crypto.Address, id uint64) error {
	return m.KVAppend(vaultOwnerIndexKey(owner.Bytes()), encodeVaultID(id))
}

func (m *Manager) VaultsByOwner(owner crypto.Address) ([]uint64, error) {
	var raw [][]byte
	if err := m.KVGetList(vaultOwnerIndexKey(owner.Bytes()), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		id, err := decodeVaultID(entry)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Manager) VaultTotalDebt() (*big.Int, error) {
	return m.loadAmount(vaultTotalDebtKey)
}

func (m *Manager) VaultSetTotalDebt(total *big.Int) error {
	return m.storeAmount(vaultTotalDebtKey, total)
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
