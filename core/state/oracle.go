package state

import (
	"fmt"
	"math/big"

	"cdpchain/crypto"
	"cdpchain/native/oracle"
)

type storedPrice struct {
	Asset     string
	Price     *big.Int
	Timestamp uint64
	Source    string
}

// OraclePrice loads the latest observation for asset.
func (m *Manager) OraclePrice(asset string) (*oracle.PriceEntry, bool, error) {
	var stored storedPrice
	ok, err := m.KVGet(oraclePriceKey(asset), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	source, err := crypto.DecodeAddress(stored.Source)
	if err != nil {
		return nil, false, fmt.Errorf("state: decode price source: %w", err)
	}
	return &oracle.PriceEntry{
		Asset:     stored.Asset,
		Price:     stored.Price,
		Timestamp: stored.Timestamp,
		Source:    source,
	}, true, nil
}

func (m *Manager) OraclePutPrice(entry *oracle.PriceEntry) error {
	if entry == nil {
		return fmt.Errorf("state: nil price entry")
	}
	return m.KVPut(oraclePriceKey(entry.Asset), storedPrice{
		Asset:     entry.Asset,
		Price:     entry.Price,
		Timestamp: entry.Timestamp,
		Source:    entry.Source.String(),
	})
}

func (m *Manager) OracleOwner() (crypto.Address, bool, error) {
	return m.loadAddress(oracleOwnerKey)
}

func (m *Manager) OracleSetOwner(owner crypto.Address) error {
	return m.KVPut(oracleOwnerKey, owner.String())
}

func (m *Manager) OracleIsSource(addr crypto.Address) (bool, error) {
	return m.HasRole(oracleSourceRole, []byte(addr.String()))
}

func (m *Manager) OracleSetSource(addr crypto.Address, authorized bool) error {
	if authorized {
		return m.SetRole(oracleSourceRole, []byte(addr.String()))
	}
	return m.RemoveRole(oracleSourceRole, []byte(addr.String()))
}

func (m *Manager) OracleSources() ([]crypto.Address, error) {
	return m.roleAddresses(oracleSourceRole)
}

func (m *Manager) loadAddress(key []byte) (crypto.Address, bool, error) {
	var encoded string
	ok, err := m.KVGet(key, &encoded)
	if err != nil || !ok {
		return crypto.Address{}, false, err
	}
	addr, err := crypto.DecodeAddress(encoded)
	if err != nil {
		return crypto.Address{}, false, fmt.Errorf("state: decode address: %w", err)
	}
	return addr, true, nil
}

func (m *Manager) roleAddresses(role string) ([]crypto.Address, error) {
	members, err := m.RoleMembers(role)
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(members))
	for _, member := range members {
		addr, err := crypto.DecodeAddress(string(member))
		if err != nil {
			return nil, fmt.Errorf("state: decode %s member: %w", role, err)
		}
		out = append(out, addr)
	}
	return out, nil
}
