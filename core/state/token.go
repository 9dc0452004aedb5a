package state

import (
	"fmt"
	"math/big"

	"cdpchain/crypto"
	"cdpchain/native/token"
)

type storedTokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

func (m *Manager) TokenMetadata(symbol string) (*token.Metadata, bool, error) {
	var stored storedTokenMetadata
	ok, err := m.KVGet(tokenMetadataKey(symbol), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &token.Metadata{Symbol: stored.Symbol, Name: stored.Name, Decimals: stored.Decimals}, true, nil
}

func (m *Manager) TokenPutMetadata(meta *token.Metadata) error {
	if meta == nil || meta.Symbol == "" {
		return fmt.Errorf("state: token metadata requires a symbol")
	}
	return m.KVPut(tokenMetadataKey(meta.Symbol), storedTokenMetadata{
		Symbol:   meta.Symbol,
		Name:     meta.Name,
		Decimals: meta.Decimals,
	})
}

// TokenBalance returns zero for accounts that never held the token.
func (m *Manager) TokenBalance(symbol string, addr crypto.Address) (*big.Int, error) {
	return m.loadAmount(tokenBalanceKey(symbol, addr.Bytes()))
}

// TokenSetBalance stores amount, deleting the slot once it reaches zero.
func (m *Manager) TokenSetBalance(symbol string, addr crypto.Address, amount *big.Int) error {
	if len(addr.Bytes()) == 0 {
		return fmt.Errorf("state: address must not be empty")
	}
	return m.storeAmount(tokenBalanceKey(symbol, addr.Bytes()), amount)
}

func (m *Manager) TokenSupply(symbol string) (*big.Int, error) {
	return m.loadAmount(tokenSupplyKey(symbol))
}

func (m *Manager) TokenSetSupply(symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid supply for %s", symbol)
	}
	return m.KVPut(tokenSupplyKey(symbol), amount)
}

func (m *Manager) TokenOwner(symbol string) (crypto.Address, bool, error) {
	return m.loadAddress(tokenOwnerKey(symbol))
}

func (m *Manager) TokenSetOwner(symbol string, owner crypto.Address) error {
	return m.KVPut(tokenOwnerKey(symbol), owner.String())
}

func (m *Manager) TokenIsMinter(symbol string, addr crypto.Address) (bool, error) {
	return m.HasRole(tokenMinterRole(symbol), []byte(addr.String()))
}

func (m *Manager) TokenSetMinter(symbol string, addr crypto.Address, authorized bool) error {
	if authorized {
		return m.SetRole(tokenMinterRole(symbol), []byte(addr.String()))
	}
	return m.RemoveRole(tokenMinterRole(symbol), []byte(addr.String()))
}

func (m *Manager) TokenMinters(symbol string) ([]crypto.Address, error) {
	return m.roleAddresses(tokenMinterRole(symbol))
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative amount not allowed")
	}
	return m.KVPut(key, amount)
}
