package token

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"cdpchain/core/events"
	"cdpchain/crypto"
	nativecommon "cdpchain/native/common"
)

type mockState struct {
	meta     map[string]*Metadata
	balances map[string]*big.Int
	supply   map[string]*big.Int
	owners   map[string]crypto.Address
	minters  map[string]crypto.Address
}

func newMockState() *mockState {
	return &mockState{
		meta:     map[string]*Metadata{},
		balances: map[string]*big.Int{},
		supply:   map[string]*big.Int{},
		owners:   map[string]crypto.Address{},
		minters:  map[string]crypto.Address{},
	}
}

func key(symbol string, addr crypto.Address) string { return symbol + "/" + string(addr.Bytes()) }

func (m *mockState) TokenMetadata(symbol string) (*Metadata, bool, error) {
	meta, ok := m.meta[symbol]
	return meta, ok, nil
}

func (m *mockState) TokenPutMetadata(meta *Metadata) error {
	m.meta[meta.Symbol] = meta.Clone()
	return nil
}

func (m *mockState) TokenBalance(symbol string, addr crypto.Address) (*big.Int, error) {
	if bal, ok := m.balances[key(symbol, addr)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) TokenSetBalance(symbol string, addr crypto.Address, amount *big.Int) error {
	m.balances[key(symbol, addr)] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) TokenSupply(symbol string) (*big.Int, error) {
	if s, ok := m.supply[symbol]; ok {
		return new(big.Int).Set(s), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) TokenSetSupply(symbol string, amount *big.Int) error {
	m.supply[symbol] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) TokenOwner(symbol string) (crypto.Address, bool, error) {
	owner, ok := m.owners[symbol]
	return owner, ok, nil
}

func (m *mockState) TokenSetOwner(symbol string, owner crypto.Address) error {
	m.owners[symbol] = owner
	return nil
}

func (m *mockState) TokenIsMinter(symbol string, addr crypto.Address) (bool, error) {
	_, ok := m.minters[key(symbol, addr)]
	return ok, nil
}

func (m *mockState) TokenSetMinter(symbol string, addr crypto.Address, authorized bool) error {
	if authorized {
		m.minters[key(symbol, addr)] = addr
	} else {
		delete(m.minters, key(symbol, addr))
	}
	return nil
}

func (m *mockState) TokenMinters(symbol string) ([]crypto.Address, error) {
	var out []crypto.Address
	for _, addr := range m.minters {
		out = append(out, addr)
	}
	return out, nil
}

type captureEmitter struct{ events []events.Event }

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func makeAddress(fill byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	for i := range raw {
		raw[i] = fill
	}
	return crypto.NewAddress(crypto.CDPPrefix, raw)
}

var (
	owner  = makeAddress(0x01)
	minter = makeAddress(0x02)
	alice  = makeAddress(0x0A)
	bob    = makeAddress(0x0B)
)

func newDiko(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	state := newMockState()
	engine := NewEngine("diko")
	engine.SetState(state)
	require.NoError(t, engine.Register(Metadata{Name: "DIKO Stablecoin", Decimals: 6}, owner))
	require.NoError(t, engine.AuthorizeMinter(owner, minter))
	return engine, state
}

func requireSupplyMatches(t *testing.T, engine *Engine, holders ...crypto.Address) {
	t.Helper()
	sum := new(big.Int)
	for _, h := range holders {
		bal, err := engine.Balance(h)
		require.NoError(t, err)
		sum.Add(sum, bal)
	}
	supply, err := engine.TotalSupply()
	require.NoError(t, err)
	require.Zero(t, sum.Cmp(supply), "sum of balances %s != supply %s", sum, supply)
}

func TestRegisterWithAllocation(t *testing.T) {
	state := newMockState()
	engine := NewEngine("are")
	engine.SetState(state)
	require.NoError(t, engine.Register(Metadata{Name: "Arkadiko Token", Decimals: 6}, owner,
		Allocation{Account: owner, Amount: big.NewInt(1_000_000_000)}))

	meta, err := engine.Metadata()
	require.NoError(t, err)
	require.Equal(t, "ARE", meta.Symbol)
	require.Equal(t, uint8(6), meta.Decimals)

	bal, err := engine.Balance(owner)
	require.NoError(t, err)
	require.Equal(t, "1000000000", bal.String())
	requireSupplyMatches(t, engine, owner)

	err = engine.Register(Metadata{Name: "again"}, owner)
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestMintRequiresMinter(t *testing.T) {
	engine, _ := newDiko(t)
	capture := &captureEmitter{}
	engine.SetEmitter(capture)

	err := engine.Mint(alice, big.NewInt(10), alice)
	require.ErrorIs(t, err, ErrNotAuthorized)
	code, ok := nativecommon.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, uint32(100), code)

	require.NoError(t, engine.Mint(minter, big.NewInt(10), alice))
	require.Len(t, capture.events, 1)
	require.Equal(t, events.TypeTokenMinted, capture.events[0].EventType())
	requireSupplyMatches(t, engine, alice)
}

func TestMintRejectsBadAmounts(t *testing.T) {
	engine, _ := newDiko(t)
	require.ErrorIs(t, engine.Mint(minter, big.NewInt(0), alice), ErrInvalidAmount)
	require.ErrorIs(t, engine.Mint(minter, big.NewInt(-5), alice), ErrInvalidAmount)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 128)
	require.ErrorIs(t, engine.Mint(minter, tooBig, alice), ErrInvalidAmount)

	require.NoError(t, engine.Mint(minter, nativecommon.MaxUint128, alice))
	require.ErrorIs(t, engine.Mint(minter, big.NewInt(1), bob), ErrSupplyOverflow)
}

func TestBurn(t *testing.T) {
	engine, _ := newDiko(t)
	require.NoError(t, engine.Mint(minter, big.NewInt(100), alice))

	require.ErrorIs(t, engine.Burn(alice, big.NewInt(10), alice), ErrNotAuthorized)
	require.ErrorIs(t, engine.Burn(minter, big.NewInt(101), alice), ErrInsufficientBalance)

	require.NoError(t, engine.Burn(minter, big.NewInt(40), alice))
	bal, _ := engine.Balance(alice)
	require.Equal(t, "60", bal.String())
	requireSupplyMatches(t, engine, alice)
}

func TestTransfer(t *testing.T) {
	engine, _ := newDiko(t)
	require.NoError(t, engine.Mint(minter, big.NewInt(50), alice))

	require.ErrorIs(t, engine.Transfer(bob, big.NewInt(5), alice, bob, ""), ErrNotAuthorized)
	require.ErrorIs(t, engine.Transfer(alice, big.NewInt(51), alice, bob, ""), ErrInsufficientBalance)
	require.ErrorIs(t, engine.Transfer(alice, big.NewInt(1), alice, bob, string(make([]byte, MaxMemoLength+1))), ErrMemoTooLong)

	require.NoError(t, engine.Transfer(alice, big.NewInt(20), alice, bob, "rent"))
	aliceBal, _ := engine.Balance(alice)
	bobBal, _ := engine.Balance(bob)
	require.Equal(t, "30", aliceBal.String())
	require.Equal(t, "20", bobBal.String())

	require.NoError(t, engine.Transfer(alice, big.NewInt(30), alice, alice, ""))
	aliceBal, _ = engine.Balance(alice)
	require.Equal(t, "30", aliceBal.String())
	requireSupplyMatches(t, engine, alice, bob)
}

func TestMinterAndOwnerAdministration(t *testing.T) {
	engine, _ := newDiko(t)

	require.ErrorIs(t, engine.AuthorizeMinter(alice, alice), ErrNotAuthorized)
	require.NoError(t, engine.RevokeMinter(owner, minter))
	ok, err := engine.IsMinter(minter)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, engine.TransferOwnership(owner, alice))
	got, err := engine.Owner()
	require.NoError(t, err)
	require.True(t, got.Equal(alice))
	require.ErrorIs(t, engine.AuthorizeMinter(owner, bob), ErrNotAuthorized)
	require.NoError(t, engine.AuthorizeMinter(alice, bob))
}

func TestUnregisteredToken(t *testing.T) {
	engine := NewEngine("stx")
	engine.SetState(newMockState())
	require.ErrorIs(t, engine.Mint(minter, big.NewInt(1), alice), ErrNotRegistered)
	_, err := engine.Metadata()
	require.ErrorIs(t, err, nativecommon.ErrNotFound)
}

func TestPausedLedger(t *testing.T) {
	engine, _ := newDiko(t)
	engine.SetPauses(nativecommon.NewPauses(nativecommon.ModuleToken))
	require.ErrorIs(t, engine.Mint(minter, big.NewInt(1), alice), nativecommon.ErrModulePaused)
	_, err := engine.Balance(alice)
	require.NoError(t, err)
}
