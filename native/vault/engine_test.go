package vault

import (
	"errors"
	"math/big"
	"testing"

	"cdpchain/core/events"
	"cdpchain/crypto"
	nativecommon "cdpchain/native/common"
	"cdpchain/native/oracle"
)

type mockState struct {
	vaults    map[uint64]*Vault
	owners    map[string][]uint64
	lastID    uint64
	totalDebt *big.Int
}

func newMockState() *mockState {
	return &mockState{vaults: map[uint64]*Vault{}, owners: map[string][]uint64{}, totalDebt: big.NewInt(0)}
}

func (m *mockState) VaultGet(id uint64) (*Vault, bool, error) {
	v, ok := m.vaults[id]
	if !ok {
		return nil, false, nil
	}
	return v.Clone(), true, nil
}

func (m *mockState) VaultPut(v *Vault) error {
	m.vaults[v.ID] = v.Clone()
	return nil
}

func (m *mockState) VaultNextID() (uint64, error) {
	m.lastID++
	return m.lastID, nil
}

func (m *mockState) VaultAppendOwner(owner crypto.Address, id uint64) error {
	key := string(owner.Bytes())
	m.owners[key] = append(m.owners[key], id)
	return nil
}

func (m *mockState) VaultsByOwner(owner crypto.Address) ([]uint64, error) {
	return append([]uint64(nil), m.owners[string(owner.Bytes())]...), nil
}

func (m *mockState) VaultTotalDebt() (*big.Int, error) { return new(big.Int).Set(m.totalDebt), nil }

func (m *mockState) VaultSetTotalDebt(total *big.Int) error {
	m.totalDebt = new(big.Int).Set(total)
	return nil
}

type fakeFeed struct {
	entry *oracle.PriceEntry
}

func (f *fakeFeed) GetPriceInfo(asset string) (*oracle.PriceEntry, bool, error) {
	if f.entry == nil || f.entry.Asset != asset {
		return nil, false, nil
	}
	return f.entry.Clone(), true, nil
}

type fakeLedger struct {
	balances map[string]*big.Int
	minter   crypto.Address
	failMint error
}

func newFakeLedger(minter crypto.Address) *fakeLedger {
	return &fakeLedger{balances: map[string]*big.Int{}, minter: minter}
}

func (l *fakeLedger) Balance(addr crypto.Address) (*big.Int, error) {
	if bal, ok := l.balances[string(addr.Bytes())]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (l *fakeLedger) Mint(caller crypto.Address, amount *big.Int, recipient crypto.Address) error {
	if l.failMint != nil {
		return l.failMint
	}
	if !caller.Equal(l.minter) {
		return errors.New("ledger: not a minter")
	}
	bal, _ := l.Balance(recipient)
	l.balances[string(recipient.Bytes())] = bal.Add(bal, amount)
	return nil
}

func (l *fakeLedger) Burn(caller crypto.Address, amount *big.Int, holder crypto.Address) error {
	if !caller.Equal(l.minter) {
		return errors.New("ledger: not a minter")
	}
	bal, _ := l.Balance(holder)
	if bal.Cmp(amount) < 0 {
		return nativecommon.ErrInsufficientBalance
	}
	l.balances[string(holder.Bytes())] = bal.Sub(bal, amount)
	return nil
}

func (l *fakeLedger) Transfer(caller crypto.Address, amount *big.Int, from, to crypto.Address, memo string) error {
	bal, _ := l.Balance(from)
	if bal.Cmp(amount) < 0 {
		return nativecommon.ErrInsufficientBalance
	}
	l.balances[string(from.Bytes())] = bal.Sub(bal, amount)
	dest, _ := l.Balance(to)
	l.balances[string(to.Bytes())] = dest.Add(dest, amount)
	return nil
}

type captureEmitter struct{ events []events.Event }

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func makeAddress(prefix crypto.AddressPrefix, fill byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	for i := range raw {
		raw[i] = fill
	}
	return crypto.NewAddress(prefix, raw)
}

type fixture struct {
	engine *Engine
	state  *mockState
	feed   *fakeFeed
	ledger *fakeLedger
	owner  crypto.Address
	other  crypto.Address
}

func newFixture(t *testing.T, price int64) *fixture {
	t.Helper()
	moduleAddr := makeAddress(crypto.ModulePrefix, 0xAA)
	custodyAddr := makeAddress(crypto.ModulePrefix, 0xBB)
	f := &fixture{
		state:  newMockState(),
		feed:   &fakeFeed{entry: &oracle.PriceEntry{Asset: "STX", Price: big.NewInt(price), Timestamp: 1_000}},
		ledger: newFakeLedger(moduleAddr),
		owner:  makeAddress(crypto.CDPPrefix, 0x01),
		other:  makeAddress(crypto.CDPPrefix, 0x02),
	}
	f.engine = NewEngine(moduleAddr, custodyAddr, DefaultParams())
	f.engine.SetState(f.state)
	f.engine.SetPriceFeed(f.feed)
	f.engine.SetDebtLedger(f.ledger)
	f.engine.SetNowFunc(func() int64 { return 1_000 })
	return f
}

func (f *fixture) assertTotalDebt(t *testing.T) {
	t.Helper()
	sum := new(big.Int)
	for _, v := range f.state.vaults {
		sum.Add(sum, v.Debt)
	}
	total, err := f.engine.TotalDebt()
	if err != nil {
		t.Fatalf("total debt: %v", err)
	}
	if total.Cmp(sum) != 0 {
		t.Fatalf("total debt %s != sum of vault debt %s", total, sum)
	}
}

func TestCreateVaultAssignsSequentialIDs(t *testing.T) {
	f := newFixture(t, 1_000_000)
	capture := &captureEmitter{}
	f.engine.SetEmitter(capture)

	id, err := f.engine.CreateVault(f.owner, big.NewInt(1_000_000_000))
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first vault id 1, got %d", id)
	}
	v, ok, err := f.engine.Vault(1)
	if err != nil || !ok {
		t.Fatalf("vault missing: ok=%v err=%v", ok, err)
	}
	if !v.Owner.Equal(f.owner) || v.Collateral.Cmp(big.NewInt(1_000_000_000)) != 0 || v.Debt.Sign() != 0 {
		t.Fatalf("unexpected vault %+v", v)
	}
	if v.CreatedAt != 1_000 {
		t.Fatalf("expected created_at 1000, got %d", v.CreatedAt)
	}

	second, _ := f.engine.CreateVault(f.owner, big.NewInt(5))
	third, _ := f.engine.CreateVault(f.other, big.NewInt(5))
	if second != 2 || third != 3 {
		t.Fatalf("ids must be sequential, got %d and %d", second, third)
	}
	ids, _ := f.engine.UserVaults(f.owner)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected owner index %v", ids)
	}
	if empty, _ := f.engine.UserVaults(makeAddress(crypto.CDPPrefix, 0x7F)); empty == nil || len(empty) != 0 {
		t.Fatalf("unknown owner should yield an empty list")
	}
	if len(capture.events) != 3 || capture.events[0].EventType() != events.TypeVaultCreated {
		t.Fatalf("expected three vault.created events")
	}
}

func TestCreateVaultRejectsNonPositive(t *testing.T) {
	f := newFixture(t, 1_000_000)
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		if _, err := f.engine.CreateVault(f.owner, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected invalid amount for %v, got %v", amount, err)
		}
	}
	if f.state.lastID != 0 {
		t.Fatalf("rejected create must not consume an id")
	}
}

func TestMintDebtHonoursMinimumRatio(t *testing.T) {
	f := newFixture(t, 1_000_000)
	id, _ := f.engine.CreateVault(f.owner, big.NewInt(150_000_000))

	err := f.engine.MintDebt(f.owner, id, big.NewInt(200_000_000))
	if !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected insufficient collateral, got %v", err)
	}
	if code, _ := nativecommon.CodeOf(err); code != 301 {
		t.Fatalf("expected code 301, got %d", code)
	}
	v, _, _ := f.engine.Vault(id)
	if v.Debt.Sign() != 0 {
		t.Fatalf("failed mint must leave debt unchanged, got %s", v.Debt)
	}
	if bal, _ := f.ledger.Balance(f.owner); bal.Sign() != 0 {
		t.Fatalf("failed mint must not issue tokens")
	}

	// 150 collateral at $1 supports exactly 100 debt.
	if err := f.engine.MintDebt(f.owner, id, big.NewInt(100_000_000)); err != nil {
		t.Fatalf("mint at exactly 150%% should pass: %v", err)
	}
	ratio, ok, err := f.engine.CollateralRatio(id)
	if err != nil || !ok {
		t.Fatalf("ratio: ok=%v err=%v", ok, err)
	}
	if ratio.Cmp(big.NewInt(15_000)) != 0 {
		t.Fatalf("expected ratio 15000, got %s", ratio)
	}
	if err := f.engine.MintDebt(f.owner, id, big.NewInt(1)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("any further debt should fail, got %v", err)
	}
	f.assertTotalDebt(t)
}

func TestMintDebtInvariantHoldsAfterCommit(t *testing.T) {
	f := newFixture(t, 2_345_678)
	id, _ := f.engine.CreateVault(f.owner, big.NewInt(987_654_321))

	for _, amount := range []int64{100_000_000, 250_000_000, 500_000_000, 1_000_000_000, 7} {
		err := f.engine.MintDebt(f.owner, id, big.NewInt(amount))
		v, _, _ := f.engine.Vault(id)
		if v.Debt.Sign() == 0 {
			continue
		}
		ratio := collateralRatioBps(v.Collateral, v.Debt, f.feed.entry.Price)
		if ratio.Cmp(big.NewInt(15_000)) < 0 {
			t.Fatalf("committed state below minimum ratio (%s) after mint err=%v", ratio, err)
		}
	}
	f.assertTotalDebt(t)
}

func TestMintDebtRequiresOwnerAndVault(t *testing.T) {
	f := newFixture(t, 1_000_000)
	id, _ := f.engine.CreateVault(f.owner, big.NewInt(1_000_000_000))

	err := f.engine.MintDebt(f.other, id, big.NewInt(1))
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorised, got %v", err)
	}
	if code, _ := nativecommon.CodeOf(err); code != 300 {
		t.Fatalf("expected code 300, got %d", code)
	}
	if err := f.engine.MintDebt(f.owner, 99, big.NewInt(1)); !errors.Is(err, nativecommon.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := f.engine.MintDebt(f.owner, id, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	v, _, _ := f.engine.Vault(id)
	if v.Debt.Sign() != 0 {
		t.Fatalf("debt changed after rejected mints")
	}
}

func TestMintDebtLedgerFailureRestoresState(t *testing.T) {
	f := newFixture(t, 1_000_000)
	id, _ := f.engine.CreateVault(f.owner, big.NewInt(1_000_000_000))
	f.ledger.failMint = errors.New("ledger offline")

	if err := f.engine.MintDebt(f.owner, id, big.NewInt(10)); err == nil {
		t.Fatalf("expected ledger failure to surface")
	}
	v, _, _ := f.engine.Vault(id)
	if v.Debt.Sign() != 0 {
		t.Fatalf("vault debt must be restored, got %s", v.Debt)
	}
	f.assertTotalDebt(t)
}

func TestMintDebtPriceChecks(t *testing.T) {
	f := newFixture(t, 1_000_000)
	id, _ := f.engine.CreateVault(f.owner, big.NewInt(1_000_000_000))

	f.feed.entry = nil
	if err := f.engine.MintDebt(f.owner, id, big.NewInt(1)); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected missing price, got %v", err)
	}

	stale := newFixture(t, 1_000_000)
	stale.engine.params.MaxPriceAge = 60
	stale.engine.SetNowFunc(func() int64 { return 1_061 })
	id, _ = stale.engine.CreateVault(stale.owner, big.NewInt(1_000_000_000))
	if err := stale.engine.MintDebt(stale.owner, id, big.NewInt(1)); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}
	stale.engine.SetNowFunc(func() int64 { return 1_060 })
	if err := stale.engine.MintDebt(stale.owner, id, big.NewInt(1)); err != nil {
		t.Fatalf("price at the age bound should be accepted: %v", err)
	}
}

func TestRepayDebt(t *testing.T) {
	f := newFixture(t, 1_000_000)
	capture := &captureEmitter{}
	f.engine.SetEmitter(capture)
	id, _ := f.engine.CreateVault(f.owner, big.NewInt(2_000_000_000))
	if err := f.engine.MintDebt(f.owner, id, big.NewInt(1_000_000_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	repaid, err := f.engine.RepayDebt(f.owner, id, big.NewInt(500_000_000))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("expected 500000000 repaid, got %s", repaid)
	}
	v, _, _ := f.engine.Vault(id)
	if v.Debt.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("expected remaining debt 500000000, got %s", v.Debt)
	}
	if bal, _ := f.engine.DebtBalance(f.owner); bal.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("expected owner balance 500000000, got %s", bal)
	}
	last := capture.events[len(capture.events)-1]
	if last.EventType() != events.TypeVaultDebtRepaid {
		t.Fatalf("expected repay event, got %s", last.EventType())
	}
	f.assertTotalDebt(t)
}

func TestRepayDebtRejections(t *testing.T) {
	f := newFixture(t, 1_000_000)
	id, _ := f.engine.CreateVault(f.owner, big.NewInt(2_000_000_000))
	_ = f.engine.MintDebt(f.owner, id, big.NewInt(100))

	if _, err := f.engine.RepayDebt(f.other, id, big.NewInt(1)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorised, got %v", err)
	}
	if _, err := f.engine.RepayDebt(f.owner, id, big.NewInt(101)); !errors.Is(err, nativecommon.ErrInvalidAmount) {
		t.Fatalf("expected over-repay rejection, got %v", err)
	}

	// Owner spent part of the minted balance elsewhere.
	f.ledger.balances[string(f.owner.Bytes())] = big.NewInt(40)
	if _, err := f.engine.RepayDebt(f.owner, id, big.NewInt(50)); !errors.Is(err, nativecommon.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	v, _, _ := f.engine.Vault(id)
	if v.Debt.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("failed burn must leave debt untouched, got %s", v.Debt)
	}
	f.assertTotalDebt(t)
}

func TestAddCollateral(t *testing.T) {
	f := newFixture(t, 1_000_000)
	id, _ := f.engine.CreateVault(f.owner, big.NewInt(100))

	if err := f.engine.AddCollateral(f.other, id, big.NewInt(5)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorised, got %v", err)
	}
	if err := f.engine.AddCollateral(f.owner, id, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := f.engine.AddCollateral(f.owner, id, big.NewInt(50)); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	v, _, _ := f.engine.Vault(id)
	if v.Collateral.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected collateral 150, got %s", v.Collateral)
	}
}

func TestCustodyMovesCollateral(t *testing.T) {
	f := newFixture(t, 1_000_000)
	stx := newFakeLedger(crypto.Address{})
	stx.balances[string(f.owner.Bytes())] = big.NewInt(1_000)
	f.engine.SetCustody(stx)

	id, err := f.engine.CreateVault(f.owner, big.NewInt(600))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.AddCollateral(f.owner, id, big.NewInt(500)); !errors.Is(err, ErrCollateralBalance) {
		t.Fatalf("expected collateral balance error, got %v", err)
	}
	if err := f.engine.AddCollateral(f.owner, id, big.NewInt(400)); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	custody, _ := stx.Balance(makeAddress(crypto.ModulePrefix, 0xBB))
	if custody.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected custody to hold 1000, got %s", custody)
	}
	if _, err := f.engine.CreateVault(f.other, big.NewInt(1)); !errors.Is(err, nativecommon.ErrInsufficientBalance) {
		t.Fatalf("unfunded create should fail, got %v", err)
	}
}

func TestCollateralRatioReads(t *testing.T) {
	f := newFixture(t, 1_000_000)
	if _, ok, err := f.engine.CollateralRatio(42); ok || err != nil {
		t.Fatalf("missing vault should report ok=false, got ok=%v err=%v", ok, err)
	}
	id, _ := f.engine.CreateVault(f.owner, big.NewInt(300))
	f.feed.entry = nil
	ratio, ok, err := f.engine.CollateralRatio(id)
	if err != nil || !ok || ratio.Cmp(MaxRatio) != 0 {
		t.Fatalf("debt-free vault should report MaxRatio without a price, got %v %v %v", ratio, ok, err)
	}
}

func TestMaxMintable(t *testing.T) {
	f := newFixture(t, 1_000_000)
	id, _ := f.engine.CreateVault(f.owner, big.NewInt(150_000_000))
	limit, err := f.engine.MaxMintable(id)
	if err != nil {
		t.Fatalf("max mintable: %v", err)
	}
	if limit.Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("expected 100000000, got %s", limit)
	}
	if err := f.engine.MintDebt(f.owner, id, limit); err != nil {
		t.Fatalf("minting the reported maximum must pass: %v", err)
	}
}

func TestPausedVaultModule(t *testing.T) {
	f := newFixture(t, 1_000_000)
	f.engine.SetPauses(nativecommon.NewPauses(nativecommon.ModuleVault))
	if _, err := f.engine.CreateVault(f.owner, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	if _, err := f.engine.TotalDebt(); err != nil {
		t.Fatalf("reads must stay available: %v", err)
	}
}
