package state

import (
	"math/big"
	"testing"

	"cdpchain/crypto"
	"cdpchain/native/oracle"
	"cdpchain/native/token"
	"cdpchain/native/vault"
)

func makeAddress(prefix crypto.AddressPrefix, fill byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	for i := range raw {
		raw[i] = fill
	}
	return crypto.NewAddress(prefix, raw)
}

func TestOracleAccessors(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	owner := makeAddress(crypto.CDPPrefix, 0x01)
	feeder := makeAddress(crypto.ModulePrefix, 0x02)

	if _, ok, err := mgr.OracleOwner(); ok || err != nil {
		t.Fatalf("fresh state should have no owner")
	}
	if err := mgr.OracleSetOwner(owner); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	got, ok, err := mgr.OracleOwner()
	if err != nil || !ok || !got.Equal(owner) {
		t.Fatalf("owner round trip failed: %s %v %v", got, ok, err)
	}

	if err := mgr.OracleSetSource(feeder, true); err != nil {
		t.Fatalf("set source: %v", err)
	}
	sources, err := mgr.OracleSources()
	if err != nil || len(sources) != 1 {
		t.Fatalf("expected one source, got %v (%v)", sources, err)
	}
	if sources[0].Prefix() != crypto.ModulePrefix {
		t.Fatalf("source prefix should survive storage, got %s", sources[0].Prefix())
	}

	entry := &oracle.PriceEntry{Asset: "STX", Price: big.NewInt(1_000_000), Timestamp: 7, Source: feeder}
	if err := mgr.OraclePutPrice(entry); err != nil {
		t.Fatalf("put price: %v", err)
	}
	loaded, ok, err := mgr.OraclePrice("STX")
	if err != nil || !ok {
		t.Fatalf("load price: ok=%v err=%v", ok, err)
	}
	if loaded.Price.Cmp(entry.Price) != 0 || loaded.Timestamp != 7 || !loaded.Source.Equal(feeder) {
		t.Fatalf("unexpected price entry %+v", loaded)
	}
}

func TestTokenAccessors(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	holder := makeAddress(crypto.CDPPrefix, 0x0A)

	if err := mgr.TokenPutMetadata(&token.Metadata{Symbol: "DIKO", Name: "DIKO Stablecoin", Decimals: 6}); err != nil {
		t.Fatalf("put metadata: %v", err)
	}
	meta, ok, err := mgr.TokenMetadata("DIKO")
	if err != nil || !ok || meta.Name != "DIKO Stablecoin" || meta.Decimals != 6 {
		t.Fatalf("unexpected metadata %+v (%v)", meta, err)
	}

	bal, err := mgr.TokenBalance("DIKO", holder)
	if err != nil || bal.Sign() != 0 {
		t.Fatalf("unknown holder should have zero balance")
	}
	if err := mgr.TokenSetBalance("DIKO", holder, big.NewInt(25)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	bal, _ = mgr.TokenBalance("DIKO", holder)
	if bal.Int64() != 25 {
		t.Fatalf("expected 25, got %s", bal)
	}
	if other, _ := mgr.TokenBalance("ARE", holder); other.Sign() != 0 {
		t.Fatalf("balances must be per token")
	}
	if err := mgr.TokenSetBalance("DIKO", holder, big.NewInt(-1)); err == nil {
		t.Fatalf("negative balance should be rejected")
	}
}

func TestVaultAccessors(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	owner := makeAddress(crypto.CDPPrefix, 0x01)

	for want := uint64(1); want <= 3; want++ {
		id, err := mgr.VaultNextID()
		if err != nil || id != want {
			t.Fatalf("expected id %d, got %d (%v)", want, id, err)
		}
	}
	v := &vault.Vault{ID: 2, Owner: owner, Collateral: big.NewInt(100), Debt: big.NewInt(0), CreatedAt: 9}
	if err := mgr.VaultPut(v); err != nil {
		t.Fatalf("put vault: %v", err)
	}
	loaded, ok, err := mgr.VaultGet(2)
	if err != nil || !ok {
		t.Fatalf("get vault: ok=%v err=%v", ok, err)
	}
	if !loaded.Owner.Equal(owner) || loaded.Collateral.Int64() != 100 || loaded.Debt.Sign() != 0 || loaded.CreatedAt != 9 {
		t.Fatalf("unexpected vault %+v", loaded)
	}
	if _, ok, _ := mgr.VaultGet(5); ok {
		t.Fatalf("unknown vault reported present")
	}

	_ = mgr.VaultAppendOwner(owner, 2)
	_ = mgr.VaultAppendOwner(owner, 3)
	ids, err := mgr.VaultsByOwner(owner)
	if err != nil || len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("unexpected owner index %v (%v)", ids, err)
	}

	if err := mgr.VaultSetTotalDebt(big.NewInt(500)); err != nil {
		t.Fatalf("set total debt: %v", err)
	}
	total, _ := mgr.VaultTotalDebt()
	if total.Int64() != 500 {
		t.Fatalf("expected 500, got %s", total)
	}
}
