package events

import (
	"math/big"
	"testing"

	"cdpchain/crypto"
)

type recorder struct {
	got []Event
}

func (r *recorder) Emit(evt Event) { r.got = append(r.got, evt) }

func TestBufferFlushDeliversInOrder(t *testing.T) {
	owner := crypto.ModuleAddress("test-owner")
	buf := &Buffer{}
	buf.Emit(VaultCreated{VaultID: 1, Owner: owner, Collateral: big.NewInt(10)})
	buf.Emit(VaultDebtMinted{VaultID: 1, Owner: owner, Amount: big.NewInt(5), Debt: big.NewInt(5)})

	rec := &recorder{}
	buf.Flush(rec)
	if len(rec.got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.got))
	}
	if rec.got[0].EventType() != TypeVaultCreated || rec.got[1].EventType() != TypeVaultDebtMinted {
		t.Fatalf("unexpected order: %s, %s", rec.got[0].EventType(), rec.got[1].EventType())
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("flush should clear the buffer")
	}
}

func TestBufferResetDropsEvents(t *testing.T) {
	buf := &Buffer{}
	buf.Emit(OraclePriceSet{Asset: "stx", Price: big.NewInt(1)})
	buf.Reset()

	rec := &recorder{}
	buf.Flush(rec)
	if len(rec.got) != 0 {
		t.Fatalf("reset buffer must not deliver events")
	}
}

func TestEventAttributes(t *testing.T) {
	source := crypto.ModuleAddress("feeder")
	evt := OraclePriceSet{Asset: " stx ", Price: big.NewInt(1_000_000), Timestamp: 42, Source: source}.Event()
	if evt.Attr("asset") != "STX" {
		t.Fatalf("asset should be normalised, got %q", evt.Attr("asset"))
	}
	if evt.Attr("price") != "1000000" || evt.Attr("timestamp") != "42" {
		t.Fatalf("unexpected attributes: %+v", evt.Attributes)
	}
	if evt.Attr("source") != source.String() {
		t.Fatalf("unexpected source %q", evt.Attr("source"))
	}

	burned := TokenSupplyChanged{Token: "diko", Amount: big.NewInt(3), Burned: true}
	if burned.EventType() != TypeTokenBurned {
		t.Fatalf("burn should map to %s", TypeTokenBurned)
	}
	if (TokenTransferred{Token: "are"}).Event().Attr("memo") != "" {
		t.Fatalf("empty memo should be omitted")
	}
}

func TestFanoutSkipsNil(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Fanout{a, nil, b}.Emit(VaultDebtRepaid{VaultID: 7})
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("fanout should reach every non-nil emitter")
	}
}
