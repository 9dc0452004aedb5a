package observability

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"cdpchain/core/events"
)

func TestProtocolMetrics(t *testing.T) {
	m := Protocol()
	counter := m.operations.WithLabelValues("mint_debt", "rejected")
	before := testutil.ToFloat64(counter)

	m.ObserveOperation("mint_debt", "rejected", 2*time.Millisecond)
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("expected counter %v, got %v", before+1, got)
	}

	m.SetTotalDebt(big.NewInt(2_500_000))
	if got := testutil.ToFloat64(m.totalDebt); got != 2.5 {
		t.Fatalf("expected total debt 2.5, got %v", got)
	}
}

func TestModuleMetricsCountsErrors(t *testing.T) {
	m := ModuleMetrics()
	errs := m.errors.WithLabelValues("vault", "mint", "422")
	before := testutil.ToFloat64(errs)
	m.Observe("vault", "mint", 422, time.Millisecond)
	m.Observe("vault", "mint", 200, time.Millisecond)
	if got := testutil.ToFloat64(errs); got != before+1 {
		t.Fatalf("expected one error recorded, got %v", got-before)
	}
}

func TestEventMetricsCountsByType(t *testing.T) {
	m := Events()
	counter := m.emitted.WithLabelValues(events.TypeVaultCreated)
	before := testutil.ToFloat64(counter)
	m.Emit(events.VaultCreated{VaultID: 1})
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("expected increment, got %v", got-before)
	}
}
