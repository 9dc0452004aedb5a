package common

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

func TestCheckAmount(t *testing.T) {
	cases := []struct {
		name string
		v    *big.Int
		want bool
	}{
		{"nil", nil, false},
		{"zero", big.NewInt(0), false},
		{"negative", big.NewInt(-1), false},
		{"one", big.NewInt(1), true},
		{"max", new(big.Int).Set(MaxUint128), true},
		{"overflow", new(big.Int).Add(MaxUint128, big.NewInt(1)), false},
		{"beyond 256 bits", new(big.Int).Lsh(big.NewInt(1), 300), false},
	}
	for _, tc := range cases {
		if got := CheckAmount(tc.v); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCheckedAdd(t *testing.T) {
	sum, ok := CheckedAdd(big.NewInt(2), big.NewInt(3))
	if !ok || sum.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected sum %v ok=%v", sum, ok)
	}
	if _, ok := CheckedAdd(MaxUint128, big.NewInt(1)); ok {
		t.Fatalf("expected 128-bit overflow")
	}
}

func TestFormatAndParseUnits(t *testing.T) {
	if got := FormatUnits(big.NewInt(1_500_000), 6); got != "1.500000" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatUnits(nil, 6); got != "0.000000" {
		t.Fatalf("unexpected zero format %q", got)
	}
	v, ok := ParseUnits("1000.25", 6)
	if !ok || v.Cmp(big.NewInt(1_000_250_000)) != 0 {
		t.Fatalf("unexpected parse %v ok=%v", v, ok)
	}
	if _, ok := ParseUnits("0.0000001", 6); ok {
		t.Fatalf("expected excess precision to be rejected")
	}
}

func TestCodedErrors(t *testing.T) {
	errDenied := NewClassedError(300, "vault engine: not authorized", ErrNotAuthorized)
	wrapped := fmt.Errorf("mint: %w", errDenied)

	if !errors.Is(wrapped, errDenied) {
		t.Fatalf("expected sentinel identity to survive wrapping")
	}
	if !errors.Is(wrapped, ErrNotAuthorized) {
		t.Fatalf("expected class match")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("unexpected class match")
	}
	code, ok := CodeOf(wrapped)
	if !ok || code != 300 {
		t.Fatalf("unexpected code %d ok=%v", code, ok)
	}
	if _, ok := CodeOf(errors.New("disk on fire")); ok {
		t.Fatalf("plain errors carry no code")
	}
}

func TestPausesGuard(t *testing.T) {
	p := NewPauses("Vault")
	if err := Guard(p, ModuleVault); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected vault to be paused, got %v", err)
	}
	if err := Guard(p, ModuleOracle); err != nil {
		t.Fatalf("oracle should not be paused: %v", err)
	}
	p.Set("vault", false)
	if err := Guard(p, ModuleVault); err != nil {
		t.Fatalf("vault should be unpaused: %v", err)
	}
	if err := Guard(nil, ModuleVault); err != nil {
		t.Fatalf("nil view never pauses")
	}
}
