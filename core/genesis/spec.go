// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"cdpchain/crypto"
	"cdpchain/native/vault"
)

// Default token symbols of the launch deployment.
const (
	SymbolGovernance = "ARE"
	SymbolStable     = "DIKO"
	SymbolCollateral = "STX"
)

type GenesisSpec struct {
	GenesisTime string                       `json:"genesisTime"`
	Deployer    string                       `json:"deployer"`
	Tokens      []TokenSpec                  `json:"tokens"`
	Alloc       map[string]map[string]string `json:"alloc"` // addr -> token -> amount
	Oracle      OracleSpec                   `json:"oracle"`
	Vault       *VaultSpec                   `json:"vault,omitempty"`

	genesisTimestamp time.Time
}

type TokenSpec struct {
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Decimals uint8    `json:"decimals"`
	Owner    string   `json:"owner,omitempty"`
	Minters  []string `json:"minters,omitempty"`
}

type OracleSpec struct {
	Owner   string            `json:"owner,omitempty"`
	Sources []string          `json:"sources,omitempty"`
	Prices  map[string]string `json:"prices,omitempty"` // asset -> micro-dollars
}

type VaultSpec struct {
	MinCollateralRatioBps uint64 `json:"minCollateralRatioBps,omitempty"`
	BaseAsset             string `json:"baseAsset,omitempty"`
	MaxPriceAgeSeconds    uint64 `json:"maxPriceAgeSeconds,omitempty"`
}

// Params converts the vault section into engine parameters, filling defaults.
func (v *VaultSpec) Params() vault.Params {
	params := vault.DefaultParams()
	if v == nil {
		return params
	}
	if v.MinCollateralRatioBps != 0 {
		params.MinCollateralRatioBps = v.MinCollateralRatioBps
	}
	if strings.TrimSpace(v.BaseAsset) != "" {
		params.BaseAsset = strings.ToUpper(strings.TrimSpace(v.BaseAsset))
	}
	params.MaxPriceAge = v.MaxPriceAgeSeconds
	return params
}

// DefaultSpec mirrors the launch deployment: ARE governance supply to the
// deployer, DIKO minted only by the vault module, an STX collateral ledger and
// a $1.00 STX price published by the deployer.
func DefaultSpec(deployer crypto.Address) *GenesisSpec {
	owner := deployer.String()
	epoch := time.Unix(0, 0).UTC()
	return &GenesisSpec{
		GenesisTime: epoch.Format(time.RFC3339),
		Deployer:    owner,
		Tokens: []TokenSpec{
			{Symbol: SymbolGovernance, Name: "Arkadiko Token", Decimals: 6, Owner: owner},
			{Symbol: SymbolStable, Name: "DIKO Stablecoin", Decimals: 6, Owner: owner, Minters: []string{crypto.ModuleAddress("vault").String()}},
			{Symbol: SymbolCollateral, Name: "Stacks", Decimals: 6, Owner: owner},
		},
		Alloc: map[string]map[string]string{
			owner: {
				SymbolGovernance: "1000000000",
				SymbolCollateral: "10000000000",
			},
		},
		Oracle: OracleSpec{
			Owner:  owner,
			Prices: map[string]string{SymbolCollateral: "1000000"},
		},
		Vault: &VaultSpec{
			MinCollateralRatioBps: vault.DefaultMinCollateralRatioBps,
			BaseAsset:             vault.DefaultBaseAsset,
		},
		genesisTimestamp: epoch,
	}
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// WriteGenesisSpec stores spec as indented JSON.
func WriteGenesisSpec(path string, spec *GenesisSpec) error {
	raw, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	if _, err := parseAddress(s.Deployer); err != nil {
		return fmt.Errorf("deployer: %w", err)
	}

	tokenSymbols := make(map[string]struct{}, len(s.Tokens))
	for i := range s.Tokens {
		if err := s.Tokens[i].validate(); err != nil {
			return fmt.Errorf("token[%d]: %w", i, err)
		}
		key := strings.ToUpper(strings.TrimSpace(s.Tokens[i].Symbol))
		if _, exists := tokenSymbols[key]; exists {
			return fmt.Errorf("token[%d]: duplicate symbol %q", i, s.Tokens[i].Symbol)
		}
		tokenSymbols[key] = struct{}{}
	}
	if _, ok := tokenSymbols[SymbolStable]; !ok {
		return fmt.Errorf("tokens: %s must be declared", SymbolStable)
	}

	for addr, balances := range s.Alloc {
		if _, err := parseAddress(addr); err != nil {
			return fmt.Errorf("alloc %q: %w", addr, err)
		}
		for symbol, amount := range balances {
			if _, ok := tokenSymbols[strings.ToUpper(strings.TrimSpace(symbol))]; !ok {
				return fmt.Errorf("alloc %q: unknown token %q", addr, symbol)
			}
			if _, err := parseAmountString(amount); err != nil {
				return fmt.Errorf("alloc %q %s: %w", addr, symbol, err)
			}
		}
	}

	if strings.TrimSpace(s.Oracle.Owner) != "" {
		if _, err := parseAddress(s.Oracle.Owner); err != nil {
			return fmt.Errorf("oracle.owner: %w", err)
		}
	}
	for i, source := range s.Oracle.Sources {
		if _, err := parseAddress(source); err != nil {
			return fmt.Errorf("oracle.sources[%d]: %w", i, err)
		}
	}
	for asset, price := range s.Oracle.Prices {
		amount, err := parseAmountString(price)
		if err != nil {
			return fmt.Errorf("oracle.prices[%s]: %w", asset, err)
		}
		if amount.Sign() == 0 {
			return fmt.Errorf("oracle.prices[%s]: price must be positive", asset)
		}
	}

	if err := s.Vault.Params().Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	return nil
}

func (t *TokenSpec) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol must be provided")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name must be provided")
	}
	if t.Decimals > 18 {
		return fmt.Errorf("decimals must be 18 or fewer")
	}
	if strings.TrimSpace(t.Owner) != "" {
		if _, err := parseAddress(t.Owner); err != nil {
			return fmt.Errorf("owner: %w", err)
		}
	}
	for i, minter := range t.Minters {
		if _, err := parseAddress(minter); err != nil {
			return fmt.Errorf("minters[%d]: %w", i, err)
		}
	}
	return nil
}

func parseAddress(value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, err
	}
	if addr.IsZero() {
		return crypto.Address{}, fmt.Errorf("address must not be zero")
	}
	return addr, nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	if amount.BitLen() > 128 {
		return nil, fmt.Errorf("amount exceeds 128 bits")
	}
	return amount, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
