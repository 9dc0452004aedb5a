// core/genesis/loader.go
package genesis

import (
	"fmt"
	"sort"
	"strings"

	"cdpchain/crypto"
	"cdpchain/native/oracle"
	"cdpchain/native/token"
)

// Target is the set of engines genesis seeds. All engines must share the
// same underlying state.
type Target struct {
	Oracle *oracle.Engine
	Tokens map[string]*token.Engine
}

// Apply writes the genesis state through the engines. Iteration is sorted so
// the same spec always produces the same writes.
func Apply(spec *GenesisSpec, target Target) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if target.Oracle == nil {
		return fmt.Errorf("genesis: oracle engine must not be nil")
	}
	deployer, err := parseAddress(spec.Deployer)
	if err != nil {
		return fmt.Errorf("genesis deployer: %w", err)
	}

	allocs, err := spec.allocationsBySymbol()
	if err != nil {
		return err
	}

	// 1) Tokens (sorted) with owners, genesis balances and minters.
	tokens := append([]TokenSpec(nil), spec.Tokens...)
	sort.Slice(tokens, func(i, j int) bool {
		return strings.ToUpper(tokens[i].Symbol) < strings.ToUpper(tokens[j].Symbol)
	})
	for i := range tokens {
		ts := &tokens[i]
		symbol := token.NormalizeSymbol(ts.Symbol)
		engine, ok := target.Tokens[symbol]
		if !ok {
			return fmt.Errorf("genesis token %q: no ledger configured", symbol)
		}
		owner := deployer
		if strings.TrimSpace(ts.Owner) != "" {
			if owner, err = parseAddress(ts.Owner); err != nil {
				return fmt.Errorf("token %q owner: %w", symbol, err)
			}
		}
		meta := token.Metadata{Symbol: symbol, Name: strings.TrimSpace(ts.Name), Decimals: ts.Decimals}
		if err := engine.Register(meta, owner, allocs[symbol]...); err != nil {
			return fmt.Errorf("register token %q: %w", symbol, err)
		}
		for _, raw := range ts.Minters {
			minter, err := parseAddress(raw)
			if err != nil {
				return fmt.Errorf("token %q minter: %w", symbol, err)
			}
			if err := engine.GrantMinter(minter); err != nil {
				return fmt.Errorf("token %q minter %s: %w", symbol, minter, err)
			}
		}
	}

	// 2) Oracle owner, sources and opening prices.
	oracleOwner := deployer
	if strings.TrimSpace(spec.Oracle.Owner) != "" {
		if oracleOwner, err = parseAddress(spec.Oracle.Owner); err != nil {
			return fmt.Errorf("oracle owner: %w", err)
		}
	}
	if err := target.Oracle.Init(oracleOwner); err != nil {
		return fmt.Errorf("oracle init: %w", err)
	}
	sources := append([]string(nil), spec.Oracle.Sources...)
	sort.Strings(sources)
	for _, raw := range sources {
		source, err := parseAddress(raw)
		if err != nil {
			return fmt.Errorf("oracle source: %w", err)
		}
		if err := target.Oracle.AuthorizeSource(oracleOwner, source); err != nil {
			return fmt.Errorf("oracle source %s: %w", source, err)
		}
	}
	assets := make([]string, 0, len(spec.Oracle.Prices))
	for asset := range spec.Oracle.Prices {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		price, err := parseAmountString(spec.Oracle.Prices[asset])
		if err != nil {
			return fmt.Errorf("oracle price %s: %w", asset, err)
		}
		if err := target.Oracle.SetPrice(oracleOwner, asset, price); err != nil {
			return fmt.Errorf("oracle price %s: %w", asset, err)
		}
	}
	return nil
}

// allocationsBySymbol regroups the address-keyed alloc table per token with
// addresses sorted.
func (s *GenesisSpec) allocationsBySymbol() (map[string][]token.Allocation, error) {
	addresses := make([]string, 0, len(s.Alloc))
	for addr := range s.Alloc {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	out := make(map[string][]token.Allocation)
	for _, raw := range addresses {
		account, err := parseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("alloc %q: %w", raw, err)
		}
		symbols := make([]string, 0, len(s.Alloc[raw]))
		for symbol := range s.Alloc[raw] {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			amount, err := parseAmountString(s.Alloc[raw][symbol])
			if err != nil {
				return nil, fmt.Errorf("alloc %q %s: %w", raw, symbol, err)
			}
			if amount.Sign() == 0 {
				continue
			}
			key := token.NormalizeSymbol(symbol)
			out[key] = append(out[key], token.Allocation{Account: account, Amount: amount})
		}
	}
	return out, nil
}

// DeployerAddress returns the parsed deployer principal.
func (s *GenesisSpec) DeployerAddress() (crypto.Address, error) {
	return parseAddress(s.Deployer)
}
