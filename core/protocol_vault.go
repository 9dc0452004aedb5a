package core

import (
	"context"
	"math/big"

	"cdpchain/core/genesis"
	"cdpchain/crypto"
	"cdpchain/native/token"
	"cdpchain/native/vault"
)

func (p *Protocol) CreateVault(ctx context.Context, caller crypto.Address, collateral *big.Int) (uint64, error) {
	var id uint64
	err := p.execute(ctx, "create_vault", func(e *engines) error {
		var err error
		id, err = e.vault.CreateVault(caller, collateral)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (p *Protocol) AddCollateral(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) error {
	return p.execute(ctx, "add_collateral", func(e *engines) error {
		return e.vault.AddCollateral(caller, id, amount)
	})
}

func (p *Protocol) MintDebt(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) error {
	return p.execute(ctx, "mint_debt", func(e *engines) error {
		return e.vault.MintDebt(caller, id, amount)
	})
}

func (p *Protocol) RepayDebt(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error) {
	var repaid *big.Int
	err := p.execute(ctx, "repay_debt", func(e *engines) error {
		var err error
		repaid, err = e.vault.RepayDebt(caller, id, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return repaid, nil
}

func (p *Protocol) Vault(ctx context.Context, id uint64) (*vault.Vault, bool, error) {
	var (
		v  *vault.Vault
		ok bool
	)
	err := p.view(ctx, func(e *engines) error {
		var err error
		v, ok, err = e.vault.Vault(id)
		return err
	})
	return v, ok, err
}

func (p *Protocol) UserVaults(ctx context.Context, owner crypto.Address) ([]uint64, error) {
	var ids []uint64
	err := p.view(ctx, func(e *engines) error {
		var err error
		ids, err = e.vault.UserVaults(owner)
		return err
	})
	return ids, err
}

// CollateralRatio reports the ratio in basis points; ok is false for unknown
// vaults.
func (p *Protocol) CollateralRatio(ctx context.Context, id uint64) (*big.Int, bool, error) {
	var (
		ratio *big.Int
		ok    bool
	)
	err := p.view(ctx, func(e *engines) error {
		var err error
		ratio, ok, err = e.vault.CollateralRatio(id)
		return err
	})
	return ratio, ok, err
}

func (p *Protocol) MaxMintable(ctx context.Context, id uint64) (*big.Int, error) {
	var limit *big.Int
	err := p.view(ctx, func(e *engines) error {
		var err error
		limit, err = e.vault.MaxMintable(id)
		return err
	})
	return limit, err
}

func (p *Protocol) TotalDebt(ctx context.Context) (*big.Int, error) {
	var total *big.Int
	err := p.view(ctx, func(e *engines) error {
		var err error
		total, err = e.vault.TotalDebt()
		return err
	})
	return total, err
}

// DebtToken returns the stablecoin metadata exposed on the vault surface.
func (p *Protocol) DebtToken(ctx context.Context) (*token.Metadata, error) {
	var meta *token.Metadata
	err := p.view(ctx, func(e *engines) error {
		var err error
		meta, err = e.tokens[genesis.SymbolStable].Metadata()
		return err
	})
	return meta, err
}

func (p *Protocol) DebtBalance(ctx context.Context, addr crypto.Address) (*big.Int, error) {
	var bal *big.Int
	err := p.view(ctx, func(e *engines) error {
		var err error
		bal, err = e.vault.DebtBalance(addr)
		return err
	})
	return bal, err
}
