package core

import (
	"context"
	"math/big"

	"cdpchain/crypto"
	"cdpchain/native/token"
)

// Tokens lists the ledgers the protocol serves.
func (p *Protocol) Tokens() []string {
	return append([]string(nil), defaultTokenSymbols...)
}

func (p *Protocol) TokenMetadata(ctx context.Context, symbol string) (*token.Metadata, error) {
	var meta *token.Metadata
	err := p.view(ctx, func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		meta, err = engine.Metadata()
		return err
	})
	return meta, err
}

func (p *Protocol) Balance(ctx context.Context, symbol string, addr crypto.Address) (*big.Int, error) {
	var bal *big.Int
	err := p.view(ctx, func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		bal, err = engine.Balance(addr)
		return err
	})
	return bal, err
}

func (p *Protocol) TotalSupply(ctx context.Context, symbol string) (*big.Int, error) {
	var supply *big.Int
	err := p.view(ctx, func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		supply, err = engine.TotalSupply()
		return err
	})
	return supply, err
}

func (p *Protocol) Transfer(ctx context.Context, symbol string, caller crypto.Address, amount *big.Int, from, to crypto.Address, memo string) error {
	return p.execute(ctx, "token_transfer", func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		return engine.Transfer(caller, amount, from, to, memo)
	})
}

func (p *Protocol) Mint(ctx context.Context, symbol string, caller crypto.Address, amount *big.Int, recipient crypto.Address) error {
	return p.execute(ctx, "token_mint", func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		return engine.Mint(caller, amount, recipient)
	})
}

func (p *Protocol) Burn(ctx context.Context, symbol string, caller crypto.Address, amount *big.Int, holder crypto.Address) error {
	return p.execute(ctx, "token_burn", func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		return engine.Burn(caller, amount, holder)
	})
}

func (p *Protocol) AuthorizeMinter(ctx context.Context, symbol string, caller, minter crypto.Address) error {
	return p.execute(ctx, "token_authorize_minter", func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		return engine.AuthorizeMinter(caller, minter)
	})
}

func (p *Protocol) RevokeMinter(ctx context.Context, symbol string, caller, minter crypto.Address) error {
	return p.execute(ctx, "token_revoke_minter", func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		return engine.RevokeMinter(caller, minter)
	})
}

func (p *Protocol) IsMinter(ctx context.Context, symbol string, addr crypto.Address) (bool, error) {
	var ok bool
	err := p.view(ctx, func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		ok, err = engine.IsMinter(addr)
		return err
	})
	return ok, err
}

func (p *Protocol) Minters(ctx context.Context, symbol string) ([]crypto.Address, error) {
	var minters []crypto.Address
	err := p.view(ctx, func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		minters, err = engine.Minters()
		return err
	})
	return minters, err
}

func (p *Protocol) TokenOwner(ctx context.Context, symbol string) (crypto.Address, error) {
	var owner crypto.Address
	err := p.view(ctx, func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		owner, err = engine.Owner()
		return err
	})
	return owner, err
}

func (p *Protocol) TransferTokenOwnership(ctx context.Context, symbol string, caller, newOwner crypto.Address) error {
	return p.execute(ctx, "token_transfer_ownership", func(e *engines) error {
		engine, err := e.token(symbol)
		if err != nil {
			return err
		}
		return engine.TransferOwnership(caller, newOwner)
	})
}
