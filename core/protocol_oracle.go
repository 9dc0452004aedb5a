package core

import (
	"context"
	"math/big"

	"cdpchain/crypto"
	"cdpchain/native/oracle"
)

func (p *Protocol) SetPrice(ctx context.Context, caller crypto.Address, asset string, price *big.Int) error {
	return p.execute(ctx, "oracle_set_price", func(e *engines) error {
		return e.oracle.SetPrice(caller, asset, price)
	})
}

func (p *Protocol) GetPrice(ctx context.Context, asset string) (*big.Int, error) {
	var price *big.Int
	err := p.view(ctx, func(e *engines) error {
		var err error
		price, err = e.oracle.GetPrice(asset)
		return err
	})
	return price, err
}

func (p *Protocol) GetPriceInfo(ctx context.Context, asset string) (*oracle.PriceEntry, bool, error) {
	var (
		entry *oracle.PriceEntry
		ok    bool
	)
	err := p.view(ctx, func(e *engines) error {
		var err error
		entry, ok, err = e.oracle.GetPriceInfo(asset)
		return err
	})
	return entry, ok, err
}

func (p *Protocol) AuthorizeSource(ctx context.Context, caller, source crypto.Address) error {
	return p.execute(ctx, "oracle_authorize_source", func(e *engines) error {
		return e.oracle.AuthorizeSource(caller, source)
	})
}

func (p *Protocol) RevokeSource(ctx context.Context, caller, source crypto.Address) error {
	return p.execute(ctx, "oracle_revoke_source", func(e *engines) error {
		return e.oracle.RevokeSource(caller, source)
	})
}

func (p *Protocol) IsAuthorizedSource(ctx context.Context, addr crypto.Address) (bool, error) {
	var ok bool
	err := p.view(ctx, func(e *engines) error {
		var err error
		ok, err = e.oracle.IsAuthorizedSource(addr)
		return err
	})
	return ok, err
}

func (p *Protocol) OracleSources(ctx context.Context) ([]crypto.Address, error) {
	var sources []crypto.Address
	err := p.view(ctx, func(e *engines) error {
		var err error
		sources, err = e.oracle.Sources()
		return err
	})
	return sources, err
}

func (p *Protocol) OracleOwner(ctx context.Context) (crypto.Address, error) {
	var owner crypto.Address
	err := p.view(ctx, func(e *engines) error {
		var err error
		owner, err = e.oracle.Owner()
		return err
	})
	return owner, err
}

func (p *Protocol) TransferOracleOwnership(ctx context.Context, caller, newOwner crypto.Address) error {
	return p.execute(ctx, "oracle_transfer_ownership", func(e *engines) error {
		return e.oracle.TransferOwnership(caller, newOwner)
	})
}
