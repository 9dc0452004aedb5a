package events

import (
	"math/big"
	"strings"

	"cdpchain/core/types"
	"cdpchain/crypto"
)

const (
	TypeTokenMinted           = "token.minted"
	TypeTokenBurned           = "token.burned"
	TypeTokenTransferred      = "token.transferred"
	TypeTokenMinterAuthorized = "token.minter_authorized"
	TypeTokenMinterRevoked    = "token.minter_revoked"
	TypeTokenOwnerTransferred = "token.owner_transferred"
)

// TokenSupplyChanged is emitted for mints and burns.
type TokenSupplyChanged struct {
	Token   string
	Account crypto.Address
	Amount  *big.Int
	Minter  crypto.Address
	Burned  bool
}

func (e TokenSupplyChanged) EventType() string {
	if e.Burned {
		return TypeTokenBurned
	}
	return TypeTokenMinted
}

func (e TokenSupplyChanged) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"token":   normalizeAsset(e.Token),
			"account": e.Account.String(),
			"amount":  formatAmount(e.Amount),
			"minter":  e.Minter.String(),
		},
	}
}

type TokenTransferred struct {
	Token  string
	From   crypto.Address
	To     crypto.Address
	Amount *big.Int
	Memo   string
}

func (TokenTransferred) EventType() string { return TypeTokenTransferred }

func (e TokenTransferred) Event() *types.Event {
	attrs := map[string]string{
		"token":  normalizeAsset(e.Token),
		"from":   e.From.String(),
		"to":     e.To.String(),
		"amount": formatAmount(e.Amount),
	}
	if memo := strings.TrimSpace(e.Memo); memo != "" {
		attrs["memo"] = memo
	}
	return &types.Event{Type: TypeTokenTransferred, Attributes: attrs}
}

type TokenMinterChanged struct {
	Token   string
	Minter  crypto.Address
	By      crypto.Address
	Revoked bool
}

func (e TokenMinterChanged) EventType() string {
	if e.Revoked {
		return TypeTokenMinterRevoked
	}
	return TypeTokenMinterAuthorized
}

func (e TokenMinterChanged) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"token":  normalizeAsset(e.Token),
			"minter": e.Minter.String(),
			"by":     e.By.String(),
		},
	}
}

type TokenOwnerTransferred struct {
	Token    string
	Previous crypto.Address
	Owner    crypto.Address
}

func (TokenOwnerTransferred) EventType() string { return TypeTokenOwnerTransferred }

func (e TokenOwnerTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenOwnerTransferred,
		Attributes: map[string]string{
			"token":    normalizeAsset(e.Token),
			"previous": e.Previous.String(),
			"owner":    e.Owner.String(),
		},
	}
}
