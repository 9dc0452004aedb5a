package events

import (
	"math/big"

	"cdpchain/core/types"
	"cdpchain/crypto"
)

const (
	TypeOraclePriceSet         = "oracle.price_set"
	TypeOracleSourceAuthorized = "oracle.source_authorized"
	TypeOracleSourceRevoked    = "oracle.source_revoked"
	TypeOracleOwnerTransferred = "oracle.owner_transferred"
)

type OraclePriceSet struct {
	Asset     string
	Price     *big.Int
	Timestamp uint64
	Source    crypto.Address
}

func (OraclePriceSet) EventType() string { return TypeOraclePriceSet }

func (e OraclePriceSet) Event() *types.Event {
	return &types.Event{
		Type: TypeOraclePriceSet,
		Attributes: map[string]string{
			"asset":     normalizeAsset(e.Asset),
			"price":     formatAmount(e.Price),
			"timestamp": uintToString(e.Timestamp),
			"source":    e.Source.String(),
		},
	}
}

// OracleSourceChanged covers both authorisation and revocation; Revoked
// selects the event type.
type OracleSourceChanged struct {
	Source  crypto.Address
	By      crypto.Address
	Revoked bool
}

func (e OracleSourceChanged) EventType() string {
	if e.Revoked {
		return TypeOracleSourceRevoked
	}
	return TypeOracleSourceAuthorized
}

func (e OracleSourceChanged) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"source": e.Source.String(),
			"by":     e.By.String(),
		},
	}
}

type OracleOwnerTransferred struct {
	Previous crypto.Address
	Owner    crypto.Address
}

func (OracleOwnerTransferred) EventType() string { return TypeOracleOwnerTransferred }

func (e OracleOwnerTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeOracleOwnerTransferred,
		Attributes: map[string]string{
			"previous": e.Previous.String(),
			"owner":    e.Owner.String(),
		},
	}
}
