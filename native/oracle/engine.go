package oracle

import (
	"errors"
	"math/big"
	"time"

	"cdpchain/core/events"
	"cdpchain/crypto"
	nativecommon "cdpchain/native/common"
)

const moduleName = nativecommon.ModuleOracle

var (
	errNilState = errors.New("oracle engine: state not configured")

	ErrNotAuthorized = nativecommon.NewClassedError(200, "oracle engine: caller not authorized", nativecommon.ErrNotAuthorized)
	ErrPriceNotFound = nativecommon.NewClassedError(201, "oracle engine: no price recorded for asset", nativecommon.ErrNotFound)
	ErrInvalidPrice  = nativecommon.NewClassedError(202, "oracle engine: price must be positive", nativecommon.ErrInvalidAmount)
	ErrInvalidAsset  = nativecommon.NewClassedError(203, "oracle engine: asset symbol required", nativecommon.ErrInvalidArgument)
	ErrInvalidSource = nativecommon.NewClassedError(204, "oracle engine: address must not be empty", nativecommon.ErrInvalidArgument)
)

type engineState interface {
	OraclePrice(asset string) (*PriceEntry, bool, error)
	OraclePutPrice(entry *PriceEntry) error
	OracleOwner() (crypto.Address, bool, error)
	OracleSetOwner(owner crypto.Address) error
	OracleIsSource(addr crypto.Address) (bool, error)
	OracleSetSource(addr crypto.Address, authorized bool) error
	OracleSources() ([]crypto.Address, error)
}

// Engine keeps the authoritative price table. Only authorised sources may
// publish and only the owner may manage the source list.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used to timestamp observations.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Init installs the genesis owner, who is also the first authorised source.
// It is a no-op once an owner exists.
func (e *Engine) Init(owner crypto.Address) error {
	if e.state == nil {
		return errNilState
	}
	if owner.IsZero() {
		return ErrInvalidSource
	}
	_, ok, err := e.state.OracleOwner()
	if err != nil || ok {
		return err
	}
	if err := e.state.OracleSetOwner(owner); err != nil {
		return err
	}
	return e.state.OracleSetSource(owner, true)
}

// SetPrice records price for asset on behalf of caller.
func (e *Engine) SetPrice(caller crypto.Address, asset string, price *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	ok, err := e.state.OracleIsSource(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	symbol := NormalizeAsset(asset)
	if symbol == "" {
		return ErrInvalidAsset
	}
	if !nativecommon.CheckAmount(price) {
		return ErrInvalidPrice
	}
	entry := &PriceEntry{
		Asset:     symbol,
		Price:     new(big.Int).Set(price),
		Timestamp: e.now(),
		Source:    caller,
	}
	if err := e.state.OraclePutPrice(entry); err != nil {
		return err
	}
	e.emitter.Emit(events.OraclePriceSet{Asset: symbol, Price: entry.Price, Timestamp: entry.Timestamp, Source: caller})
	return nil
}

// GetPrice returns the last published price for asset.
func (e *Engine) GetPrice(asset string) (*big.Int, error) {
	entry, ok, err := e.GetPriceInfo(asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPriceNotFound
	}
	return entry.Price, nil
}

// GetPriceInfo returns the full observation for asset. The boolean is false
// when nothing has been published yet.
func (e *Engine) GetPriceInfo(asset string) (*PriceEntry, bool, error) {
	if e.state == nil {
		return nil, false, errNilState
	}
	symbol := NormalizeAsset(asset)
	if symbol == "" {
		return nil, false, ErrInvalidAsset
	}
	entry, ok, err := e.state.OraclePrice(symbol)
	if err != nil || !ok {
		return nil, false, err
	}
	return entry.Clone(), true, nil
}

func (e *Engine) AuthorizeSource(caller, source crypto.Address) error {
	return e.setSource(caller, source, true)
}

func (e *Engine) RevokeSource(caller, source crypto.Address) error {
	return e.setSource(caller, source, false)
}

func (e *Engine) setSource(caller, source crypto.Address, authorized bool) error {
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if source.IsZero() {
		return ErrInvalidSource
	}
	if err := e.state.OracleSetSource(source, authorized); err != nil {
		return err
	}
	e.emitter.Emit(events.OracleSourceChanged{Source: source, By: caller, Revoked: !authorized})
	return nil
}

func (e *Engine) IsAuthorizedSource(addr crypto.Address) (bool, error) {
	if e.state == nil {
		return false, errNilState
	}
	return e.state.OracleIsSource(addr)
}

// Sources lists every currently authorised source.
func (e *Engine) Sources() ([]crypto.Address, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.OracleSources()
}

func (e *Engine) Owner() (crypto.Address, error) {
	if e.state == nil {
		return crypto.Address{}, errNilState
	}
	owner, _, err := e.state.OracleOwner()
	return owner, err
}

// TransferOwnership hands the owner role to newOwner. Source authorisations
// are left untouched.
func (e *Engine) TransferOwnership(caller, newOwner crypto.Address) error {
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return ErrInvalidSource
	}
	if err := e.state.OracleSetOwner(newOwner); err != nil {
		return err
	}
	e.emitter.Emit(events.OracleOwnerTransferred{Previous: caller, Owner: newOwner})
	return nil
}

func (e *Engine) requireOwner(caller crypto.Address) error {
	owner, ok, err := e.state.OracleOwner()
	if err != nil {
		return err
	}
	if !ok || !owner.Equal(caller) {
		return ErrNotAuthorized
	}
	return nil
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}
