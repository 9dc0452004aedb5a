package token

import (
	"errors"
	"fmt"
	"math/big"

	"cdpchain/core/events"
	"cdpchain/crypto"
	nativecommon "cdpchain/native/common"
)

const moduleName = nativecommon.ModuleToken

var (
	errNilState = errors.New("token engine: state not configured")

	ErrNotAuthorized       = nativecommon.NewClassedError(100, "token engine: caller not authorized", nativecommon.ErrNotAuthorized)
	ErrInsufficientBalance = nativecommon.NewClassedError(101, "token engine: insufficient balance", nativecommon.ErrInsufficientBalance)
	ErrInvalidAmount       = nativecommon.NewClassedError(102, "token engine: amount must be positive and fit 128 bits", nativecommon.ErrInvalidAmount)
	ErrNotRegistered       = nativecommon.NewClassedError(103, "token engine: token not registered", nativecommon.ErrNotFound)
	ErrInvalidAccount      = nativecommon.NewClassedError(104, "token engine: account must not be empty", nativecommon.ErrInvalidArgument)
	ErrMemoTooLong         = nativecommon.NewClassedError(105, "token engine: memo too long", nativecommon.ErrInvalidArgument)
	ErrAlreadyRegistered   = nativecommon.NewClassedError(106, "token engine: token already registered", nativecommon.ErrInvalidArgument)
	ErrSupplyOverflow      = nativecommon.NewClassedError(107, "token engine: total supply overflow", nativecommon.ErrInvalidAmount)
)

type engineState interface {
	TokenMetadata(symbol string) (*Metadata, bool, error)
	TokenPutMetadata(meta *Metadata) error
	TokenBalance(symbol string, addr crypto.Address) (*big.Int, error)
	TokenSetBalance(symbol string, addr crypto.Address, amount *big.Int) error
	TokenSupply(symbol string) (*big.Int, error)
	TokenSetSupply(symbol string, amount *big.Int) error
	TokenOwner(symbol string) (crypto.Address, bool, error)
	TokenSetOwner(symbol string, owner crypto.Address) error
	TokenIsMinter(symbol string, addr crypto.Address) (bool, error)
	TokenSetMinter(symbol string, addr crypto.Address, authorized bool) error
	TokenMinters(symbol string) ([]crypto.Address, error)
}

// Engine is the ledger for a single fungible token. Every balance change goes
// through Mint, Burn or Transfer so that the sum of balances always equals
// the recorded supply.
type Engine struct {
	symbol  string
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

func NewEngine(symbol string) *Engine {
	return &Engine{symbol: NormalizeSymbol(symbol), emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Symbol returns the ticker this engine manages.
func (e *Engine) Symbol() string { return e.symbol }

// Register creates the token with owner as administrator and credits the
// genesis allocations. It fails if the token already exists.
func (e *Engine) Register(meta Metadata, owner crypto.Address, allocations ...Allocation) error {
	if e.state == nil {
		return errNilState
	}
	if owner.IsZero() {
		return ErrInvalidAccount
	}
	if _, ok, err := e.state.TokenMetadata(e.symbol); err != nil {
		return err
	} else if ok {
		return ErrAlreadyRegistered
	}
	meta.Symbol = e.symbol
	if err := e.state.TokenPutMetadata(&meta); err != nil {
		return err
	}
	if err := e.state.TokenSetOwner(e.symbol, owner); err != nil {
		return err
	}
	if err := e.state.TokenSetSupply(e.symbol, big.NewInt(0)); err != nil {
		return err
	}
	for _, alloc := range allocations {
		if err := e.credit(alloc.Account, alloc.Amount); err != nil {
			return fmt.Errorf("token engine: allocate %s: %w", alloc.Account, err)
		}
	}
	return nil
}

// Metadata returns the token's name, symbol and decimals.
func (e *Engine) Metadata() (*Metadata, error) {
	if e.state == nil {
		return nil, errNilState
	}
	meta, ok, err := e.state.TokenMetadata(e.symbol)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRegistered
	}
	return meta.Clone(), nil
}

func (e *Engine) Balance(addr crypto.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.TokenBalance(e.symbol, addr)
}

func (e *Engine) TotalSupply() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.TokenSupply(e.symbol)
}

// Mint creates amount new units for recipient. caller must be an authorised
// minter.
func (e *Engine) Mint(caller crypto.Address, amount *big.Int, recipient crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireMinter(caller); err != nil {
		return err
	}
	if !nativecommon.CheckAmount(amount) {
		return ErrInvalidAmount
	}
	if recipient.IsZero() {
		return ErrInvalidAccount
	}
	if err := e.credit(recipient, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenSupplyChanged{Token: e.symbol, Account: recipient, Amount: new(big.Int).Set(amount), Minter: caller})
	return nil
}

// Burn destroys amount units held by holder. caller must be an authorised
// minter.
func (e *Engine) Burn(caller crypto.Address, amount *big.Int, holder crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireMinter(caller); err != nil {
		return err
	}
	if !nativecommon.CheckAmount(amount) {
		return ErrInvalidAmount
	}
	balance, err := e.state.TokenBalance(e.symbol, holder)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	supply, err := e.state.TokenSupply(e.symbol)
	if err != nil {
		return err
	}
	if err := e.state.TokenSetBalance(e.symbol, holder, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := e.state.TokenSetSupply(e.symbol, new(big.Int).Sub(supply, amount)); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenSupplyChanged{Token: e.symbol, Account: holder, Amount: new(big.Int).Set(amount), Minter: caller, Burned: true})
	return nil
}

// Transfer moves amount from one holder to another. Only the holder may move
// its own funds.
func (e *Engine) Transfer(caller crypto.Address, amount *big.Int, from, to crypto.Address, memo string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !caller.Equal(from) {
		return ErrNotAuthorized
	}
	if !nativecommon.CheckAmount(amount) {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrInvalidAccount
	}
	if len(memo) > MaxMemoLength {
		return ErrMemoTooLong
	}
	fromBalance, err := e.state.TokenBalance(e.symbol, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if !from.Equal(to) {
		toBalance, err := e.state.TokenBalance(e.symbol, to)
		if err != nil {
			return err
		}
		credited, ok := nativecommon.CheckedAdd(toBalance, amount)
		if !ok {
			return ErrSupplyOverflow
		}
		if err := e.state.TokenSetBalance(e.symbol, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := e.state.TokenSetBalance(e.symbol, to, credited); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.TokenTransferred{Token: e.symbol, From: from, To: to, Amount: new(big.Int).Set(amount), Memo: memo})
	return nil
}

func (e *Engine) AuthorizeMinter(caller, minter crypto.Address) error {
	return e.setMinter(caller, minter, true)
}

func (e *Engine) RevokeMinter(caller, minter crypto.Address) error {
	return e.setMinter(caller, minter, false)
}

func (e *Engine) setMinter(caller, minter crypto.Address, authorized bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if minter.IsZero() {
		return ErrInvalidAccount
	}
	if err := e.state.TokenSetMinter(e.symbol, minter, authorized); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenMinterChanged{Token: e.symbol, Minter: minter, By: caller, Revoked: !authorized})
	return nil
}

// GrantMinter authorises minter without an owner check. Genesis uses it to
// bind module principals such as the vault.
func (e *Engine) GrantMinter(minter crypto.Address) error {
	if e.state == nil {
		return errNilState
	}
	if minter.IsZero() {
		return ErrInvalidAccount
	}
	return e.state.TokenSetMinter(e.symbol, minter, true)
}

func (e *Engine) IsMinter(addr crypto.Address) (bool, error) {
	if e.state == nil {
		return false, errNilState
	}
	return e.state.TokenIsMinter(e.symbol, addr)
}

func (e *Engine) Minters() ([]crypto.Address, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.TokenMinters(e.symbol)
}

func (e *Engine) Owner() (crypto.Address, error) {
	if e.state == nil {
		return crypto.Address{}, errNilState
	}
	owner, ok, err := e.state.TokenOwner(e.symbol)
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, ErrNotRegistered
	}
	return owner, nil
}

func (e *Engine) TransferOwnership(caller, newOwner crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return ErrInvalidAccount
	}
	if err := e.state.TokenSetOwner(e.symbol, newOwner); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenOwnerTransferred{Token: e.symbol, Previous: caller, Owner: newOwner})
	return nil
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	_, ok, err := e.state.TokenMetadata(e.symbol)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotRegistered
	}
	return nil
}

func (e *Engine) requireMinter(caller crypto.Address) error {
	ok, err := e.state.TokenIsMinter(e.symbol, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}

func (e *Engine) requireOwner(caller crypto.Address) error {
	owner, ok, err := e.state.TokenOwner(e.symbol)
	if err != nil {
		return err
	}
	if !ok || !owner.Equal(caller) {
		return ErrNotAuthorized
	}
	return nil
}

func (e *Engine) credit(recipient crypto.Address, amount *big.Int) error {
	if !nativecommon.CheckAmount(amount) {
		return ErrInvalidAmount
	}
	supply, err := e.state.TokenSupply(e.symbol)
	if err != nil {
		return err
	}
	nextSupply, ok := nativecommon.CheckedAdd(supply, amount)
	if !ok {
		return ErrSupplyOverflow
	}
	balance, err := e.state.TokenBalance(e.symbol, recipient)
	if err != nil {
		return err
	}
	// balance <= supply, so the balance sum cannot overflow once supply fits.
	if err := e.state.TokenSetBalance(e.symbol, recipient, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	return e.state.TokenSetSupply(e.symbol, nextSupply)
}
