package vault

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"cdpchain/core/events"
	"cdpchain/crypto"
	nativecommon "cdpchain/native/common"
	"cdpchain/native/oracle"
)

const moduleName = nativecommon.ModuleVault

var (
	errNilState       = errors.New("vault engine: state not configured")
	errNilPriceFeed   = errors.New("vault engine: price feed not configured")
	errNilDebtLedger  = errors.New("vault engine: debt ledger not configured")
	errModuleUnset    = errors.New("vault engine: module address not configured")
	errCustodyAddress = errors.New("vault engine: custody address not configured")

	ErrNotAuthorized          = nativecommon.NewClassedError(300, "vault engine: caller is not the vault owner", nativecommon.ErrNotAuthorized)
	ErrInsufficientCollateral = nativecommon.NewClassedError(301, "vault engine: collateral ratio below minimum", nativecommon.ErrInsufficientCollateral)
	ErrVaultNotFound          = nativecommon.NewClassedError(302, "vault engine: vault not found", nativecommon.ErrNotFound)
	ErrInvalidAmount          = nativecommon.NewClassedError(303, "vault engine: amount must be positive and fit 128 bits", nativecommon.ErrInvalidAmount)
	ErrRepayExceedsDebt       = nativecommon.NewClassedError(304, "vault engine: repayment exceeds outstanding debt", nativecommon.ErrInvalidAmount)
	ErrStalePrice             = nativecommon.NewClassedError(305, "vault engine: collateral price is stale", nativecommon.ErrUnavailable)
	ErrPriceUnavailable       = nativecommon.NewClassedError(306, "vault engine: no collateral price published", nativecommon.ErrUnavailable)
	ErrDebtOverflow           = nativecommon.NewClassedError(307, "vault engine: debt exceeds representable range", nativecommon.ErrInvalidAmount)
	ErrCollateralBalance      = nativecommon.NewClassedError(308, "vault engine: collateral balance too low", nativecommon.ErrInsufficientBalance)
)

// PriceFeed is the read-only oracle surface the engine depends on.
type PriceFeed interface {
	GetPriceInfo(asset string) (*oracle.PriceEntry, bool, error)
}

// DebtLedger mints and burns the stablecoin issued against vaults.
type DebtLedger interface {
	Mint(caller crypto.Address, amount *big.Int, recipient crypto.Address) error
	Burn(caller crypto.Address, amount *big.Int, holder crypto.Address) error
	Balance(addr crypto.Address) (*big.Int, error)
}

// CollateralCustody moves collateral from a vault owner into the custody
// account.
type CollateralCustody interface {
	Transfer(caller crypto.Address, amount *big.Int, from, to crypto.Address, memo string) error
	Balance(addr crypto.Address) (*big.Int, error)
}

type engineState interface {
	VaultGet(id uint64) (*Vault, bool, error)
	VaultPut(v *Vault) error
	VaultNextID() (uint64, error)
	VaultAppendOwner(owner crypto.Address, id uint64) error
	VaultsByOwner(owner crypto.Address) ([]uint64, error)
	VaultTotalDebt() (*big.Int, error)
	VaultSetTotalDebt(total *big.Int) error
}

// Engine implements the collateralised debt position lifecycle. It issues
// debt under moduleAddress, which must be an authorised minter on the debt
// ledger.
type Engine struct {
	state          engineState
	prices         PriceFeed
	ledger         DebtLedger
	custody        CollateralCustody
	moduleAddress  crypto.Address
	custodyAddress crypto.Address
	params         Params
	emitter        events.Emitter
	nowFn          func() int64
	pauses         nativecommon.PauseView
}

// NewEngine constructs a vault engine issuing debt as moduleAddr. Collateral
// is swept to custodyAddr when a custody ledger is configured.
func NewEngine(moduleAddr, custodyAddr crypto.Address, params Params) *Engine {
	if params.MinCollateralRatioBps == 0 {
		params.MinCollateralRatioBps = DefaultMinCollateralRatioBps
	}
	if params.BaseAsset == "" {
		params.BaseAsset = DefaultBaseAsset
	}
	params.BaseAsset = oracle.NormalizeAsset(params.BaseAsset)
	return &Engine{
		moduleAddress:  moduleAddr,
		custodyAddress: custodyAddr,
		params:         params,
		emitter:        events.NoopEmitter{},
		nowFn:          func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPriceFeed(feed PriceFeed) { e.prices = feed }

func (e *Engine) SetDebtLedger(ledger DebtLedger) { e.ledger = ledger }

// SetCustody enables collateral custody. With no custody configured the
// engine only books collateral.
func (e *Engine) SetCustody(custody CollateralCustody) { e.custody = custody }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Params returns the active risk parameters.
func (e *Engine) Params() Params { return e.params }

// ModuleAddress is the principal the engine mints and burns debt as.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

// CreateVault opens a vault owned by caller with the supplied collateral and
// returns its identifier.
func (e *Engine) CreateVault(caller crypto.Address, collateral *big.Int) (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if !nativecommon.CheckAmount(collateral) {
		return 0, ErrInvalidAmount
	}
	if err := e.checkCollateralFunds(caller, collateral); err != nil {
		return 0, err
	}
	id, err := e.state.VaultNextID()
	if err != nil {
		return 0, err
	}
	v := &Vault{
		ID:         id,
		Owner:      caller,
		Collateral: new(big.Int).Set(collateral),
		Debt:       big.NewInt(0),
		CreatedAt:  e.now(),
	}
	if err := e.state.VaultPut(v); err != nil {
		return 0, err
	}
	if err := e.state.VaultAppendOwner(caller, id); err != nil {
		return 0, err
	}
	if err := e.lockCollateral(caller, id, collateral); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.VaultCreated{VaultID: id, Owner: caller, Collateral: cloneInt(collateral), CreatedAt: v.CreatedAt})
	return id, nil
}

// AddCollateral tops up an existing vault. The collateral ratio is not
// re-evaluated since it can only improve.
func (e *Engine) AddCollateral(caller crypto.Address, id uint64, amount *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !nativecommon.CheckAmount(amount) {
		return ErrInvalidAmount
	}
	v, err := e.ownedVault(caller, id)
	if err != nil {
		return err
	}
	updated, ok := nativecommon.CheckedAdd(v.Collateral, amount)
	if !ok {
		return ErrInvalidAmount
	}
	if err := e.checkCollateralFunds(caller, amount); err != nil {
		return err
	}
	previous := v.Clone()
	v.Collateral = updated
	if err := e.state.VaultPut(v); err != nil {
		return err
	}
	if err := e.lockCollateral(caller, id, amount); err != nil {
		return e.restore(previous, nil, err)
	}
	e.emitter.Emit(events.VaultCollateralAdded{VaultID: id, Owner: caller, Amount: cloneInt(amount), Collateral: cloneInt(updated)})
	return nil
}

// MintDebt issues amount of the stablecoin to the vault owner provided the
// resulting position stays at or above the minimum collateral ratio.
func (e *Engine) MintDebt(caller crypto.Address, id uint64, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !nativecommon.CheckAmount(amount) {
		return ErrInvalidAmount
	}
	v, err := e.ownedVault(caller, id)
	if err != nil {
		return err
	}
	newDebt, ok := nativecommon.CheckedAdd(v.Debt, amount)
	if !ok {
		return ErrDebtOverflow
	}
	totalDebt, err := e.state.VaultTotalDebt()
	if err != nil {
		return err
	}
	newTotal, ok := nativecommon.CheckedAdd(totalDebt, amount)
	if !ok {
		return ErrDebtOverflow
	}
	price, err := e.currentPrice()
	if err != nil {
		return err
	}
	ratio := collateralRatioBps(v.Collateral, newDebt, price)
	if ratio.Cmp(new(big.Int).SetUint64(e.params.MinCollateralRatioBps)) < 0 {
		return ErrInsufficientCollateral
	}

	previous := v.Clone()
	v.Debt = newDebt
	if err := e.state.VaultPut(v); err != nil {
		return err
	}
	if err := e.state.VaultSetTotalDebt(newTotal); err != nil {
		return e.restore(previous, totalDebt, err)
	}
	if err := e.ledger.Mint(e.moduleAddress, amount, caller); err != nil {
		return e.restore(previous, totalDebt, err)
	}
	e.emitter.Emit(events.VaultDebtMinted{
		VaultID:  id,
		Owner:    caller,
		Amount:   cloneInt(amount),
		Debt:     cloneInt(newDebt),
		RatioBps: ratio,
		Price:    cloneInt(price),
	})
	return nil
}

// RepayDebt burns amount of the stablecoin from the owner and reduces the
// vault's debt accordingly. It returns the amount repaid.
func (e *Engine) RepayDebt(caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilDebtLedger
	}
	if e.moduleAddress.IsZero() {
		return nil, errModuleUnset
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !nativecommon.CheckAmount(amount) {
		return nil, ErrInvalidAmount
	}
	v, err := e.ownedVault(caller, id)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(v.Debt) > 0 {
		return nil, ErrRepayExceedsDebt
	}
	totalDebt, err := e.state.VaultTotalDebt()
	if err != nil {
		return nil, err
	}
	if totalDebt.Cmp(amount) < 0 {
		return nil, fmt.Errorf("vault engine: total debt %s below vault debt %s", totalDebt, v.Debt)
	}

	previous := v.Clone()
	v.Debt = new(big.Int).Sub(v.Debt, amount)
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	if err := e.state.VaultSetTotalDebt(new(big.Int).Sub(totalDebt, amount)); err != nil {
		return nil, e.restore(previous, totalDebt, err)
	}
	if err := e.ledger.Burn(e.moduleAddress, amount, caller); err != nil {
		return nil, e.restore(previous, totalDebt, err)
	}
	e.emitter.Emit(events.VaultDebtRepaid{VaultID: id, Owner: caller, Amount: cloneInt(amount), Debt: cloneInt(v.Debt)})
	return new(big.Int).Set(amount), nil
}

// CollateralRatio reports the vault's current ratio in basis points. The
// boolean is false when the vault does not exist. Debt-free vaults report
// MaxRatio without consulting the oracle.
func (e *Engine) CollateralRatio(id uint64) (*big.Int, bool, error) {
	if e.state == nil {
		return nil, false, errNilState
	}
	v, ok, err := e.state.VaultGet(id)
	if err != nil || !ok {
		return nil, false, err
	}
	if v.Debt == nil || v.Debt.Sign() == 0 {
		return new(big.Int).Set(MaxRatio), true, nil
	}
	if e.prices == nil {
		return nil, true, errNilPriceFeed
	}
	entry, found, err := e.prices.GetPriceInfo(e.params.BaseAsset)
	if err != nil {
		return nil, true, err
	}
	if !found {
		return nil, true, ErrPriceUnavailable
	}
	return collateralRatioBps(v.Collateral, v.Debt, entry.Price), true, nil
}

// MaxMintable reports how much additional debt the vault could take at the
// latest price.
func (e *Engine) MaxMintable(id uint64) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	v, ok, err := e.state.VaultGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	price, err := e.currentPrice()
	if err != nil {
		return nil, err
	}
	return maxMintable(v.Collateral, v.Debt, price, e.params.MinCollateralRatioBps), nil
}

// Vault returns a copy of the stored vault.
func (e *Engine) Vault(id uint64) (*Vault, bool, error) {
	if e.state == nil {
		return nil, false, errNilState
	}
	v, ok, err := e.state.VaultGet(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return v.Clone(), true, nil
}

// UserVaults lists the owner's vault ids in creation order.
func (e *Engine) UserVaults(owner crypto.Address) ([]uint64, error) {
	if e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.VaultsByOwner(owner)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint64{}
	}
	return ids, nil
}

// TotalDebt returns the sum of debt across all vaults.
func (e *Engine) TotalDebt() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.VaultTotalDebt()
}

// DebtBalance returns the stablecoin balance held by addr.
func (e *Engine) DebtBalance(addr crypto.Address) (*big.Int, error) {
	if e.ledger == nil {
		return nil, errNilDebtLedger
	}
	return e.ledger.Balance(addr)
}

func (e *Engine) ready() error {
	switch {
	case e.state == nil:
		return errNilState
	case e.prices == nil:
		return errNilPriceFeed
	case e.ledger == nil:
		return errNilDebtLedger
	case e.moduleAddress.IsZero():
		return errModuleUnset
	}
	return nil
}

func (e *Engine) ownedVault(caller crypto.Address, id uint64) (*Vault, error) {
	v, ok, err := e.state.VaultGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	if !v.Owner.Equal(caller) {
		return nil, ErrNotAuthorized
	}
	return v.Clone(), nil
}

func (e *Engine) currentPrice() (*big.Int, error) {
	if e.prices == nil {
		return nil, errNilPriceFeed
	}
	entry, ok, err := e.prices.GetPriceInfo(e.params.BaseAsset)
	if err != nil {
		return nil, err
	}
	if !ok || entry.Price == nil || entry.Price.Sign() <= 0 {
		return nil, ErrPriceUnavailable
	}
	if e.params.MaxPriceAge > 0 {
		now := e.now()
		if now > entry.Timestamp && now-entry.Timestamp > e.params.MaxPriceAge {
			return nil, ErrStalePrice
		}
	}
	return entry.Price, nil
}

func (e *Engine) checkCollateralFunds(owner crypto.Address, amount *big.Int) error {
	if e.custody == nil {
		return nil
	}
	if e.custodyAddress.IsZero() {
		return errCustodyAddress
	}
	balance, err := e.custody.Balance(owner)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrCollateralBalance
	}
	return nil
}

func (e *Engine) lockCollateral(caller crypto.Address, id uint64, amount *big.Int) error {
	if e.custody == nil {
		return nil
	}
	memo := fmt.Sprintf("vault:%d", id)
	return e.custody.Transfer(caller, amount, caller, e.custodyAddress, memo)
}

// restore rewrites the pre-operation records after a failed ledger call and
// returns cause.
func (e *Engine) restore(previous *Vault, totalDebt *big.Int, cause error) error {
	if err := e.state.VaultPut(previous); err != nil {
		return errors.Join(cause, err)
	}
	if totalDebt != nil {
		if err := e.state.VaultSetTotalDebt(totalDebt); err != nil {
			return errors.Join(cause, err)
		}
	}
	return cause
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}
