package vault

import (
	"errors"
	"strings"
)

const (
	// DefaultMinCollateralRatioBps is 150.00%.
	DefaultMinCollateralRatioBps = 15_000
	DefaultBaseAsset             = "STX"
)

// Params tunes the risk checks applied when debt is minted.
type Params struct {
	// MinCollateralRatioBps is the lowest ratio, in basis points, at which a
	// mint is admitted. The bound is inclusive.
	MinCollateralRatioBps uint64
	// BaseAsset names the oracle feed used to value collateral.
	BaseAsset string
	// MaxPriceAge rejects mints priced by an observation older than this many
	// seconds. Zero disables the check.
	MaxPriceAge uint64
}

// DefaultParams returns the launch configuration.
func DefaultParams() Params {
	return Params{
		MinCollateralRatioBps: DefaultMinCollateralRatioBps,
		BaseAsset:             DefaultBaseAsset,
	}
}

// Validate ensures the parameters are internally consistent.
func (p Params) Validate() error {
	if p.MinCollateralRatioBps < 10_000 {
		return errors.New("vault params: minimum collateral ratio must be at least 10000 bps")
	}
	if strings.TrimSpace(p.BaseAsset) == "" {
		return errors.New("vault params: base asset required")
	}
	return nil
}
