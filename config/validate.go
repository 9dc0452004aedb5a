package config

import (
	"errors"
	"fmt"
	"strings"

	"cdpchain/native/vault"
	"cdpchain/storage"
)

var knownModules = map[string]struct{}{
	"vault":  {},
	"oracle": {},
	"token":  {},
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil config")
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		return errors.New("config: ListenAddress required")
	}
	switch strings.ToLower(strings.TrimSpace(c.DBBackend)) {
	case storage.BackendLevelDB, storage.BackendBolt:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("config: DataDir required for %s backend", c.DBBackend)
		}
	case storage.BackendMemory:
	default:
		return fmt.Errorf("config: unknown DBBackend %q", c.DBBackend)
	}
	for _, module := range c.PausedModules {
		if _, ok := knownModules[strings.ToLower(strings.TrimSpace(module))]; !ok {
			return fmt.Errorf("config: unknown paused module %q", module)
		}
	}
	if err := c.VaultParams().Validate(); err != nil {
		return fmt.Errorf("config: vault: %w", err)
	}
	if c.Auth.Enabled {
		if len(c.Auth.Secret) < 32 {
			return errors.New("config: auth secret must be at least 32 bytes")
		}
		if c.Auth.AllowCallerHeader {
			return errors.New("config: AllowCallerHeader cannot be combined with auth")
		}
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("config: rate limit must be non-negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		return errors.New("config: rate limit burst required when a rate is set")
	}
	if r := c.Observability.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("config: SampleRatio must be within [0,1], got %v", r)
	}
	return nil
}

// VaultParams converts the vault section into engine parameters.
func (c *Config) VaultParams() vault.Params {
	params := vault.DefaultParams()
	if c.Vault.MinCollateralRatioBps != 0 {
		params.MinCollateralRatioBps = c.Vault.MinCollateralRatioBps
	}
	if strings.TrimSpace(c.Vault.BaseAsset) != "" {
		params.BaseAsset = c.Vault.BaseAsset
	}
	params.MaxPriceAge = c.Vault.MaxPriceAgeSeconds
	return params
}
