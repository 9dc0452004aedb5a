package config

// LogConfig controls the structured logger and its optional rotating file.
type LogConfig struct {
	Level      string `toml:"Level" yaml:"level"`
	Env        string `toml:"Env" yaml:"env"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
	Compress   bool   `toml:"Compress" yaml:"compress"`
}

// VaultConfig carries the vault risk parameters.
type VaultConfig struct {
	MinCollateralRatioBps uint64 `toml:"MinCollateralRatioBps" yaml:"min_collateral_ratio_bps"`
	BaseAsset             string `toml:"BaseAsset" yaml:"base_asset"`
	// MaxPriceAgeSeconds of zero disables the staleness check.
	MaxPriceAgeSeconds uint64 `toml:"MaxPriceAgeSeconds" yaml:"max_price_age_seconds"`
	Custody            bool   `toml:"Custody" yaml:"custody"`
}

// AuthConfig configures how HTTP callers are identified.
type AuthConfig struct {
	Enabled  bool   `toml:"Enabled" yaml:"enabled"`
	Secret   string `toml:"Secret" yaml:"secret"`
	Issuer   string `toml:"Issuer" yaml:"issuer"`
	Audience string `toml:"Audience" yaml:"audience"`
	// AllowCallerHeader trusts X-CDP-Caller when auth is disabled. Local
	// development only.
	AllowCallerHeader bool `toml:"AllowCallerHeader" yaml:"allow_caller_header"`
}

// RateLimitConfig bounds per-client request rates.
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond" yaml:"requests_per_second"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// ObservabilityConfig toggles metrics and tracing exporters.
type ObservabilityConfig struct {
	Metrics      bool    `toml:"Metrics" yaml:"metrics"`
	Tracing      bool    `toml:"Tracing" yaml:"tracing"`
	OTLPEndpoint string  `toml:"OTLPEndpoint" yaml:"otlp_endpoint"`
	OTLPInsecure bool    `toml:"OTLPInsecure" yaml:"otlp_insecure"`
	OTLPHeaders  string  `toml:"OTLPHeaders" yaml:"otlp_headers"`
	SampleRatio  float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}
