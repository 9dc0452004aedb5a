package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"cdpchain/observability/logging"
)

// Config is the cdpd node configuration.
type Config struct {
	ListenAddress        string   `toml:"ListenAddress" yaml:"listen_address"`
	DataDir              string   `toml:"DataDir" yaml:"data_dir"`
	DBBackend            string   `toml:"DBBackend" yaml:"db_backend"`
	GenesisFile          string   `toml:"GenesisFile" yaml:"genesis_file"`
	OperatorKeystorePath string   `toml:"OperatorKeystorePath" yaml:"operator_keystore_path"`
	IndexerDSN           string   `toml:"IndexerDSN" yaml:"indexer_dsn"`
	PausedModules        []string `toml:"PausedModules" yaml:"paused_modules"`
	CORSAllowedOrigins   []string `toml:"CORSAllowedOrigins" yaml:"cors_allowed_origins"`

	Log           LogConfig           `toml:"log" yaml:"log"`
	Vault         VaultConfig         `toml:"vault" yaml:"vault"`
	Auth          AuthConfig          `toml:"auth" yaml:"auth"`
	RateLimit     RateLimitConfig     `toml:"rate_limit" yaml:"rate_limit"`
	Observability ObservabilityConfig `toml:"observability" yaml:"observability"`
}

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		ListenAddress: ":8080",
		DataDir:       "./cdp-data",
		DBBackend:     "leveldb",
		PausedModules: []string{},
		Log: LogConfig{
			Level:      "info",
			Env:        "dev",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Vault: VaultConfig{
			MinCollateralRatioBps: 15000,
			BaseAsset:             "STX",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Observability: ObservabilityConfig{
			Metrics:      true,
			OTLPEndpoint: "localhost:4318",
			SampleRatio:  1,
		},
	}
}

// Load loads the configuration from the given path, writing a default file
// when none exists. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err := createDefault(path)
		if err != nil {
			return nil, err
		}
		cfg.applyEnv()
		return cfg, nil
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %q", path, undecoded[0].String())
		}
	}

	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	cfg.applyEnv()
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	cfg.OperatorKeystorePath = defaultKeystorePath(path)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}

// Sanitized returns a copy with secrets masked for logging.
func (c Config) Sanitized() Config {
	clone := c
	if clone.Auth.Secret != "" {
		clone.Auth.Secret = "***"
	}
	if clone.Observability.OTLPHeaders != "" {
		clone.Observability.OTLPHeaders = "***"
	}
	clone.IndexerDSN = logging.MaskDSN(clone.IndexerDSN)
	return clone
}
