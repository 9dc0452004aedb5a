package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

const (
	envListen          = "CDPD_LISTEN"
	envDataDir         = "CDPD_DATA_DIR"
	envDBBackend       = "CDPD_DB_BACKEND"
	envGenesis         = "CDPD_GENESIS"
	envKeystore        = "CDPD_KEYSTORE"
	envIndexerDSN      = "CDPD_INDEXER_DSN"
	envPaused          = "CDPD_PAUSED_MODULES"
	envLogLevel        = "CDPD_LOG_LEVEL"
	envLogFile         = "CDPD_LOG_FILE"
	envEnv             = "CDPD_ENV"
	envCustody         = "CDPD_VAULT_CUSTODY"
	envAuthEnabled     = "CDPD_AUTH_ENABLED"
	envAuthSecret      = "CDPD_AUTH_SECRET"
	envAuthIssuer      = "CDPD_AUTH_ISSUER"
	envAuthAudience    = "CDPD_AUTH_AUDIENCE"
	envCallerHeader    = "CDPD_ALLOW_CALLER_HEADER"
	envRateLimit       = "CDPD_RATE_LIMIT_RPS"
	envMetrics         = "CDPD_METRICS"
	envTracing         = "CDPD_TRACING"
	envOTLPEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPHeaders     = "OTEL_EXPORTER_OTLP_HEADERS"
	envOTLPInsecure    = "CDPD_OTLP_INSECURE"
	envTraceSampleRate = "CDPD_TRACE_SAMPLE_RATIO"
)

func (c *Config) applyEnv() {
	c.ListenAddress = stringFromEnv(envListen, c.ListenAddress)
	c.DataDir = stringFromEnv(envDataDir, c.DataDir)
	c.DBBackend = stringFromEnv(envDBBackend, c.DBBackend)
	c.GenesisFile = stringFromEnv(envGenesis, c.GenesisFile)
	c.OperatorKeystorePath = stringFromEnv(envKeystore, c.OperatorKeystorePath)
	c.IndexerDSN = stringFromEnv(envIndexerDSN, c.IndexerDSN)
	if paused := splitAndTrim(os.Getenv(envPaused)); paused != nil {
		c.PausedModules = paused
	}

	c.Log.Level = stringFromEnv(envLogLevel, c.Log.Level)
	c.Log.File = stringFromEnv(envLogFile, c.Log.File)
	c.Log.Env = stringFromEnv(envEnv, c.Log.Env)

	c.Vault.Custody = boolFromEnv(envCustody, c.Vault.Custody)

	c.Auth.Enabled = boolFromEnv(envAuthEnabled, c.Auth.Enabled)
	c.Auth.Secret = stringFromEnv(envAuthSecret, c.Auth.Secret)
	c.Auth.Issuer = stringFromEnv(envAuthIssuer, c.Auth.Issuer)
	c.Auth.Audience = stringFromEnv(envAuthAudience, c.Auth.Audience)
	c.Auth.AllowCallerHeader = boolFromEnv(envCallerHeader, c.Auth.AllowCallerHeader)

	c.RateLimit.RequestsPerSecond = floatFromEnv(envRateLimit, c.RateLimit.RequestsPerSecond)

	c.Observability.Metrics = boolFromEnv(envMetrics, c.Observability.Metrics)
	c.Observability.Tracing = boolFromEnv(envTracing, c.Observability.Tracing)
	c.Observability.OTLPEndpoint = stringFromEnv(envOTLPEndpoint, c.Observability.OTLPEndpoint)
	c.Observability.OTLPHeaders = stringFromEnv(envOTLPHeaders, c.Observability.OTLPHeaders)
	c.Observability.OTLPInsecure = boolFromEnv(envOTLPInsecure, c.Observability.OTLPInsecure)
	c.Observability.SampleRatio = floatFromEnv(envTraceSampleRate, c.Observability.SampleRatio)
}

func stringFromEnv(key, fallback string) string {
	trimmed := strings.TrimSpace(os.Getenv(key))
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func boolFromEnv(key string, fallback bool) bool {
	trimmed := strings.TrimSpace(os.Getenv(key))
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		log.Printf("invalid boolean value for %s: %q, using default %v", key, trimmed, fallback)
		return fallback
	}
	return parsed
}

func floatFromEnv(key string, fallback float64) float64 {
	trimmed := strings.TrimSpace(os.Getenv(key))
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		log.Printf("invalid numeric value for %s: %q, using default %v", key, trimmed, fallback)
		return fallback
	}
	return parsed
}

func splitAndTrim(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
