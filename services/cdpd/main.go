package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cdpchain/internal/passphrase"
	"cdpchain/config"
	"cdpchain/core"
	"cdpchain/core/events"
	"cdpchain/core/genesis"
	"cdpchain/crypto"
	"cdpchain/gateway/middleware"
	"cdpchain/observability"
	"cdpchain/observability/logging"
	telemetry "cdpchain/observability/otel"
	"cdpchain/services/cdpd/indexer"
	"cdpchain/services/cdpd/server"
	"cdpchain/storage"
)

const (
	serviceName      = "cdpd"
	passphraseEnv    = "CDPD_KEYSTORE_PASSPHRASE"
	shutdownTimeout  = 10 * time.Second
	indexerDrainWait = 5 * time.Second
)

var version = "dev"

func main() {
	var (
		cfgPath      string
		genesisPath  string
		printConfig  bool
		writeGenesis string
	)
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to cdpd config (toml or yaml)")
	flag.StringVar(&genesisPath, "genesis", "", "override the genesis spec path from the config")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective configuration with secrets masked and exit")
	flag.StringVar(&writeGenesis, "write-genesis", "", "write the default genesis spec for the operator key to this path and exit")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(genesisPath) != "" {
		cfg.GenesisFile = genesisPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if printConfig {
		sanitized := cfg.Sanitized()
		fmt.Printf("%+v\n", sanitized)
		return
	}

	logger, logCloser := logging.Configure(logging.Options{
		Service: serviceName,
		Env:     cfg.Log.Env,
		Level:   cfg.Log.Level,
		File:    fileConfig(cfg.Log),
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, writeGenesis); err != nil {
		logger.Error("cdpd exited", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func fileConfig(cfg config.LogConfig) *logging.FileConfig {
	if strings.TrimSpace(cfg.File) == "" {
		return nil
	}
	return &logging.FileConfig{
		Path:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, writeGenesis string) error {
	obs := cfg.Observability
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Log.Env,
		Endpoint:       obs.OTLPEndpoint,
		Insecure:       obs.OTLPInsecure,
		Headers:        telemetry.ParseHeaders(obs.OTLPHeaders),
		Metrics:        obs.Metrics && obs.OTLPEndpoint != "",
		Traces:         obs.Tracing,
		SampleRatio:    obs.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	operator, err := loadOperator(cfg.OperatorKeystorePath, logger)
	if err != nil {
		return err
	}
	operatorAddr := operator.PubKey().Address()
	logger.Info("operator key loaded", "address", operatorAddr.String())

	if writeGenesis != "" {
		if err := genesis.WriteGenesisSpec(writeGenesis, genesis.DefaultSpec(operatorAddr)); err != nil {
			return fmt.Errorf("write genesis: %w", err)
		}
		logger.Info("default genesis written", "path", writeGenesis)
		return nil
	}

	spec, err := resolveGenesis(cfg.GenesisFile, operatorAddr)
	if err != nil {
		return err
	}
	params := cfg.VaultParams()
	if spec.Vault != nil && strings.TrimSpace(cfg.GenesisFile) != "" {
		params = spec.Vault.Params()
		if params.MaxPriceAge == 0 {
			params.MaxPriceAge = cfg.VaultParams().MaxPriceAge
		}
	}

	if backend := strings.ToLower(cfg.DBBackend); backend != storage.BackendMemory {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := storage.Open(cfg.DBBackend, storagePath(cfg))
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.DBBackend, err)
	}
	defer db.Close()

	stream := core.NewEventStream()

	var index *indexer.Store
	indexDone := make(chan struct{})
	indexCtx, cancelIndex := context.WithCancel(context.Background())
	defer cancelIndex()
	if strings.TrimSpace(cfg.IndexerDSN) != "" {
		gdb, err := indexer.Open(cfg.IndexerDSN)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		logger.Info("event indexer enabled", "dsn", logging.MaskDSN(cfg.IndexerDSN))
		index, err = indexer.New(gdb, logger)
		if err != nil {
			return fmt.Errorf("init indexer: %w", err)
		}
		go func() {
			defer close(indexDone)
			index.Run(indexCtx)
		}()
	} else {
		close(indexDone)
		logger.Info("event indexer disabled; vault history endpoints will report unavailable")
	}

	fanout := events.Fanout{stream, observability.Events()}
	if index != nil {
		fanout = append(fanout, index)
	}
	protocol, err := core.NewProtocol(core.Config{
		DB:          db,
		VaultParams: params,
		Custody:     cfg.Vault.Custody,
		Pauses:      cfg.Pauses(),
		Emitter:     fanout,
		Metrics:     observability.Protocol(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init protocol: %w", err)
	}

	if err := applyGenesis(ctx, protocol, spec, logger); err != nil {
		return err
	}

	limits := moduleLimits(cfg.RateLimit)
	limiter := middleware.NewRateLimiter(limits, logger)
	limiter.OnThrottle(observability.ModuleMetrics().RecordThrottle)

	var eventLog server.EventLog
	if index != nil {
		eventLog = index
	}
	srv, err := server.New(server.Config{
		Protocol: protocol,
		Stream:   stream,
		Events:   eventLog,
		Auth: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:           cfg.Auth.Enabled,
			HMACSecret:        cfg.Auth.Secret,
			Issuer:            cfg.Auth.Issuer,
			Audience:          cfg.Auth.Audience,
			AllowCallerHeader: cfg.Auth.AllowCallerHeader,
		}, logger),
		RateLimiter: limiter,
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: serviceName,
			LogRequests: strings.EqualFold(cfg.Log.Level, "debug"),
		}, observability.ModuleMetrics(), logger),
		CORS:            middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		Metrics:         metricsHandler(obs.Metrics),
		SubscriberDelta: observability.Protocol().SubscriberDelta,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(srv.Handler(), serviceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("cdpd listening", "addr", cfg.ListenAddress, "backend", cfg.DBBackend, "version", version)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forcing http server close", "error", err)
		_ = httpServer.Close()
	}

	cancelIndex()
	select {
	case <-indexDone:
	case <-time.After(indexerDrainWait):
		logger.Warn("indexer did not drain before shutdown")
	}
	return nil
}

func loadOperator(path string, logger *slog.Logger) (*crypto.PrivateKey, error) {
	source := passphrase.NewSource(passphraseEnv, "operator keystore")
	pass, err := source.Get()
	if err != nil {
		return nil, err
	}
	key, created, err := crypto.LoadOrCreateKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("operator keystore: %w", err)
	}
	if created {
		logger.Warn("generated new operator key", "keystore", path)
	}
	return key, nil
}

// resolveGenesis loads the configured spec or, when none is configured,
// builds the default one owned by the operator.
func resolveGenesis(path string, operator crypto.Address) (*genesis.GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return genesis.DefaultSpec(operator), nil
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

func applyGenesis(ctx context.Context, protocol *core.Protocol, spec *genesis.GenesisSpec, logger *slog.Logger) error {
	applied, err := protocol.GenesisApplied(ctx)
	if err != nil {
		return fmt.Errorf("read genesis marker: %w", err)
	}
	if applied {
		logger.Info("genesis already applied")
		return nil
	}
	if err := protocol.InitGenesis(ctx, spec); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied", "deployer", spec.Deployer, "tokens", len(spec.Tokens))
	return nil
}

func moduleLimits(cfg config.RateLimitConfig) map[string]middleware.RateLimit {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	limit := middleware.RateLimit{RatePerSecond: cfg.RequestsPerSecond, Burst: cfg.Burst, DefaultTokens: 1}
	vaults := limit
	vaults.Tokens = map[string]int{"POST /v1/vaults": 2}
	return map[string]middleware.RateLimit{
		"vault":  vaults,
		"oracle": limit,
		"token":  limit,
	}
}

func metricsHandler(enabled bool) http.Handler {
	if !enabled {
		return nil
	}
	return promhttp.Handler()
}

func storagePath(cfg *config.Config) string {
	if strings.EqualFold(cfg.DBBackend, storage.BackendBolt) {
		return filepath.Join(cfg.DataDir, "state.db")
	}
	return cfg.DataDir
}
