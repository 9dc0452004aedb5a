package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"cdpchain/core"
	"cdpchain/gateway/middleware"
	"cdpchain/services/cdpd/indexer"
)

const maxBodyBytes = 1 << 20

// EventLog serves indexed history. The indexer Store satisfies it.
type EventLog interface {
	VaultEvents(ctx context.Context, vaultID uint64, limit int) ([]indexer.EventRecord, error)
	Recent(ctx context.Context, eventType string, limit int) ([]indexer.EventRecord, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Protocol      *core.Protocol
	Stream        *core.EventStream
	Events        EventLog
	Auth          *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Metrics       http.Handler
	// SubscriberDelta tracks live websocket subscribers.
	SubscriberDelta func(int)
	Logger          *slog.Logger
}

// Server exposes the protocol over HTTP.
type Server struct {
	protocol    *core.Protocol
	stream      *core.EventStream
	events      EventLog
	auth        *middleware.Authenticator
	limiter     *middleware.RateLimiter
	obs         *middleware.Observability
	cors        middleware.CORSConfig
	metrics     http.Handler
	subscribers func(int)
	logger      *slog.Logger

	decimalsMu sync.RWMutex
	decimals   map[string]uint8

	router http.Handler
}

func New(cfg Config) (*Server, error) {
	if cfg.Protocol == nil {
		return nil, errors.New("server: protocol required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := cfg.Auth
	if auth == nil {
		auth = middleware.NewAuthenticator(middleware.AuthConfig{}, logger)
	}
	obs := cfg.Observability
	if obs == nil {
		obs = middleware.NewObservability(middleware.ObservabilityConfig{}, nil, logger)
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil, logger)
	}
	s := &Server{
		protocol:    cfg.Protocol,
		stream:      cfg.Stream,
		events:      cfg.Events,
		auth:        auth,
		limiter:     limiter,
		obs:         obs,
		cors:        cfg.CORS,
		metrics:     cfg.Metrics,
		subscribers: cfg.SubscriberDelta,
		logger:      logger.With("component", "server"),
		decimals:    make(map[string]uint8),
	}
	s.router = s.buildRouter()
	return s, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.cors))
	r.Use(s.auth.Middleware)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.stream != nil {
		r.Get("/ws/events", s.handleEventStream)
	}

	r.Route("/v1", func(api chi.Router) {
		api.Group(func(vr chi.Router) {
			vr.Use(s.obs.Middleware("vault"), s.limiter.Middleware("vault"))
			vr.Get("/vaults/{id}", s.handleGetVault)
			vr.Get("/vaults/{id}/ratio", s.handleVaultRatio)
			vr.Get("/vaults/{id}/events", s.handleVaultEvents)
			vr.Get("/owners/{address}/vaults", s.handleOwnerVaults)
			vr.Get("/debt", s.handleDebt)
			vr.Get("/debt/balances/{address}", s.handleDebtBalance)
			vr.Get("/events", s.handleRecentEvents)
			vr.Group(func(w chi.Router) {
				w.Use(middleware.RequireCaller)
				w.Post("/vaults", s.handleCreateVault)
				w.Post("/vaults/{id}/collateral", s.handleAddCollateral)
				w.Post("/vaults/{id}/mint", s.handleMintDebt)
				w.Post("/vaults/{id}/repay", s.handleRepayDebt)
			})
		})

		api.Route("/oracle", func(or chi.Router) {
			or.Use(s.obs.Middleware("oracle"), s.limiter.Middleware("oracle"))
			or.Get("/prices/{asset}", s.handleGetPrice)
			or.Get("/owner", s.handleOracleOwner)
			or.Get("/sources", s.handleListSources)
			or.Get("/sources/{address}", s.handleSourceStatus)
			or.Group(func(w chi.Router) {
				w.Use(middleware.RequireCaller)
				w.Post("/prices/{asset}", s.handleSetPrice)
				w.Post("/owner", s.handleTransferOracleOwner)
				w.Post("/sources", s.handleAuthorizeSource)
				w.Delete("/sources/{address}", s.handleRevokeSource)
			})
		})

		api.Route("/tokens", func(tr chi.Router) {
			tr.Use(s.obs.Middleware("token"), s.limiter.Middleware("token"))
			tr.Get("/", s.handleListTokens)
			tr.Get("/{symbol}", s.handleGetToken)
			tr.Get("/{symbol}/balances/{address}", s.handleBalance)
			tr.Get("/{symbol}/minters/{address}", s.handleMinterStatus)
			tr.Group(func(w chi.Router) {
				w.Use(middleware.RequireCaller)
				w.Post("/{symbol}/transfer", s.handleTransfer)
				w.Post("/{symbol}/mint", s.handleMint)
				w.Post("/{symbol}/burn", s.handleBurn)
				w.Post("/{symbol}/minters", s.handleAuthorizeMinter)
				w.Delete("/{symbol}/minters/{address}", s.handleRevokeMinter)
				w.Post("/{symbol}/owner", s.handleTransferTokenOwner)
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	applied, err := s.protocol.GenesisApplied(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	if !applied {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "awaiting_genesis"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// tokenDecimals caches registered token precision. Metadata never changes
// after registration.
func (s *Server) tokenDecimals(ctx context.Context, symbol string) (uint8, error) {
	s.decimalsMu.RLock()
	decimals, ok := s.decimals[symbol]
	s.decimalsMu.RUnlock()
	if ok {
		return decimals, nil
	}
	meta, err := s.protocol.TokenMetadata(ctx, symbol)
	if err != nil {
		return 0, err
	}
	s.decimalsMu.Lock()
	s.decimals[symbol] = meta.Decimals
	s.decimalsMu.Unlock()
	return meta.Decimals, nil
}
