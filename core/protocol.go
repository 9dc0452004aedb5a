package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"cdpchain/core/events"
	"cdpchain/core/genesis"
	"cdpchain/core/state"
	"cdpchain/crypto"
	nativecommon "cdpchain/native/common"
	"cdpchain/native/oracle"
	"cdpchain/native/token"
	"cdpchain/native/vault"
	"cdpchain/storage"
)

// Module principals.
var (
	VaultModuleAddress   = crypto.ModuleAddress("vault")
	CustodyModuleAddress = crypto.ModuleAddress("custody")
)

var (
	ErrGenesisApplied = errors.New("protocol: genesis already applied")
	errNilDatabase    = errors.New("protocol: database must not be nil")
)

var (
	defaultTokenSymbols = []string{genesis.SymbolGovernance, genesis.SymbolStable, genesis.SymbolCollateral}
	tracer              = otel.Tracer("cdpchain/core")
	meter               = otel.Meter("cdpchain/core")
)

// Metrics receives per-operation outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveOperation(op string, outcome string, elapsed time.Duration)
	SetTotalDebt(total *big.Int)
}

// Config wires a Protocol.
type Config struct {
	DB          storage.Database
	VaultParams vault.Params
	// Custody moves collateral into the custody module account through the
	// STX ledger.
	Custody bool
	Pauses  nativecommon.PauseView
	// Emitter receives events after their unit of work commits.
	Emitter events.Emitter
	Metrics Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Protocol serialises every operation and runs each one as a single unit of
// work over the database: engines stage writes in a journal that is either
// committed as one batch or discarded. Events are released only after a
// successful commit.
type Protocol struct {
	mu      sync.Mutex
	db      storage.Database
	params  vault.Params
	custody bool
	pauses  nativecommon.PauseView
	sink    events.Emitter
	metrics Metrics
	logger  *slog.Logger
	nowFn   func() time.Time

	opCounter metric.Int64Counter
	opLatency metric.Float64Histogram
}

func NewProtocol(cfg Config) (*Protocol, error) {
	if cfg.DB == nil {
		return nil, errNilDatabase
	}
	params := cfg.VaultParams
	if params.MinCollateralRatioBps == 0 && params.BaseAsset == "" {
		params = vault.DefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := &Protocol{
		db:      cfg.DB,
		params:  params,
		custody: cfg.Custody,
		pauses:  cfg.Pauses,
		sink:    cfg.Emitter,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		nowFn:   cfg.Now,
	}
	if p.sink == nil {
		p.sink = events.NoopEmitter{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "protocol")
	if p.nowFn == nil {
		p.nowFn = time.Now
	}
	// Instruments bind to the global meter provider, so they export once
	// telemetry is initialised and are no-ops otherwise.
	var err error
	if p.opCounter, err = meter.Int64Counter("cdp.protocol.operations",
		metric.WithDescription("Protocol operations by outcome.")); err != nil {
		return nil, fmt.Errorf("protocol: operations counter: %w", err)
	}
	if p.opLatency, err = meter.Float64Histogram("cdp.protocol.operation.duration",
		metric.WithDescription("Protocol operation latency."), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("protocol: latency histogram: %w", err)
	}
	return p, nil
}

// VaultParams returns the active vault risk parameters.
func (p *Protocol) VaultParams() vault.Params { return p.params }

type engines struct {
	state  *state.Manager
	oracle *oracle.Engine
	tokens map[string]*token.Engine
	vault  *vault.Engine
}

func (e *engines) token(symbol string) (*token.Engine, error) {
	engine, ok := e.tokens[token.NormalizeSymbol(symbol)]
	if !ok {
		return nil, token.ErrNotRegistered
	}
	return engine, nil
}

func (p *Protocol) newEngines(mgr *state.Manager, emitter events.Emitter) *engines {
	now := func() int64 { return p.nowFn().Unix() }

	oracleEngine := oracle.NewEngine()
	oracleEngine.SetState(mgr)
	oracleEngine.SetEmitter(emitter)
	oracleEngine.SetNowFunc(now)
	oracleEngine.SetPauses(p.pauses)

	tokens := make(map[string]*token.Engine, len(defaultTokenSymbols))
	for _, symbol := range defaultTokenSymbols {
		engine := token.NewEngine(symbol)
		engine.SetState(mgr)
		engine.SetEmitter(emitter)
		engine.SetPauses(p.pauses)
		tokens[engine.Symbol()] = engine
	}

	vaultEngine := vault.NewEngine(VaultModuleAddress, CustodyModuleAddress, p.params)
	vaultEngine.SetState(mgr)
	vaultEngine.SetPriceFeed(oracleEngine)
	vaultEngine.SetDebtLedger(tokens[genesis.SymbolStable])
	if p.custody {
		vaultEngine.SetCustody(tokens[genesis.SymbolCollateral])
	}
	vaultEngine.SetEmitter(emitter)
	vaultEngine.SetNowFunc(now)
	vaultEngine.SetPauses(p.pauses)

	return &engines{state: mgr, oracle: oracleEngine, tokens: tokens, vault: vaultEngine}
}

// execute runs fn as one unit of work. Staged writes and buffered events are
// dropped when fn fails.
func (p *Protocol) execute(ctx context.Context, op string, fn func(*engines) error) (err error) {
	ctx, span := tracer.Start(ctx, "protocol."+op)
	defer span.End()
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.nowFn()
	journal := state.NewJournal(p.db)
	buffer := &events.Buffer{}
	eng := p.newEngines(state.NewManager(journal), buffer)

	defer func() {
		p.observe(ctx, span, op, start, err)
	}()

	if err := fn(eng); err != nil {
		journal.Discard()
		buffer.Reset()
		return err
	}
	// The journal is closed by Commit, so the gauge value is read first.
	totalDebt, debtErr := eng.vault.TotalDebt()
	if err := journal.Commit(); err != nil {
		buffer.Reset()
		return fmt.Errorf("protocol: commit %s: %w", op, err)
	}
	buffer.Flush(p.sink)
	if p.metrics != nil && debtErr == nil {
		p.metrics.SetTotalDebt(totalDebt)
	}
	return nil
}

// view runs a read-only fn against a throwaway journal.
func (p *Protocol) view(ctx context.Context, fn func(*engines) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	journal := state.NewJournal(p.db)
	defer journal.Discard()
	return fn(p.newEngines(state.NewManager(journal), events.NoopEmitter{}))
}

func (p *Protocol) observe(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	elapsed := p.nowFn().Sub(start)
	outcome := "committed"
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
		p.logger.Debug("operation committed", slog.String("op", op), slog.Duration("elapsed", elapsed))
	case isProtocolFailure(err):
		outcome = "rejected"
		code, _ := nativecommon.CodeOf(err)
		span.SetAttributes(attribute.Int64("cdp.error_code", int64(code)))
		span.SetStatus(codes.Error, err.Error())
		p.logger.Info("operation rejected", slog.String("op", op), slog.Any("code", code), slog.String("error", err.Error()))
	default:
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("operation failed", slog.String("op", op), slog.String("error", err.Error()))
	}
	attrs := metric.WithAttributes(attribute.String("op", op), attribute.String("outcome", outcome))
	p.opCounter.Add(ctx, 1, attrs)
	p.opLatency.Record(ctx, elapsed.Seconds(), attrs)
	if p.metrics != nil {
		p.metrics.ObserveOperation(op, outcome, elapsed)
	}
}

func isProtocolFailure(err error) bool {
	if _, ok := nativecommon.CodeOf(err); ok {
		return true
	}
	return errors.Is(err, nativecommon.ErrModulePaused)
}

// InitGenesis seeds the database from spec. It fails once genesis has been
// applied.
func (p *Protocol) InitGenesis(ctx context.Context, spec *genesis.GenesisSpec) error {
	if spec == nil {
		return fmt.Errorf("protocol: genesis spec must not be nil")
	}
	return p.execute(ctx, "init_genesis", func(e *engines) error {
		applied, err := e.state.GenesisApplied()
		if err != nil {
			return err
		}
		if applied {
			return ErrGenesisApplied
		}
		if err := genesis.Apply(spec, genesis.Target{Oracle: e.oracle, Tokens: e.tokens}); err != nil {
			return err
		}
		ts := spec.GenesisTimestamp().Unix()
		if ts < 0 {
			ts = 0
		}
		return e.state.MarkGenesis(uint64(ts))
	})
}

// GenesisApplied reports whether InitGenesis has committed.
func (p *Protocol) GenesisApplied(ctx context.Context) (bool, error) {
	var applied bool
	err := p.view(ctx, func(e *engines) error {
		var err error
		applied, err = e.state.GenesisApplied()
		return err
	})
	return applied, err
}
