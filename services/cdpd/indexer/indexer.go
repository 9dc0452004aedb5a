package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cdpchain/core/events"
)

const (
	queueSize       = 4096
	insertBatchSize = 128
	defaultLimit    = 100
	maxLimit        = 1000
)

// Open connects to the index database. postgres:// and postgresql:// DSNs
// use the postgres driver; anything else is treated as a sqlite path.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errors.New("indexer: dsn required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		return gorm.Open(postgres.Open(trimmed), cfg)
	}
	return gorm.Open(sqlite.Open(trimmed), cfg)
}

// Store records committed events. Emit enqueues and Run persists, so the
// protocol never waits on the database while holding its lock unless the
// queue is full.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	queue  chan EventRecord
	seq    atomic.Uint64
	nowFn  func() time.Time
}

func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("indexer: nil database")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	var last uint64
	if err := db.Model(&EventRecord{}).Select("COALESCE(MAX(sequence), 0)").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("indexer: load sequence: %w", err)
	}
	store := &Store{
		db:     db,
		logger: log.With("component", "indexer"),
		queue:  make(chan EventRecord, queueSize),
		nowFn:  time.Now,
	}
	store.seq.Store(last)
	return store, nil
}

// Emit implements events.Emitter.
func (s *Store) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	record, err := s.toRecord(evt)
	if err != nil {
		s.logger.Error("event not indexable", slog.String("type", evt.EventType()), slog.String("error", err.Error()))
		return
	}
	s.queue <- record
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (s *Store) Run(ctx context.Context) {
	pending := make([]EventRecord, 0, insertBatchSize)
	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := s.db.WithContext(ctx).CreateInBatches(pending, insertBatchSize).Error; err != nil {
			s.logger.Error("index write failed", slog.Int("events", len(pending)), slog.String("error", err.Error()))
		}
		pending = pending[:0]
	}
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case record := <-s.queue:
					pending = append(pending, record)
				default:
					flush(context.Background())
					return
				}
			}
		case record := <-s.queue:
			pending = append(pending, record)
		drain:
			for len(pending) < insertBatchSize {
				select {
				case next := <-s.queue:
					pending = append(pending, next)
				default:
					break drain
				}
			}
			flush(ctx)
		}
	}
}

// Record persists evt synchronously.
func (s *Store) Record(ctx context.Context, evt events.Event) error {
	record, err := s.toRecord(evt)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

func (s *Store) toRecord(evt events.Event) (EventRecord, error) {
	payload := evt.Event()
	if payload == nil {
		return EventRecord{}, errors.New("indexer: event has no payload")
	}
	attrs, err := json.Marshal(payload.Attributes)
	if err != nil {
		return EventRecord{}, err
	}
	record := EventRecord{
		ID:         uuid.New(),
		Sequence:   s.seq.Add(1),
		Type:       payload.Type,
		Attributes: string(attrs),
		CreatedAt:  s.nowFn().UTC(),
	}
	if raw := payload.Attr("vaultId"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			record.VaultID = &id
		}
	}
	for _, key := range []string{"owner", "from", "account", "source"} {
		if value := payload.Attr(key); value != "" {
			record.Account = value
			break
		}
	}
	return record, nil
}

// VaultEvents returns the newest events for a vault, newest first.
func (s *Store) VaultEvents(ctx context.Context, vaultID uint64, limit int) ([]EventRecord, error) {
	var out []EventRecord
	err := s.db.WithContext(ctx).
		Where("vault_id = ?", vaultID).
		Order("sequence DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	return out, err
}

// Recent lists the newest events, optionally filtered by type.
func (s *Store) Recent(ctx context.Context, eventType string, limit int) ([]EventRecord, error) {
	query := s.db.WithContext(ctx).Order("sequence DESC").Limit(clampLimit(limit))
	if trimmed := strings.TrimSpace(eventType); trimmed != "" {
		query = query.Where("type = ?", trimmed)
	}
	var out []EventRecord
	err := query.Find(&out).Error
	return out, err
}

// DecodeAttributes unpacks the stored attribute map.
func (r EventRecord) DecodeAttributes() (map[string]string, error) {
	out := map[string]string{}
	if r.Attributes == "" {
		return out, nil
	}
	err := json.Unmarshal([]byte(r.Attributes), &out)
	return out, err
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
