package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/events"
)

// DefaultLimit caps a query without an explicit limit.
const DefaultLimit = 100

// Store persists committed events in sqlite and answers history queries.
// It implements events.Emitter.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time

	mu  sync.Mutex
	seq uint64
}

var _ events.Emitter = (*Store)(nil)

// Open opens the sqlite database at dsn, e.g. "indexer.db" or
// "file:events?mode=memory&cache=shared".
func Open(dsn string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %q: %w", dsn, err)
	}
	return New(db, log)
}

// New migrates db and resumes numbering after the last stored event.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	var last EventRecord
	err := db.Order("seq desc").Limit(1).Take(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("indexer: resume: %w", err)
	}
	return &Store{
		db:     db,
		logger: log.With("component", "indexer"),
		nowFn:  time.Now,
		seq:    last.Seq,
	}, nil
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Emit records e, logging instead of failing when the write errors.
func (s *Store) Emit(e events.Event) {
	if e == nil {
		return
	}
	if _, err := s.Record(context.Background(), e); err != nil {
		s.logger.Error("index event", "type", e.EventType(), "error", err)
	}
}

// Record stores e and returns the stored row.
func (s *Store) Record(ctx context.Context, e events.Event) (*EventRecord, error) {
	wire := e.Event()
	if wire == nil {
		return nil, fmt.Errorf("indexer: event %s has no payload", e.EventType())
	}
	attrs, err := json.Marshal(wire.Attributes)
	if err != nil {
		return nil, err
	}
	rec := &EventRecord{
		ID:         uuid.New(),
		Type:       wire.Type,
		Attributes: string(attrs),
		CreatedAt:  s.nowFn().UTC(),
	}
	if raw, ok := wire.Attributes["positionId"]; ok {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			rec.PositionID = &id
		}
	}
	if vault, ok := wire.Attributes["vault"]; ok {
		rec.Vault = vault
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Seq = s.seq + 1
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	s.seq = rec.Seq
	return rec, nil
}

// Query filters stored events. Zero fields do not filter.
type Query struct {
	Type       string
	PositionID *uint64
	Vault      string
	AfterSeq   uint64
	Limit      int
}

// Events returns matching events in emission order.
func (s *Store) Events(ctx context.Context, q Query) ([]EventRecord, error) {
	tx := s.db.WithContext(ctx).Model(&EventRecord{})
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.PositionID != nil {
		tx = tx.Where("position_id = ?", *q.PositionID)
	}
	if q.Vault != "" {
		tx = tx.Where("vault = ?", q.Vault)
	}
	if q.AfterSeq > 0 {
		tx = tx.Where("seq > ?", q.AfterSeq)
	}
	limit := q.Limit
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	var out []EventRecord
	if err := tx.Order("seq asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Decode returns the attribute map of a stored event.
func (r EventRecord) Decode() (map[string]string, error) {
	out := map[string]string{}
	if r.Attributes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
