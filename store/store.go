package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/mediascribe/logger"
	"github.com/kbukum/mediascribe/observability"
	"github.com/kbukum/mediascribe/resilience"
)

// ListQuery filters and pages List results.
type ListQuery struct {
	State  string
	Limit  int
	Offset int
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store persists finished jobs in SQLite.
type Store struct {
	db     *gorm.DB
	log    *logger.Logger
	cfg    Config
	mu     sync.Mutex
	closed bool
}

// Open connects to the database, retrying transient failures, and migrates
// the schema.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("store")

	gormCfg := &gorm.Config{
		Logger: newGormLogger(log, cfg.SlowQueryThreshold, parseLogLevel(cfg.LogLevel)),
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Warn("database connection attempt failed, retrying", logger.Fields(
			"attempt", attempt,
			logger.FieldError, err.Error(),
			"backoff", backoff.String(),
		))
	}

	db, err := resilience.Retry(ctx, retry, func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		// SQLite serialises writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect to %s after %d attempts: %w", cfg.DSN, cfg.MaxRetries, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&JobRecord{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	log.Info("job store ready", logger.Fields("dsn", cfg.DSN))
	return &Store{db: db, log: log, cfg: cfg}, nil
}

// Save inserts rec or replaces the existing record with the same id.
func (s *Store) Save(ctx context.Context, rec *JobRecord) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
	if err != nil {
		return fromDatabase(err, "job", rec.ID)
	}
	return nil
}

// Get returns the record of job id, or NOT_FOUND.
func (s *Store) Get(ctx context.Context, id string) (*JobRecord, error) {
	var rec JobRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, fromDatabase(err, "job", id)
	}
	return &rec, nil
}

// List returns records newest first together with the total matching count.
func (s *Store) List(ctx context.Context, q ListQuery) ([]JobRecord, int64, error) {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	q.Limit = min(q.Limit, maxLimit)
	q.Offset = max(q.Offset, 0)

	scoped := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&JobRecord{})
		if q.State != "" {
			tx = tx.Where("state = ?", q.State)
		}
		return tx
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fromDatabase(err, "job", "")
	}

	var recs []JobRecord
	err := scoped().Order("submitted_at DESC").Order("id").
		Limit(q.Limit).Offset(q.Offset).
		Find(&recs).Error
	if err != nil {
		return nil, 0, fromDatabase(err, "job", "")
	}
	return recs, total, nil
}

// Delete removes the record of job id. Deleting an unknown id returns NOT_FOUND.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&JobRecord{}, "id = ?", id)
	if res.Error != nil {
		return fromDatabase(res.Error, "job", id)
	}
	if res.RowsAffected == 0 {
		return fromDatabase(gorm.ErrRecordNotFound, "job", id)
	}
	return nil
}

// CheckHealth pings the database.
func (s *Store) CheckHealth(ctx context.Context) observability.Health {
	h := observability.Health{Name: "store", Status: observability.HealthStatusUp}
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.Status = observability.HealthStatusDown
		h.Message = err.Error()
	}
	return h
}

// Close closes the connection pool. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.log.Info("closing job store")
	return sqlDB.Close()
}

var _ observability.HealthChecker = (*Store)(nil)
