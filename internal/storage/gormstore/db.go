// Package gormstore is the Postgres implementation of storage.Store.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jwebster45206/lifequest/internal/storage"
)

var _ storage.Store = (*Store)(nil)

func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

type txKeyType struct{}

var txKey = txKeyType{}

func withTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

func getDBFromCtx(ctx context.Context, base *gorm.DB) *gorm.DB {
	if v := ctx.Value(txKey); v != nil {
		if tx, ok := v.(*gorm.DB); ok && tx != nil {
			return tx
		}
	}
	return base.WithContext(ctx)
}

// Store implements every repository over one *gorm.DB.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Open connects to dsn and returns a Store.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := OpenPostgres(dsn)
	if err != nil {
		return nil, err
	}
	return New(db, logger), nil
}

// DB exposes the handle for migrations.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return getDBFromCtx(ctx, s.db)
}

// RunInTx opens a transaction, or a savepoint when ctx already carries
// one. gorm nests Transaction calls as SAVEPOINT / ROLLBACK TO, which also
// clears an aborted statement so the outer transaction stays usable.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if outer, ok := ctx.Value(txKey).(*gorm.DB); ok && outer != nil {
		return outer.Transaction(func(tx *gorm.DB) error {
			return fn(withTx(ctx, tx))
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(withTx(ctx, tx))
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		s.logger.Error("Failed to close Postgres connection", "error", err)
		return err
	}
	s.logger.Info("Postgres connection closed")
	return nil
}

// translate maps gorm errors onto the storage sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	default:
		return err
	}
}
