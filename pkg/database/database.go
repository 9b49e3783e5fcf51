package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookswap/pkg/config"
	"bookswap/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const retryInterval = 5 * time.Second

// Partial unique indexes that gorm tags cannot express. Both postgres and
// sqlite accept this syntax.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_exchange_open_request
		ON exchange_transactions (book_id, borrower_id)
		WHERE status IN ('requested', 'approved', 'active')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_exchange_book_holder
		ON exchange_transactions (book_id)
		WHERE status IN ('approved', 'active')`,
}

const slowQueryThreshold = 200 * time.Millisecond

// gormConfig routes gorm's query log through log. Misses are expected
// answers and are not logged.
func gormConfig(log *slog.Logger) *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: logger.New(slog.NewLogLogger(log.Handler(), slog.LevelWarn), logger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	}
}

// InitExchangeDB connects to postgres, retrying while the database comes up,
// and applies migrations.
func InitExchangeDB(cfg config.Database, log *slog.Logger) (*gorm.DB, error) {
	log.Info("connecting to database", "host", cfg.Host, "port", cfg.Port, "name", cfg.Name)

	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig(log))
		if err == nil {
			break
		}
		log.Warn("database connection attempt failed", "attempt", i+1, "max", attempts, "error", err)
		if i < attempts-1 {
			time.Sleep(retryInterval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database connection established")
	return db, nil
}

// OpenSQLite opens a sqlite database at path (":memory:" for a private
// in-memory one). A single connection is used so that in-memory databases
// are shared by every query and writers never contend for the file lock.
func OpenSQLite(path string) (*gorm.DB, error) {
	return OpenSQLiteWithLogger(path, slog.Default())
}

// OpenSQLiteWithLogger is OpenSQLite with gorm's log sent to log.
func OpenSQLiteWithLogger(path string, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Rating{}, &models.Book{}, &models.Transaction{}); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
