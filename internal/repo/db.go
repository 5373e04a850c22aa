// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and Postgres, DSN dispatch, and schema migrations.
package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/hordalan/checkin-bot/internal/domain"
)

// Options tunes Open.
type Options struct {
	// LogLevel is the GORM logger level; zero means silent.
	LogLevel logger.LogLevel
	// Tracing installs the OpenTelemetry GORM plugin.
	Tracing bool
}

// Open connects to the database named by dsn. Postgres URLs/keyword DSNs go
// to the Postgres driver; everything else ("sqlite:///path", a bare path,
// ":memory:") opens SQLite.
func Open(dsn string, opts Options) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}

	var (
		db  *gorm.DB
		err error
	)
	if pg, ok := postgresDSN(dsn); ok {
		db, err = OpenPostgres(pg)
	} else {
		db, err = OpenSQLite(sqlitePath(dsn))
	}
	if err != nil {
		return nil, err
	}

	level := opts.LogLevel
	if level == 0 {
		level = logger.Silent
	}
	db.Logger = logger.Default.LogMode(level)

	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")

	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if !memory {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		if memory {
			// every connection to ":memory:" is its own database
			sqlDB.SetMaxOpenConns(1)
		} else {
			sqlDB.SetMaxOpenConns(10)
			sqlDB.SetMaxIdleConns(10)
		}
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenPostgres opens a Postgres connection pool.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// AutoMigrate creates or updates all tables used by the bot.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.PresenceState{},
		&domain.StatusMessage{},
		&domain.InteractionReceipt{},
	)
}

// postgresDSN reports whether dsn targets Postgres and returns it in a form
// pgx understands. SQLAlchemy-style "postgresql+driver://" schemes are
// reduced to "postgresql://".
func postgresDSN(dsn string) (string, bool) {
	low := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(low, "postgres://"), strings.HasPrefix(low, "postgresql://"):
		return dsn, true
	case strings.HasPrefix(low, "postgresql+"):
		if i := strings.Index(dsn, "://"); i > 0 {
			return "postgresql" + dsn[i:], true
		}
	case strings.Contains(low, "host=") && !strings.HasPrefix(low, "sqlite:"):
		return dsn, true
	}
	return "", false
}

// sqlitePath turns "sqlite:///rel.db" into "rel.db" and "sqlite:////abs.db"
// into "/abs.db". A bare "sqlite://" means an in-memory database.
func sqlitePath(dsn string) string {
	switch {
	case dsn == "sqlite://" || dsn == "sqlite:///:memory:":
		return ":memory:"
	case strings.HasPrefix(dsn, "sqlite:///"):
		return strings.TrimPrefix(dsn, "sqlite:///")
	case strings.HasPrefix(dsn, "sqlite://"):
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	return dsn
}
