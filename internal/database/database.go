package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	_ "github.com/go-sql-driver/mysql"                   // mysql
	_ "github.com/jackc/pgx/v5/stdlib"                   // pgx
	_ "github.com/lib/pq"                                // postgres
	_ "github.com/mattn/go-sqlite3"                      // sqlite3
	_ "github.com/tursodatabase/libsql-client-go/libsql" // libsql
	_ "modernc.org/sqlite"                               // sqlite

	"github.com/samber/lo"
)

// ErrUnknownDriver is returned for a driver name no dialect is registered for.
var ErrUnknownDriver = errors.New("unknown database driver")

var dialects = map[string]Dialect{
	"sqlite3":  SQLite,
	"sqlite":   SQLite,
	"libsql":   SQLite,
	"postgres": Postgres,
	"pgx":      Postgres,
	"mysql":    MySQL,
}

type Config struct {
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	PingTimeout     time.Duration `koanf:"ping_timeout"`
}

// Drivers lists the driver names Open accepts.
func Drivers() []string {
	names := lo.Keys(dialects)
	slices.Sort(names)
	return names
}

func Lookup(driver string) (Dialect, error) {
	dialect, ok := dialects[driver]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return dialect, nil
}

// Open connects with the configured driver, sizes the pool, pings, and runs
// the dialect's connection setup.
//
// SQLite-family pools are pinned to a single connection: an in-memory database
// lives only as long as its connection, and pragmas are per connection.
func Open(ctx context.Context, cfg Config) (*sql.DB, Dialect, error) {
	dialect, err := Lookup(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("opening %s connection: %w", cfg.Driver, err)
	}

	if dialect.Name == SQLite.Name {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := ping(ctx, db, cfg.PingTimeout); err != nil {
		closeQuietly(db)
		return nil, Dialect{}, fmt.Errorf("pinging %s: %w", cfg.Driver, err)
	}

	for _, stmt := range dialect.Setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			closeQuietly(db)
			return nil, Dialect{}, fmt.Errorf("setting up %s connection: %w", cfg.Driver, err)
		}
	}

	slog.Default().DebugContext(ctx, "database opened", "driver", cfg.Driver, "dialect", dialect.Name)

	return db, dialect, nil
}

func ping(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Default().Error("database: failed to close", "error", err.Error())
	}
}
