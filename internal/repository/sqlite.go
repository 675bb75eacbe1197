package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name: "sqlite",
	weekdayMatch: func(day time.Weekday) (string, any) {
		return `instr(',' || weekdays || ',', ?) > 0`, "," + day.String() + ","
	},
}

// NewSQLiteStore opens the SQLite database at dbPath, runs migrations and
// returns a Store. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLStore, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if dbPath == ":memory:" {
		dsn = dbPath + "?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer; a single connection also keeps an
	// in-memory database alive for the store's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	if err := migrate(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite: %w", err)
	}

	slog.Info("sqlite store initialized", "component", "repository", "path", dbPath)
	return &SQLStore{db: db, dialect: sqliteDialect}, nil
}
