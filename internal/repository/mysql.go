package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
)

var mysqlDialect = dialect{
	name: "mysql",
	weekdayMatch: func(day time.Weekday) (string, any) {
		return `FIND_IN_SET(?, weekdays) > 0`, day.String()
	},
}

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// DSN returns the MySQL data source name. clientFoundRows makes UPDATE
// report matched rows, so saving an unchanged pet is not a not-found.
func (c MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.Name
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

// NewMySQLStore connects to MySQL, runs migrations and returns a Store.
func NewMySQLStore(ctx context.Context, cfg MySQLConfig) (*SQLStore, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := migrate(ctx, db, goose.DialectMySQL, "migrations/mysql"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate MySQL: %w", err)
	}

	slog.Info("mysql store initialized", "component", "repository", "addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), "db", cfg.Name)
	return &SQLStore{db: db, dialect: mysqlDialect}, nil
}
