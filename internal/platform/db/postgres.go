package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/pkg/env"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const codeUniqueViolation = "23505"

// DSN builds the connection string from the DB_* environment variables.
func DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(env.Env("DB_USER", "postgres"), env.Env("DB_PASS", "")),
		Host:     env.Env("DB_HOST", "localhost") + ":" + env.Env("DB_PORT", "5432"),
		Path:     env.Env("DB_NAME", "gdprkit"),
		RawQuery: "sslmode=" + env.Env("DB_SSLMODE", "disable"),
	}
	return u.String()
}

// NewPostgresDB creates and validates a database connection.
func NewPostgresDB(signalCtx context.Context, cfg *config.DB) (*sql.DB, error) {
	slog.Info("Connecting to the database...")

	conn, err := sql.Open(cfg.Driver, DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime.Duration)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)

	pingCtx, cancel := context.WithTimeout(signalCtx, cfg.PingTimeout.Duration)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	slog.Info("Connected to the database.")

	return conn, nil
}

// IsUniqueViolation reports whether err is a postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
