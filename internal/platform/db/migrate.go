package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	queryCreateMigrations = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	queryAppliedVersions = "SELECT version FROM schema_migrations"
	queryRecordVersion   = "INSERT INTO schema_migrations (version) VALUES ($1)"
)

// MigrationVersions lists the embedded migrations in the order they apply.
func MigrationVersions() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		if name := e.Name(); !e.IsDir() && strings.HasSuffix(name, ".sql") {
			versions = append(versions, strings.TrimSuffix(name, ".sql"))
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations. Each migration runs in its own transaction.
func Migrate(ctx context.Context, conn *sql.DB) ([]string, error) {
	if _, err := conn.ExecContext(ctx, queryCreateMigrations); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return nil, err
	}

	versions, err := MigrationVersions()
	if err != nil {
		return nil, err
	}

	txMgr := NewSQLTxManager(conn)

	var ran []string
	for _, version := range versions {
		if applied[version] {
			continue
		}

		script, err := migrationFS.ReadFile(path.Join("migrations", version+".sql"))
		if err != nil {
			return ran, fmt.Errorf("read migration %s: %w", version, err)
		}

		err = txMgr.RunInTx(ctx, func(txCtx context.Context) error {
			tx := TxFromContext(txCtx)
			if _, err := tx.ExecContext(txCtx, string(script)); err != nil {
				return fmt.Errorf("apply migration %s: %w", version, err)
			}
			if _, err := tx.ExecContext(txCtx, queryRecordVersion, version); err != nil {
				return fmt.Errorf("record migration %s: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return ran, err
		}

		slog.Info("Migration applied.", "version", version)
		ran = append(ran, version)
	}

	return ran, nil
}

func appliedVersions(ctx context.Context, conn Executor) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, queryAppliedVersions)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration rows: %w", err)
	}
	return applied, nil
}
