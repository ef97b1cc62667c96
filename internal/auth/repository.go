package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ferdiebergado/gdprkit/internal/platform/db"
)

var (
	ErrNotFound    = errors.New("auth repository: user not found")
	ErrQueryFailed = errors.New("auth repository: query failed")
)

type SQLRepository struct {
	db db.Executor
}

var _ Repository = (*SQLRepository)(nil)

func NewRepository(dbExec db.Executor) *SQLRepository {
	return &SQLRepository{db: dbExec}
}

const queryVerify = `UPDATE users SET verified_at = NOW(), updated_at = NOW()
WHERE id = $1 AND verified_at IS NULL AND anonymized_at IS NULL`

// Verify marks the account as verified. Already verified and anonymized
// accounts report ErrNotFound.
func (r *SQLRepository) Verify(ctx context.Context, userID string) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, queryVerify, userID)
	if err != nil {
		return fmt.Errorf("%w: verify user %s: %w", ErrQueryFailed, userID, err)
	}
	return requireOne(res)
}

const queryChangePassword = `UPDATE users SET password_hash = $1, updated_at = NOW()
WHERE id = $2 AND anonymized_at IS NULL`

func (r *SQLRepository) ChangePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, queryChangePassword, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("%w: change password of user %s: %w", ErrQueryFailed, userID, err)
	}
	return requireOne(res)
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("auth repository: rows affected: %w", err)
	}

	if n == 0 {
		return ErrNotFound
	}
	return nil
}
