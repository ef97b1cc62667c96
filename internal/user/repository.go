package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("user repository: user not found")
	ErrEmailTaken  = errors.New("user repository: email already registered")
	ErrQueryFailed = errors.New("user repository: query failed")
)

type SQLRepository struct {
	db     db.Executor
	cipher crypto.Cipher
}

var _ Repository = (*SQLRepository)(nil)

func NewRepository(dbExec db.Executor, cipher crypto.Cipher) *SQLRepository {
	return &SQLRepository{db: dbExec, cipher: cipher}
}

type CreateParams struct {
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	Role         string
	TermsVersion string
}

const columns = `id, email, name_enc, phone_enc, password_hash, role, verified_at, last_login_at,
terms_version, terms_accepted_at, anonymized_at, created_at, updated_at`

const queryCreate = `
INSERT INTO users (id, email, name_enc, phone_enc, password_hash, role, terms_version, terms_accepted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, CASE WHEN $7 = '' THEN NULL ELSE NOW() END)
RETURNING ` + columns

func (r *SQLRepository) Create(ctx context.Context, params CreateParams) (*User, error) {
	nameEnc, phoneEnc, err := r.seal(params.Name, params.Phone)
	if err != nil {
		return nil, err
	}

	role := params.Role
	if role == "" {
		role = RoleUser
	}

	row := db.Conn(ctx, r.db).QueryRowContext(ctx, queryCreate,
		uuid.NewString(),
		strings.ToLower(params.Email),
		db.NullString(nameEnc),
		db.NullString(phoneEnc),
		params.PasswordHash,
		role,
		params.TermsVersion,
	)

	u, err := r.scan(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: create user: %w", ErrQueryFailed, err)
	}
	return u, nil
}

const queryFind = "SELECT " + columns + " FROM users WHERE id = $1"

func (r *SQLRepository) Find(ctx context.Context, userID string) (*User, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, queryFind, userID)
	u, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: find user %s: %w", ErrQueryFailed, userID, err)
	}
	return u, nil
}

const queryFindByEmail = "SELECT " + columns + " FROM users WHERE email = $1 LIMIT 1"

func (r *SQLRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := db.Conn(ctx, r.db).QueryRowContext(ctx, queryFindByEmail, strings.ToLower(email))
	u, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: find user by email: %w", ErrQueryFailed, err)
	}
	return u, nil
}

const queryList = "SELECT " + columns + " FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2"

func (r *SQLRepository) List(ctx context.Context, limit, offset int) ([]User, error) {
	return r.query(ctx, "list users", queryList, limit, offset)
}

type ProfileParams struct {
	Name  *string
	Phone *string
}

func (r *SQLRepository) UpdateProfile(ctx context.Context, userID string, params ProfileParams) (*User, error) {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)

	if params.Name != nil {
		enc, err := r.cipher.Encrypt(*params.Name, aadName)
		if err != nil {
			return nil, fmt.Errorf("encrypt name: %w", err)
		}
		args = append(args, db.NullString(enc))
		sets = append(sets, fmt.Sprintf("name_enc = $%d", len(args)))
	}

	if params.Phone != nil {
		enc, err := r.cipher.Encrypt(*params.Phone, aadPhone)
		if err != nil {
			return nil, fmt.Errorf("encrypt phone: %w", err)
		}
		args = append(args, db.NullString(enc))
		sets = append(sets, fmt.Sprintf("phone_enc = $%d", len(args)))
	}

	if len(sets) == 0 {
		return r.Find(ctx, userID)
	}

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s, updated_at = NOW() WHERE id = $%d AND anonymized_at IS NULL RETURNING %s",
		strings.Join(sets, ", "), len(args), columns)

	row := db.Conn(ctx, r.db).QueryRowContext(ctx, query, args...)
	u, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: update profile of user %s: %w", ErrQueryFailed, userID, err)
	}
	return u, nil
}

const queryTouchLogin = "UPDATE users SET last_login_at = $1 WHERE id = $2"

func (r *SQLRepository) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, queryTouchLogin, at, userID)
	if err != nil {
		return fmt.Errorf("%w: touch login of user %s: %w", ErrQueryFailed, userID, err)
	}
	return requireOne(res)
}

// Retention listings read no ciphertext, so an undecryptable row fails only
// when it is processed.
const candidateColumns = "id, email, role, verified_at, last_login_at, created_at"

// Accounts that have never logged in are measured from their creation time.
const queryListInactive = "SELECT " + candidateColumns + ` FROM users
WHERE anonymized_at IS NULL AND role <> 'admin' AND COALESCE(last_login_at, created_at) < $1
AND (created_at, id) > ($2, $3)
ORDER BY created_at, id LIMIT $4`

// ListInactive pages through accounts without a login since before, starting
// after the cursor.
func (r *SQLRepository) ListInactive(ctx context.Context, before time.Time, after Cursor, limit int) ([]User, error) {
	return r.candidates(ctx, "list inactive users", queryListInactive, before, after.CreatedAt, after.ID, limit)
}

const queryCountInactive = `SELECT COUNT(*) FROM users
WHERE anonymized_at IS NULL AND role <> 'admin' AND COALESCE(last_login_at, created_at) < $1`

func (r *SQLRepository) CountInactive(ctx context.Context, before time.Time) (int, error) {
	return r.count(ctx, "count inactive users", queryCountInactive, before)
}

const queryListUnverified = "SELECT " + candidateColumns + ` FROM users
WHERE verified_at IS NULL AND anonymized_at IS NULL AND created_at < $1
AND (created_at, id) > ($2, $3)
ORDER BY created_at, id LIMIT $4`

func (r *SQLRepository) ListUnverified(ctx context.Context, before time.Time, after Cursor, limit int) ([]User, error) {
	return r.candidates(ctx, "list unverified users", queryListUnverified, before, after.CreatedAt, after.ID, limit)
}

const queryCountUnverified = `SELECT COUNT(*) FROM users
WHERE verified_at IS NULL AND anonymized_at IS NULL AND created_at < $1`

func (r *SQLRepository) CountUnverified(ctx context.Context, before time.Time) (int, error) {
	return r.count(ctx, "count unverified users", queryCountUnverified, before)
}

// Delete removes an account that never completed verification. Verified
// accounts are anonymized instead so their request history stays intact.
const queryDelete = "DELETE FROM users WHERE id = $1 AND verified_at IS NULL"

func (r *SQLRepository) Delete(ctx context.Context, userID string) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, queryDelete, userID)
	if err != nil {
		return fmt.Errorf("%w: delete user %s: %w", ErrQueryFailed, userID, err)
	}
	return requireOne(res)
}

const queryAnonymize = `
UPDATE users
SET email = $1, name_enc = NULL, phone_enc = NULL, password_hash = '', role = 'user', anonymized_at = $2, updated_at = $2
WHERE id = $3 AND anonymized_at IS NULL`

// Anonymize replaces the personal fields of an account with email and marks
// it anonymized. The row is kept so records pointing at it stay valid.
func (r *SQLRepository) Anonymize(ctx context.Context, userID, email string, at time.Time) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, queryAnonymize, email, at, userID)
	if err != nil {
		return fmt.Errorf("%w: anonymize user %s: %w", ErrQueryFailed, userID, err)
	}
	return requireOne(res)
}

const staleKeyFilter = `(name_enc IS NOT NULL AND split_part(name_enc, '.', 2) <> $1)
OR (phone_enc IS NOT NULL AND split_part(phone_enc, '.', 2) <> $1)`

const queryCountStaleKeys = "SELECT COUNT(*) FROM users WHERE " + staleKeyFilter

// CountStaleKeys counts rows holding a ciphertext sealed with a key other
// than the current one.
func (r *SQLRepository) CountStaleKeys(ctx context.Context) (int, error) {
	return r.count(ctx, "count stale keys", queryCountStaleKeys, r.cipher.CurrentKeyID())
}

const querySelectStale = "SELECT id, name_enc, phone_enc FROM users WHERE " + staleKeyFilter + " ORDER BY id LIMIT $2"

const queryRekey = `UPDATE users SET name_enc = $1, phone_enc = $2
WHERE id = $3 AND name_enc IS NOT DISTINCT FROM $4 AND phone_enc IS NOT DISTINCT FROM $5`

// Rekey re-encrypts up to batch rows under the current key and returns how
// many rows were rewritten. Rows changed concurrently are skipped and picked
// up by the next call.
func (r *SQLRepository) Rekey(ctx context.Context, batch int) (int, error) {
	type staleRow struct {
		id          string
		name, phone sql.NullString
	}

	conn := db.Conn(ctx, r.db)
	rows, err := conn.QueryContext(ctx, querySelectStale, r.cipher.CurrentKeyID(), batch)
	if err != nil {
		return 0, fmt.Errorf("%w: select stale rows: %w", ErrQueryFailed, err)
	}
	defer rows.Close()

	var stale []staleRow
	for rows.Next() {
		var s staleRow
		if err := rows.Scan(&s.id, &s.name, &s.phone); err != nil {
			return 0, fmt.Errorf("user repository: scan stale row: %w", err)
		}
		stale = append(stale, s)
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("user repository: iterate over stale rows: %w", err)
	}

	rekeyed := 0
	for _, s := range stale {
		name, err := r.cipher.Decrypt(s.name.String, aadName)
		if err != nil {
			return rekeyed, fmt.Errorf("decrypt name of user %s: %w", s.id, err)
		}

		phone, err := r.cipher.Decrypt(s.phone.String, aadPhone)
		if err != nil {
			return rekeyed, fmt.Errorf("decrypt phone of user %s: %w", s.id, err)
		}

		nameEnc, phoneEnc, err := r.seal(name, phone)
		if err != nil {
			return rekeyed, err
		}

		res, err := conn.ExecContext(ctx, queryRekey, db.NullString(nameEnc), db.NullString(phoneEnc), s.id, s.name, s.phone)
		if err != nil {
			return rekeyed, fmt.Errorf("%w: rekey user %s: %w", ErrQueryFailed, s.id, err)
		}

		if n, _ := res.RowsAffected(); n == 1 {
			rekeyed++
		}
	}

	return rekeyed, nil
}

func (r *SQLRepository) seal(name, phone string) (nameEnc, phoneEnc string, err error) {
	nameEnc, err = r.cipher.Encrypt(name, aadName)
	if err != nil {
		return "", "", fmt.Errorf("encrypt name: %w", err)
	}

	phoneEnc, err = r.cipher.Encrypt(phone, aadPhone)
	if err != nil {
		return "", "", fmt.Errorf("encrypt phone: %w", err)
	}
	return nameEnc, phoneEnc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scan(row scanner) (*User, error) {
	var (
		u                                        User
		nameEnc, phoneEnc, termsVersion          sql.NullString
		verifiedAt, lastLoginAt, termsAt, anonAt sql.NullTime
	)

	if err := row.Scan(&u.ID, &u.Email, &nameEnc, &phoneEnc, &u.PasswordHash, &u.Role, &verifiedAt, &lastLoginAt,
		&termsVersion, &termsAt, &anonAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if u.Name, err = r.cipher.Decrypt(nameEnc.String, aadName); err != nil {
		return nil, fmt.Errorf("decrypt name of user %s: %w", u.ID, err)
	}

	if u.Phone, err = r.cipher.Decrypt(phoneEnc.String, aadPhone); err != nil {
		return nil, fmt.Errorf("decrypt phone of user %s: %w", u.ID, err)
	}

	u.TermsVersion = termsVersion.String
	u.VerifiedAt = db.TimePtr(verifiedAt)
	u.LastLoginAt = db.TimePtr(lastLoginAt)
	u.TermsAcceptedAt = db.TimePtr(termsAt)
	u.AnonymizedAt = db.TimePtr(anonAt)

	return &u, nil
}

func (r *SQLRepository) query(ctx context.Context, op, query string, args ...any) ([]User, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, op, err)
	}
	defer rows.Close()

	//nolint:prealloc //Cannot identify the length of the rows without running another query.
	var users []User
	for rows.Next() {
		u, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("user repository: %s: scan row: %w", op, err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user repository: %s: iterate over rows: %w", op, err)
	}

	return users, nil
}

func (r *SQLRepository) candidates(ctx context.Context, op, query string, args ...any) ([]User, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, op, err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u                       User
			verifiedAt, lastLoginAt sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Role, &verifiedAt, &lastLoginAt, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("user repository: %s: scan row: %w", op, err)
		}
		u.VerifiedAt = db.TimePtr(verifiedAt)
		u.LastLoginAt = db.TimePtr(lastLoginAt)
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user repository: %s: iterate over rows: %w", op, err)
	}

	return users, nil
}

func (r *SQLRepository) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	if err := db.Conn(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrQueryFailed, op, err)
	}
	return n, nil
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if n == 0 {
		return ErrNotFound
	}
	return nil
}
