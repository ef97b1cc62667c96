package dsr

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

var ErrQueryFailed = errors.New("dsr repository: query failed")

const aadEmail = "data_requests.email"

// Stale request kinds removed by retention.
const (
	StaleClosed     = "closed"
	StaleUnverified = "unverified"
)

type Filter struct {
	Status  string
	Type    string
	Overdue bool
	Now     time.Time
	Limit   int
	Offset  int
}

type SQLRepository struct {
	db     db.Executor
	cipher crypto.Cipher
}

var _ Repository = (*SQLRepository)(nil)

func NewRepository(dbExec db.Executor, cipher crypto.Cipher) *SQLRepository {
	return &SQLRepository{db: dbExec, cipher: cipher}
}

const columns = `id, reference, user_id, email, email_hash, type, description, status, resolution, due_at,
extended_at, extension_reason, verified_at, closed_at, created_at, updated_at`

const queryCreate = `
INSERT INTO data_requests (id, reference, user_id, email, email_hash, type, description, status, due_at, verified_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

// Create stores req with its email encrypted. It assigns the id when unset.
func (r *SQLRepository) Create(ctx context.Context, req *Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	emailEnc, err := r.cipher.Encrypt(req.Email, aadEmail)
	if err != nil {
		return fmt.Errorf("encrypt email: %w", err)
	}

	req.UpdatedAt = req.CreatedAt
	_, err = db.Conn(ctx, r.db).ExecContext(ctx, queryCreate,
		req.ID,
		req.Reference,
		db.NullString(req.UserID),
		emailEnc,
		req.EmailHash,
		req.Type,
		req.Description,
		req.Status,
		req.DueAt,
		db.NullTime(req.VerifiedAt),
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrQueryFailed, err)
	}
	return nil
}

func (r *SQLRepository) Find(ctx context.Context, id string) (*Request, error) {
	return r.findOne(ctx, "find request", "SELECT "+columns+" FROM data_requests WHERE id = $1", id)
}

func (r *SQLRepository) FindByReference(ctx context.Context, reference string) (*Request, error) {
	return r.findOne(ctx, "find request by reference", "SELECT "+columns+" FROM data_requests WHERE reference = $1", reference)
}

func (r *SQLRepository) findOne(ctx context.Context, op, query, arg string) (*Request, error) {
	reqs, err := r.query(ctx, op, query, arg)
	if err != nil {
		return nil, err
	}

	if len(reqs) == 0 {
		return nil, ErrNotFound
	}
	return &reqs[0], nil
}

func (r *SQLRepository) List(ctx context.Context, f Filter) ([]Request, error) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Overdue {
		add("status IN ('pending', 'in_progress') AND due_at < $%d", f.Now)
	}

	var b strings.Builder
	b.WriteString("SELECT " + columns + " FROM data_requests")
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	args = append(args, f.Limit, f.Offset)
	fmt.Fprintf(&b, " ORDER BY due_at LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.query(ctx, "list requests", b.String(), args...)
}

const queryListBySubject = "SELECT " + columns + " FROM data_requests WHERE user_id = $1 OR email_hash = $2 ORDER BY created_at DESC"

// ListBySubject returns the requests linked to the account or sent from its
// address.
func (r *SQLRepository) ListBySubject(ctx context.Context, userID, emailHash string) ([]Request, error) {
	return r.query(ctx, "list requests by subject", queryListBySubject, userID, emailHash)
}

const queryUpdate = `
UPDATE data_requests
SET user_id = $1, status = $2, resolution = $3, due_at = $4, extended_at = $5, extension_reason = $6,
    verified_at = $7, closed_at = $8, updated_at = $9
WHERE id = $10 AND status = $11`

// Update writes the mutable fields of req. It only succeeds while the stored
// status still is prevStatus, so concurrent changes report
// ErrInvalidTransition.
func (r *SQLRepository) Update(ctx context.Context, req *Request, prevStatus string) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, queryUpdate,
		db.NullString(req.UserID),
		req.Status,
		req.Resolution,
		req.DueAt,
		db.NullTime(req.ExtendedAt),
		req.ExtensionReason,
		db.NullTime(req.VerifiedAt),
		db.NullTime(req.ClosedAt),
		req.UpdatedAt,
		req.ID,
		prevStatus,
	)
	if err != nil {
		return fmt.Errorf("%w: update request %s: %w", ErrQueryFailed, req.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("dsr repository: rows affected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: request %s is no longer %s", ErrInvalidTransition, req.ID, prevStatus)
	}
	return nil
}

const queryPseudonymize = `
UPDATE data_requests SET email = $1, email_hash = $2, description = '', updated_at = NOW()
WHERE user_id = $3 OR email_hash = $4`

// Pseudonymize replaces the address and description of the subject's
// requests. The requests themselves stay as evidence of the answer given.
func (r *SQLRepository) Pseudonymize(ctx context.Context, userID, emailHash, pseudonym, pseudonymHash string) (int, error) {
	pseudonymEnc, err := r.cipher.Encrypt(pseudonym, aadEmail)
	if err != nil {
		return 0, fmt.Errorf("encrypt pseudonym: %w", err)
	}

	res, err := db.Conn(ctx, r.db).ExecContext(ctx, queryPseudonymize, pseudonymEnc, pseudonymHash, userID, emailHash)
	if err != nil {
		return 0, fmt.Errorf("%w: pseudonymize requests: %w", ErrQueryFailed, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dsr repository: rows affected: %w", err)
	}
	return int(n), nil
}

const queryCountByStatus = "SELECT status, COUNT(*) FROM data_requests GROUP BY status"

func (r *SQLRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, queryCountByStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: count by status: %w", ErrQueryFailed, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("dsr repository: scan count: %w", err)
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dsr repository: iterate over counts: %w", err)
	}
	return counts, nil
}

const queryCountOverdue = "SELECT COUNT(*) FROM data_requests WHERE status IN ('pending', 'in_progress') AND due_at < $1"

func (r *SQLRepository) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	var n int
	if err := db.Conn(ctx, r.db).QueryRowContext(ctx, queryCountOverdue, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count overdue: %w", ErrQueryFailed, err)
	}
	return n, nil
}

var staleConds = map[string]string{
	StaleClosed:     "status IN ('completed', 'rejected') AND closed_at < $1",
	StaleUnverified: "status = 'unverified' AND created_at < $1",
}

func (r *SQLRepository) CountStale(ctx context.Context, kind string, before time.Time) (int, error) {
	cond, ok := staleConds[kind]
	if !ok {
		return 0, fmt.Errorf("dsr repository: unknown stale kind %q", kind)
	}

	var n int
	if err := db.Conn(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM data_requests WHERE "+cond, before).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count %s requests: %w", ErrQueryFailed, kind, err)
	}
	return n, nil
}

// DeleteStale removes at most limit requests of the given kind older than
// before.
func (r *SQLRepository) DeleteStale(ctx context.Context, kind string, before time.Time, limit int) (int, error) {
	cond, ok := staleConds[kind]
	if !ok {
		return 0, fmt.Errorf("dsr repository: unknown stale kind %q", kind)
	}

	query := "DELETE FROM data_requests WHERE id IN (SELECT id FROM data_requests WHERE " + cond + " ORDER BY created_at LIMIT $2)"
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, query, before, limit)
	if err != nil {
		return 0, fmt.Errorf("%w: delete %s requests: %w", ErrQueryFailed, kind, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dsr repository: rows affected: %w", err)
	}
	return int(n), nil
}

func (r *SQLRepository) query(ctx context.Context, op, query string, args ...any) ([]Request, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQueryFailed, op, err)
	}
	defer rows.Close()

	var reqs []Request
	for rows.Next() {
		req, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("dsr repository: %s: scan row: %w", op, err)
		}
		reqs = append(reqs, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dsr repository: %s: iterate over rows: %w", op, err)
	}
	return reqs, nil
}

func (r *SQLRepository) scan(rows *sql.Rows) (*Request, error) {
	var (
		req                            Request
		userID                         sql.NullString
		emailEnc                       string
		extendedAt, verifiedAt, closed sql.NullTime
	)

	if err := rows.Scan(&req.ID, &req.Reference, &userID, &emailEnc, &req.EmailHash, &req.Type, &req.Description,
		&req.Status, &req.Resolution, &req.DueAt, &extendedAt, &req.ExtensionReason, &verifiedAt, &closed,
		&req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}

	email, err := r.cipher.Decrypt(emailEnc, aadEmail)
	if err != nil {
		return nil, fmt.Errorf("decrypt email of request %s: %w", req.ID, err)
	}

	req.Email = email
	req.UserID = userID.String
	req.ExtendedAt = db.TimePtr(extendedAt)
	req.VerifiedAt = db.TimePtr(verifiedAt)
	req.ClosedAt = db.TimePtr(closed)
	return &req, nil
}
