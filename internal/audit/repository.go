package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/google/uuid"
)

var ErrQueryFailed = errors.New("audit repository: query failed")

// Filter selects entries. A zero Limit returns every match.
type Filter struct {
	ActorID string
	Action  string
	Since   *time.Time
	Until   *time.Time
	Limit   int
	Offset  int
}

type SQLRepository struct {
	db db.Executor
}

var _ Repository = (*SQLRepository)(nil)

func NewRepository(dbExec db.Executor) *SQLRepository {
	return &SQLRepository{db: dbExec}
}

const queryInsert = `
INSERT INTO audit_logs (id, actor_id, action, resource, method, path, status, ip_address, user_agent, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Insert stores e, filling in its id and creation time when they are unset.
func (r *SQLRepository) Insert(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	meta := e.Metadata
	if meta == nil {
		meta = map[string]string{}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	_, err = db.Conn(ctx, r.db).ExecContext(ctx, queryInsert,
		e.ID,
		db.NullString(e.ActorID),
		e.Action,
		e.Resource,
		e.Method,
		e.Path,
		e.Status,
		db.NullString(e.IPAddress),
		db.NullString(e.UserAgent),
		metaJSON,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert entry: %w", ErrQueryFailed, err)
	}
	return nil
}

const columns = "id, actor_id, action, resource, method, path, status, ip_address, user_agent, metadata, created_at"

func (r *SQLRepository) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.Since != nil {
		add("created_at >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("created_at < $%d", *f.Until)
	}

	var b strings.Builder
	b.WriteString("SELECT " + columns + " FROM audit_logs")
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	b.WriteString(" ORDER BY created_at DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %w", ErrQueryFailed, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("audit repository: scan entry: %w", err)
		}
		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit repository: iterate over entries: %w", err)
	}
	return entries, nil
}

const queryCountBefore = "SELECT COUNT(*) FROM audit_logs WHERE created_at < $1"

func (r *SQLRepository) CountBefore(ctx context.Context, before time.Time) (int, error) {
	var n int
	if err := db.Conn(ctx, r.db).QueryRowContext(ctx, queryCountBefore, before).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count entries: %w", ErrQueryFailed, err)
	}
	return n, nil
}

const queryDeleteBefore = `DELETE FROM audit_logs WHERE id IN (
    SELECT id FROM audit_logs WHERE created_at < $1 ORDER BY created_at LIMIT $2
)`

// DeleteBefore removes at most limit entries older than before.
func (r *SQLRepository) DeleteBefore(ctx context.Context, before time.Time, limit int) (int, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, queryDeleteBefore, before, limit)
	if err != nil {
		return 0, fmt.Errorf("%w: delete entries: %w", ErrQueryFailed, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit repository: rows affected: %w", err)
	}
	return int(n), nil
}

const queryScrubActor = "UPDATE audit_logs SET ip_address = NULL, user_agent = NULL WHERE actor_id = $1 AND (ip_address IS NOT NULL OR user_agent IS NOT NULL)"

// ScrubActor removes the network identifiers from the entries of actorID.
// The entries themselves are kept.
func (r *SQLRepository) ScrubActor(ctx context.Context, actorID string) (int, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, queryScrubActor, actorID)
	if err != nil {
		return 0, fmt.Errorf("%w: scrub entries of %s: %w", ErrQueryFailed, actorID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit repository: rows affected: %w", err)
	}
	return int(n), nil
}

func scan(rows *sql.Rows) (*Entry, error) {
	var (
		e               Entry
		actorID, ip, ua sql.NullString
		metaJSON        []byte
	)

	if err := rows.Scan(&e.ID, &actorID, &e.Action, &e.Resource, &e.Method, &e.Path, &e.Status,
		&ip, &ua, &metaJSON, &e.CreatedAt); err != nil {
		return nil, err
	}

	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata of entry %s: %w", e.ID, err)
		}
	}

	e.ActorID = actorID.String
	e.IPAddress = ip.String
	e.UserAgent = ua.String
	return &e, nil
}
