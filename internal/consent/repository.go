package consent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("consent repository: no consent recorded")
	ErrQueryFailed = errors.New("consent repository: query failed")
)

type SQLRepository struct {
	db db.Executor
}

var _ Repository = (*SQLRepository)(nil)

func NewRepository(dbExec db.Executor) *SQLRepository {
	return &SQLRepository{db: dbExec}
}

const queryInsert = `
INSERT INTO consent_records (id, subject_id, subject_type, choices, policy_version, action, source, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (r *SQLRepository) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	choices, err := json.Marshal(rec.Choices)
	if err != nil {
		return fmt.Errorf("marshal choices: %w", err)
	}

	_, err = db.Conn(ctx, r.db).ExecContext(ctx, queryInsert,
		rec.ID,
		rec.SubjectID,
		rec.SubjectType,
		choices,
		rec.PolicyVersion,
		rec.Action,
		rec.Source,
		db.NullString(rec.IPAddress),
		db.NullString(rec.UserAgent),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert record: %w", ErrQueryFailed, err)
	}
	return nil
}

const columns = "id, subject_id, subject_type, choices, policy_version, action, source, ip_address, user_agent, created_at"

const queryLatest = "SELECT " + columns + " FROM consent_records WHERE subject_id = $1 ORDER BY created_at DESC LIMIT 1"

func (r *SQLRepository) Latest(ctx context.Context, subjectID string) (*Record, error) {
	recs, err := r.query(ctx, queryLatest, subjectID)
	if err != nil {
		return nil, err
	}

	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return &recs[0], nil
}

const queryHistory = "SELECT " + columns + " FROM consent_records WHERE subject_id = $1 ORDER BY created_at DESC"

// History lists the records of a subject, newest first. A limit of zero
// lists all of them.
func (r *SQLRepository) History(ctx context.Context, subjectID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		return r.query(ctx, queryHistory, subjectID)
	}
	return r.query(ctx, queryHistory+" LIMIT $2 OFFSET $3", subjectID, limit, offset)
}

const queryDeleteBySubject = "DELETE FROM consent_records WHERE subject_id = $1"

func (r *SQLRepository) DeleteBySubject(ctx context.Context, subjectID string) (int, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, queryDeleteBySubject, subjectID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete records: %w", ErrQueryFailed, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("consent repository: rows affected: %w", err)
	}
	return int(n), nil
}

const queryStats = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE (choices->>'analytics')::boolean),
       COUNT(*) FILTER (WHERE (choices->>'marketing')::boolean),
       COUNT(*) FILTER (WHERE policy_version <> $1)
FROM (
    SELECT DISTINCT ON (subject_id) choices, policy_version
    FROM consent_records
    ORDER BY subject_id, created_at DESC
) latest`

// Stats counts the current consents. StaleVersion counts subjects whose
// newest record is not on policyVersion.
func (r *SQLRepository) Stats(ctx context.Context, policyVersion string) (*Stats, error) {
	var s Stats
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, queryStats, policyVersion).
		Scan(&s.Subjects, &s.Analytics, &s.Marketing, &s.StaleVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: consent stats: %w", ErrQueryFailed, err)
	}
	return &s, nil
}

func (r *SQLRepository) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %w", ErrQueryFailed, err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var (
			rec     Record
			choices []byte
			ip, ua  sql.NullString
		)

		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.SubjectType, &choices, &rec.PolicyVersion,
			&rec.Action, &rec.Source, &ip, &ua, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("consent repository: scan record: %w", err)
		}

		if err := json.Unmarshal(choices, &rec.Choices); err != nil {
			return nil, fmt.Errorf("consent repository: unmarshal choices of %s: %w", rec.ID, err)
		}

		rec.IPAddress = ip.String
		rec.UserAgent = ua.String
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("consent repository: iterate over records: %w", err)
	}
	return recs, nil
}
