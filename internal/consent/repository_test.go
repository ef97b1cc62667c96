package consent_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ferdiebergado/gdprkit/internal/consent"
)

var recordColumns = []string{
	"id", "subject_id", "subject_type", "choices", "policy_version", "action", "source", "ip_address", "user_agent", "created_at",
}

func newMock(t *testing.T) (*consent.SQLRepository, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return consent.NewRepository(conn), mock
}

func TestSQLRepository_Insert(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO consent_records").
		WithArgs(sqlmock.AnyArg(), visitor.ID, consent.SubjectVisitor,
			[]byte(`{"necessary":true,"preferences":false,"analytics":true,"marketing":false}`),
			"2025-01", consent.ActionGrant, consent.SourceBanner, "203.0.113.0", nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &consent.Record{
		SubjectID:     visitor.ID,
		SubjectType:   consent.SubjectVisitor,
		Choices:       consent.Choices{Necessary: true, Analytics: true},
		PolicyVersion: "2025-01",
		Action:        consent.ActionGrant,
		Source:        consent.SourceBanner,
		IPAddress:     "203.0.113.0",
		CreatedAt:     now,
	}
	if err := repo.Insert(context.Background(), rec); err != nil {
		t.Fatalf("repo.Insert() = %v", err)
	}

	if rec.ID == "" {
		t.Error("rec.ID was not assigned")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLRepository_Latest(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Decodes choices", func(t *testing.T) {
		t.Parallel()

		repo, mock := newMock(t)
		mock.ExpectQuery("FROM consent_records WHERE subject_id = \\$1 ORDER BY created_at DESC LIMIT 1").
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(
				"c-1", "u-1", consent.SubjectUser, []byte(`{"necessary":true,"marketing":true}`),
				"2025-01", consent.ActionUpdate, consent.SourceSettings, nil, "agent", now))

		rec, err := repo.Latest(context.Background(), "u-1")
		if err != nil {
			t.Fatalf("repo.Latest() = %v", err)
		}

		want := consent.Choices{Necessary: true, Marketing: true}
		if rec.Choices != want || rec.UserAgent != "agent" || rec.IPAddress != "" {
			t.Errorf("repo.Latest() = %+v", rec)
		}
	})

	t.Run("No record", func(t *testing.T) {
		t.Parallel()

		repo, mock := newMock(t)
		mock.ExpectQuery("FROM consent_records").
			WithArgs("u-2").
			WillReturnRows(sqlmock.NewRows(recordColumns))

		if _, err := repo.Latest(context.Background(), "u-2"); !errors.Is(err, consent.ErrNotFound) {
			t.Errorf("repo.Latest() = %v, want: %v", err, consent.ErrNotFound)
		}
	})
}

func TestSQLRepository_History(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit int
		query string
		args  []driver.Value
	}{
		{"Paged", 10, "ORDER BY created_at DESC LIMIT $2 OFFSET $3", []driver.Value{"u-1", 10, 20}},
		{"Everything", 0, "ORDER BY created_at DESC", []driver.Value{"u-1"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo, mock := newMock(t)
			mock.ExpectQuery(regexp.QuoteMeta(tc.query) + "$").
				WithArgs(tc.args...).
				WillReturnRows(sqlmock.NewRows(recordColumns))

			if _, err := repo.History(context.Background(), "u-1", tc.limit, 20); err != nil {
				t.Fatalf("repo.History() = %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSQLRepository_Stats(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT DISTINCT ON \\(subject_id\\)").
		WithArgs("2025-01").
		WillReturnRows(sqlmock.NewRows([]string{"count", "analytics", "marketing", "stale"}).AddRow(10, 6, 2, 3))

	stats, err := repo.Stats(context.Background(), "2025-01")
	if err != nil {
		t.Fatalf("repo.Stats() = %v", err)
	}

	want := consent.Stats{Subjects: 10, Analytics: 6, Marketing: 2, StaleVersion: 3}
	if *stats != want {
		t.Errorf("repo.Stats() = %+v, want: %+v", *stats, want)
	}
}
