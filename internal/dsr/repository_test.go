package dsr_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ferdiebergado/gdprkit/internal/dsr"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
)

var requestColumns = []string{
	"id", "reference", "user_id", "email", "email_hash", "type", "description", "status", "resolution", "due_at",
	"extended_at", "extension_reason", "verified_at", "closed_at", "created_at", "updated_at",
}

func newMock(t *testing.T) (*dsr.SQLRepository, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return dsr.NewRepository(conn, crypto.PlainCipher{}), mock
}

func TestSQLRepository_Create(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO data_requests").
		WithArgs(sqlmock.AnyArg(), "DSR-0000ABCD", nil, "enc:data_requests.email:jane@example.com", "hash",
			dsr.TypeAccess, "", dsr.StatusUnverified, due, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := &dsr.Request{
		Reference: "DSR-0000ABCD",
		Email:     "jane@example.com",
		EmailHash: "hash",
		Type:      dsr.TypeAccess,
		Status:    dsr.StatusUnverified,
		DueAt:     due,
		CreatedAt: now,
	}
	if err := repo.Create(context.Background(), req); err != nil {
		t.Fatalf("repo.Create() = %v", err)
	}

	if req.ID == "" || !req.UpdatedAt.Equal(now) {
		t.Errorf("req = %+v, want id assigned and updated_at set", req)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLRepository_Find(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Decrypts email", func(t *testing.T) {
		t.Parallel()

		repo, mock := newMock(t)
		mock.ExpectQuery("FROM data_requests WHERE id = \\$1").
			WithArgs("r-1").
			WillReturnRows(sqlmock.NewRows(requestColumns).AddRow(
				"r-1", "DSR-0000ABCD", "u-1", "enc:data_requests.email:jane@example.com", "hash", dsr.TypeErasure, "",
				dsr.StatusPending, "", due, nil, "", now, nil, now, now))

		req, err := repo.Find(context.Background(), "r-1")
		if err != nil {
			t.Fatalf("repo.Find() = %v", err)
		}

		if req.Email != "jane@example.com" || req.UserID != "u-1" || req.VerifiedAt == nil || req.ClosedAt != nil {
			t.Errorf("req = %+v", req)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()

		repo, mock := newMock(t)
		mock.ExpectQuery("FROM data_requests WHERE id = \\$1").
			WithArgs("r-2").
			WillReturnRows(sqlmock.NewRows(requestColumns))

		if _, err := repo.Find(context.Background(), "r-2"); !errors.Is(err, dsr.ErrNotFound) {
			t.Errorf("repo.Find() = %v, want: %v", err, dsr.ErrNotFound)
		}
	})

	t.Run("Tampered ciphertext", func(t *testing.T) {
		t.Parallel()

		repo, mock := newMock(t)
		mock.ExpectQuery("FROM data_requests WHERE id = \\$1").
			WithArgs("r-3").
			WillReturnRows(sqlmock.NewRows(requestColumns).AddRow(
				"r-3", "DSR-0000ABCE", nil, "enc:users.email:jane@example.com", "hash", dsr.TypeAccess, "",
				dsr.StatusPending, "", due, nil, "", nil, nil, now, now))

		if _, err := repo.Find(context.Background(), "r-3"); !errors.Is(err, crypto.ErrDecrypt) {
			t.Errorf("repo.Find() = %v, want: %v", err, crypto.ErrDecrypt)
		}
	})
}

func TestSQLRepository_List(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE type = \\$1 AND status IN \\('pending', 'in_progress'\\) AND due_at < \\$2 ORDER BY due_at LIMIT \\$3 OFFSET \\$4").
		WithArgs(dsr.TypeErasure, now, 20, 40).
		WillReturnRows(sqlmock.NewRows(requestColumns))

	reqs, err := repo.List(context.Background(), dsr.Filter{Type: dsr.TypeErasure, Overdue: true, Now: now, Limit: 20, Offset: 40})
	if err != nil {
		t.Fatalf("repo.List() = %v", err)
	}

	if len(reqs) != 0 {
		t.Errorf("len(reqs) = %d, want: 0", len(reqs))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLRepository_Update(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"Status unchanged since read", 1, nil},
		{"Changed concurrently", 0, dsr.ErrInvalidTransition},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo, mock := newMock(t)
			mock.ExpectExec("UPDATE data_requests").
				WithArgs("u-1", dsr.StatusInProgress, "", due, nil, "", now, nil, now, "r-1", dsr.StatusPending).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			req := &dsr.Request{
				ID:         "r-1",
				UserID:     "u-1",
				Status:     dsr.StatusInProgress,
				DueAt:      due,
				VerifiedAt: &now,
				UpdatedAt:  now,
			}
			if err := repo.Update(context.Background(), req, dsr.StatusPending); !errors.Is(err, tc.wantErr) {
				t.Errorf("repo.Update() = %v, want: %v", err, tc.wantErr)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSQLRepository_Pseudonymize(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectExec("UPDATE data_requests SET email = \\$1, email_hash = \\$2, description = ''").
		WithArgs("enc:data_requests.email:erased-u-1@invalid", "phash", "u-1", "hash").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.Pseudonymize(context.Background(), "u-1", "hash", "erased-u-1@invalid", "phash")
	if err != nil {
		t.Fatalf("repo.Pseudonymize() = %v", err)
	}

	if n != 2 {
		t.Errorf("repo.Pseudonymize() = %d, want: 2", n)
	}
}

func TestSQLRepository_DeleteStale(t *testing.T) {
	t.Parallel()

	before := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Closed requests", func(t *testing.T) {
		t.Parallel()

		repo, mock := newMock(t)
		mock.ExpectExec("DELETE FROM data_requests WHERE id IN \\(SELECT id FROM data_requests WHERE status IN \\('completed', 'rejected'\\) AND closed_at < \\$1").
			WithArgs(before, 100).
			WillReturnResult(sqlmock.NewResult(0, 3))

		n, err := repo.DeleteStale(context.Background(), dsr.StaleClosed, before, 100)
		if err != nil || n != 3 {
			t.Errorf("repo.DeleteStale() = %d, %v, want: 3, nil", n, err)
		}
	})

	t.Run("Unknown kind", func(t *testing.T) {
		t.Parallel()

		repo, _ := newMock(t)
		if _, err := repo.DeleteStale(context.Background(), "archived", before, 100); err == nil {
			t.Error("repo.DeleteStale() = nil, want error")
		}
	})
}
