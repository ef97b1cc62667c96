package user_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/user"
	"github.com/jackc/pgx/v5/pgconn"
)

var userColumns = []string{
	"id", "email", "name_enc", "phone_enc", "password_hash", "role", "verified_at", "last_login_at",
	"terms_version", "terms_accepted_at", "anonymized_at", "created_at", "updated_at",
}

func newMock(t *testing.T) (*user.SQLRepository, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return user.NewRepository(conn, crypto.PlainCipher{}), mock
}

func TestSQLRepository_Create(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("Encrypts personal fields", func(t *testing.T) {
		t.Parallel()

		repo, mock := newMock(t)

		mock.ExpectQuery("INSERT INTO users").
			WithArgs(sqlmock.AnyArg(), "jane@example.com", "enc:users.name:Jane", nil, "hash", user.RoleUser, "2025-01").
			WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
				"u-1", "jane@example.com", "enc:users.name:Jane", nil, "hash", user.RoleUser, nil, nil,
				"2025-01", now, nil, now, now))

		u, err := repo.Create(context.Background(), user.CreateParams{
			Email:        "Jane@Example.com",
			Name:         "Jane",
			PasswordHash: "hash",
			TermsVersion: "2025-01",
		})
		if err != nil {
			t.Fatalf("repo.Create() = %v", err)
		}

		if u.Name != "Jane" || u.Phone != "" {
			t.Errorf("u.Name, u.Phone = %q, %q, want: %q, %q", u.Name, u.Phone, "Jane", "")
		}

		if u.TermsAcceptedAt == nil || !u.TermsAcceptedAt.Equal(now) {
			t.Errorf("u.TermsAcceptedAt = %v, want: %v", u.TermsAcceptedAt, now)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("Duplicate email", func(t *testing.T) {
		t.Parallel()

		repo, mock := newMock(t)
		mock.ExpectQuery("INSERT INTO users").WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := repo.Create(context.Background(), user.CreateParams{Email: "jane@example.com"})
		if !errors.Is(err, user.ErrEmailTaken) {
			t.Errorf("repo.Create() = %v, want: %v", err, user.ErrEmailTaken)
		}
	})

	t.Run("Sealing fails", func(t *testing.T) {
		t.Parallel()

		conn, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock.New() = %v", err)
		}
		defer conn.Close()

		sealErr := errors.New("keyring unavailable")
		repo := user.NewRepository(conn, &crypto.StubCipher{
			EncryptFunc: func(string, string) (string, error) { return "", sealErr },
		})

		_, err = repo.Create(context.Background(), user.CreateParams{Email: "jane@example.com", Name: "Jane"})
		if !errors.Is(err, sealErr) {
			t.Errorf("repo.Create() = %v, want: %v", err, sealErr)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}

func TestSQLRepository_Find(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr error
	}{
		{"Found", sqlmock.NewRows(userColumns).AddRow(
			"u-1", "jane@example.com", nil, "enc:users.phone:+639171234567", "hash", user.RoleAdmin, now, now,
			"", nil, nil, now, now), nil},
		{"Not found", sqlmock.NewRows(userColumns), user.ErrNotFound},
		{"Ciphertext from another column", sqlmock.NewRows(userColumns).AddRow(
			"u-1", "jane@example.com", "enc:users.phone:Jane", nil, "hash", user.RoleUser, nil, nil,
			"", nil, nil, now, now), crypto.ErrDecrypt},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo, mock := newMock(t)
			mock.ExpectQuery("SELECT (.+) FROM users WHERE id").WithArgs("u-1").WillReturnRows(tc.rows)

			u, err := repo.Find(context.Background(), "u-1")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("repo.Find() = %v, want: %v", err, tc.wantErr)
			}

			if tc.wantErr == nil {
				if u.Phone != "+639171234567" || !u.IsVerified() || u.IsAnonymized() {
					t.Errorf("repo.Find() = %+v", u)
				}
			}
		})
	}
}

func TestSQLRepository_UpdateProfile(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	repo, mock := newMock(t)

	mock.ExpectQuery(`UPDATE users SET phone_enc = \$1, updated_at = NOW\(\) WHERE id = \$2 AND anonymized_at IS NULL`).
		WithArgs("enc:users.phone:+4915112345678", "u-1").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(
			"u-1", "jane@example.com", nil, "enc:users.phone:+4915112345678", "hash", user.RoleUser, now, nil,
			"", nil, nil, now, now))

	phone := "+4915112345678"
	u, err := repo.UpdateProfile(context.Background(), "u-1", user.ProfileParams{Phone: &phone})
	if err != nil {
		t.Fatalf("repo.UpdateProfile() = %v", err)
	}

	if u.Phone != phone {
		t.Errorf("u.Phone = %q, want: %q", u.Phone, phone)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLRepository_ListInactive(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)

	before := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2019, 3, 4, 10, 0, 0, 0, time.UTC)
	after := user.Cursor{CreatedAt: created, ID: "u-1"}

	mock.ExpectQuery(`SELECT id, email, role, verified_at, last_login_at, created_at FROM users`).
		WithArgs(before, created, "u-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "verified_at", "last_login_at", "created_at"}).
			AddRow("u-2", "old@example.com", user.RoleUser, created, nil, created).
			AddRow("u-3", "older@example.com", user.RoleUser, nil, nil, created.Add(time.Hour)))

	users, err := repo.ListInactive(context.Background(), before, after, 2)
	if err != nil {
		t.Fatalf("repo.ListInactive() = %v", err)
	}

	if len(users) != 2 || users[0].ID != "u-2" || !users[0].IsVerified() || users[1].IsVerified() {
		t.Errorf("repo.ListInactive() = %+v", users)
	}

	if next := users[1].Next(); next.ID != "u-3" || !next.CreatedAt.Equal(created.Add(time.Hour)) {
		t.Errorf("users[1].Next() = %+v", next)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLRepository_Delete(t *testing.T) {
	t.Parallel()

	repo, mock := newMock(t)
	mock.ExpectExec("DELETE FROM users WHERE id = (.+) AND verified_at IS NULL").
		WithArgs("u-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "u-2"); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("repo.Delete() = %v, want: %v", err, user.ErrNotFound)
	}
}

type keyIDArg string

func (a keyIDArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, "v1."+string(a)+".")
}

func TestSQLRepository_Rekey(t *testing.T) {
	t.Parallel()

	oldKeys, _ := crypto.DeriveKeys("app-key", []string{"k1"})
	oldRing, _ := crypto.NewKeyring(oldKeys, "k1")
	oldName, err := oldRing.Encrypt("Jane", "users.name")
	if err != nil {
		t.Fatal(err)
	}

	keys, _ := crypto.DeriveKeys("app-key", []string{"k1", "k2"})
	ring, err := crypto.NewKeyring(keys, "k2")
	if err != nil {
		t.Fatal(err)
	}

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	repo := user.NewRepository(conn, ring)

	mock.ExpectQuery("SELECT id, name_enc, phone_enc FROM users").
		WithArgs("k2", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name_enc", "phone_enc"}).AddRow("u-1", oldName, nil))
	mock.ExpectExec("UPDATE users SET name_enc").
		WithArgs(keyIDArg("k2"), nil, "u-1", oldName, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Rekey(context.Background(), 100)
	if err != nil {
		t.Fatalf("repo.Rekey() = %v", err)
	}

	if n != 1 {
		t.Errorf("repo.Rekey() = %d, want: 1", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLRepository_Anonymize(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"Active account", 1, nil},
		{"Already anonymized", 0, user.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo, mock := newMock(t)
			mock.ExpectExec("UPDATE users SET email = \\$1, name_enc = NULL, phone_enc = NULL, password_hash = ''").
				WithArgs("erased+u-1@anonymized.invalid", at, "u-1").
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			err := repo.Anonymize(context.Background(), "u-1", "erased+u-1@anonymized.invalid", at)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("repo.Anonymize() = %v, want: %v", err, tc.wantErr)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}
