package export_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferdiebergado/gdprkit/internal/export"
	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

func TestHandler_Export(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		userID   string
		buildErr error
		wantCode int
	}{
		{"Signed in", "u-1", nil, http.StatusOK},
		{"Anonymous", "", nil, http.StatusUnauthorized},
		{"Account gone", "u-1", user.ErrNotFound, http.StatusNotFound},
		{"Store failure", "u-1", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &export.StubBuilder{
				BuildFunc: func(_ context.Context, userID string) (*export.Bundle, error) {
					if tc.buildErr != nil {
						return nil, tc.buildErr
					}
					return &export.Bundle{Format: export.FormatVersion, Profile: &user.UserData{ID: userID, Email: "jane@example.com"}}, nil
				},
			}

			r := httptest.NewRequest(http.MethodGet, "/me/export", http.NoBody)
			if tc.userID != "" {
				r = r.WithContext(user.NewContextWithUser(r.Context(), tc.userID))
			}
			rec := httptest.NewRecorder()
			export.NewHandler(svc).Export(rec, r)

			if rec.Code != tc.wantCode {
				t.Fatalf(message.FmtErrStatusCode, rec.Code, tc.wantCode)
			}

			if tc.wantCode != http.StatusOK {
				return
			}

			want := `attachment; filename="personal-data-u-1.json"`
			if got := rec.Header().Get("Content-Disposition"); got != want {
				t.Errorf("Content-Disposition = %q, want: %q", got, want)
			}

			var b export.Bundle
			if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
				t.Fatal(err)
			}

			if b.Profile == nil || b.Profile.Email != "jane@example.com" {
				t.Errorf("b.Profile = %+v", b.Profile)
			}
		})
	}
}
