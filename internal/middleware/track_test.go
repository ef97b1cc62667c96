package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/middleware"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

func TestTrack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		userID    string
		status    int
		wantActor string
	}{
		{name: "Authenticated read", userID: "u-1", status: http.StatusOK, wantActor: "u-1"},
		{name: "Anonymous failure", status: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			})

			req := httptest.NewRequest(http.MethodGet, "/me/export", http.NoBody)
			req.Header.Set("X-Real-IP", "198.51.100.23")
			req.Header.Set("User-Agent", "test-agent")
			if tc.userID != "" {
				req = req.WithContext(user.NewContextWithUser(req.Context(), tc.userID))
			}

			rec := &audit.MemoryRecorder{}
			w := httptest.NewRecorder()
			middleware.InjectWriter(middleware.Track(rec, audit.ActionDataExported, "user")(handler)).ServeHTTP(w, req)

			entries := rec.Entries()
			if len(entries) != 1 {
				t.Fatalf("len(entries) = %d, want: 1", len(entries))
			}

			want := audit.Entry{
				ActorID:   tc.wantActor,
				Action:    audit.ActionDataExported,
				Resource:  "user",
				Method:    http.MethodGet,
				Path:      "/me/export",
				Status:    tc.status,
				IPAddress: "198.51.100.0",
				UserAgent: "test-agent",
			}
			if got := entries[0]; got.ActorID != want.ActorID || got.Action != want.Action || got.Resource != want.Resource ||
				got.Method != want.Method || got.Path != want.Path || got.Status != want.Status ||
				got.IPAddress != want.IPAddress || got.UserAgent != want.UserAgent {
				t.Errorf("entries[0] = %+v, want: %+v", got, want)
			}
		})
	}
}
