package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

func TestHandler_MyActivity(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		userID   string
		wantCode int
		wantLen  int
	}{
		{name: "Lists own entries", userID: "u-1", wantCode: http.StatusOK, wantLen: 1},
		{name: "Anonymous caller", wantCode: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &audit.StubService{
				ListByActorFunc: func(_ context.Context, actorID string, _, _ int) ([]audit.Entry, error) {
					if actorID != tc.userID {
						return nil, errors.New("wrong actor")
					}
					return []audit.Entry{{ID: "e-1", ActorID: actorID, Action: audit.ActionProfileRead, CreatedAt: at}}, nil
				},
			}

			req := httptest.NewRequest(http.MethodGet, "/me/activity", nil)
			if tc.userID != "" {
				req = req.WithContext(user.NewContextWithUser(req.Context(), tc.userID))
			}
			rec := httptest.NewRecorder()

			audit.NewHandler(svc).MyActivity(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf(message.FmtErrStatusCode, rec.Code, tc.wantCode)
			}

			if tc.wantCode != http.StatusOK {
				return
			}

			var res web.OKResponse[audit.ListResponse]
			if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
				t.Fatal(err)
			}

			if len(res.Data.Entries) != tc.wantLen {
				t.Errorf("len(res.Data.Entries) = %d, want: %d", len(res.Data.Entries), tc.wantLen)
			}
		})
	}
}

func TestHandler_List(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		query    string
		wantCode int
	}{
		{name: "Filters by actor and since", query: "?actor_id=u-9&since=2025-01-01T00:00:00Z", wantCode: http.StatusOK},
		{name: "Bad since", query: "?since=yesterday", wantCode: http.StatusBadRequest},
		{name: "Bad until", query: "?until=2025-13-01", wantCode: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &audit.StubService{
				ListFunc: func(_ context.Context, f audit.Filter) ([]audit.Entry, error) {
					if f.ActorID != "u-9" || f.Since == nil || f.Limit != 50 {
						return nil, errors.New("filter not parsed")
					}
					return nil, nil
				},
			}

			req := httptest.NewRequest(http.MethodGet, "/admin/audit"+tc.query, nil)
			rec := httptest.NewRecorder()

			audit.NewHandler(svc).List(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf(message.FmtErrStatusCode, rec.Code, tc.wantCode)
			}
		})
	}
}
