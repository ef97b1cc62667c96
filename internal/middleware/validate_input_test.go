package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferdiebergado/gdprkit/internal/middleware"
	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/platform/validation"
)

func TestValidateInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		params     any
		wantCode   int
		wantErrors map[string]string
	}{
		{
			name:     "Valid form",
			params:   requestForm{Email: "ann@example.com", Type: "access"},
			wantCode: http.StatusOK,
		},
		{
			name:     "Invalid fields",
			params:   requestForm{Email: "ann.example.com", Type: "delete", Description: "please remove everything about me"},
			wantCode: http.StatusUnprocessableEntity,
			wantErrors: map[string]string{
				"email":       "email must be a valid email address",
				"type":        "type must be one of: access, erasure",
				"description": "description must be at most 20 characters long",
			},
		},
		{
			name:     "Nothing decoded",
			params:   struct{}{},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			ctx := web.NewContextWithParams(context.Background(), tc.params)
			req := httptest.NewRequestWithContext(ctx, http.MethodPost, "/requests", http.NoBody)
			rec := httptest.NewRecorder()
			mw := middleware.ValidateInput[requestForm](validation.NewGoPlaygroundValidator())
			mw(handler).ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("rec.Code = %d, want: %d", rec.Code, tc.wantCode)
			}
			if called != (tc.wantCode == http.StatusOK) {
				t.Errorf("handler called = %t", called)
			}
			if tc.wantCode == http.StatusOK {
				return
			}

			var body struct {
				Message string            `json:"message"`
				Errors  map[string]string `json:"errors"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Message != message.InvalidInput {
				t.Errorf("message = %q, want: %q", body.Message, message.InvalidInput)
			}
			for field, want := range tc.wantErrors {
				if body.Errors[field] != want {
					t.Errorf("errors[%s] = %q, want: %q", field, body.Errors[field], want)
				}
			}
		})
	}
}
