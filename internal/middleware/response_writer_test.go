package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ferdiebergado/gdprkit/internal/middleware"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
)

func TestSafeResponseWriter(t *testing.T) {
	t.Parallel()

	t.Run("Records status and size", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		w := middleware.NewSafeResponseWriter(context.Background(), rec)

		w.WriteHeader(http.StatusInternalServerError)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("oops")); err != nil {
			t.Fatalf("w.Write() = %v", err)
		}

		if w.Status() != http.StatusInternalServerError || rec.Code != http.StatusInternalServerError {
			t.Errorf("w.Status(), rec.Code = %d, %d, want: %d", w.Status(), rec.Code, http.StatusInternalServerError)
		}

		if w.BytesWritten() != 4 || rec.Body.String() != "oops" {
			t.Errorf("w.BytesWritten(), body = %d, %q, want: 4, %q", w.BytesWritten(), rec.Body.String(), "oops")
		}
	})

	t.Run("Write without header defaults to 200", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		w := middleware.NewSafeResponseWriter(context.Background(), rec)
		_, _ = w.Write([]byte("ok"))

		if rec.Code != http.StatusOK {
			t.Errorf("rec.Code = %d, want: %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("Skips writes after cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		rec := httptest.NewRecorder()
		w := middleware.NewSafeResponseWriter(ctx, rec)
		w.WriteHeader(http.StatusCreated)

		if _, err := w.Write([]byte("late")); err == nil {
			t.Error("w.Write() = nil, want: context error")
		}

		if rec.Body.Len() != 0 || w.BytesWritten() != 0 {
			t.Errorf("body written after cancellation: %q", rec.Body.String())
		}
	})

	t.Run("Unwraps to the underlying writer", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		w := middleware.NewSafeResponseWriter(context.Background(), rec)

		if w.Unwrap() != http.ResponseWriter(rec) {
			t.Error("w.Unwrap() did not return the wrapped writer")
		}
	})
}

func TestLogRequest_ObservesDuration(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/requests", http.NoBody)
	rec := httptest.NewRecorder()
	middleware.InjectWriter(middleware.LogRequest(m)(handler)).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("rec.Code = %d, want: %d", rec.Code, http.StatusAccepted)
	}

	scrapeReq := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	scrapeRec := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrapeRec, scrapeReq)

	want := `gdprkit_http_request_duration_seconds_count{method="POST",status="202"} 1`
	if body := scrapeRec.Body.String(); !strings.Contains(body, want) {
		t.Errorf("metrics body does not contain %q", want)
	}
}
