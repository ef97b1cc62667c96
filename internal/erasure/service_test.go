package erasure_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/erasure"
	"github.com/ferdiebergado/gdprkit/internal/notify"
	"github.com/ferdiebergado/gdprkit/internal/platform/crypto"
	"github.com/ferdiebergado/gdprkit/internal/platform/db"
	"github.com/ferdiebergado/gdprkit/internal/platform/events"
	"github.com/ferdiebergado/gdprkit/internal/platform/metrics"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

type fixture struct {
	provider  *erasure.Provider
	store     *erasure.StubStore
	sender    *notify.RecordingSender
	publisher *events.RecordingPublisher
	auditor   *audit.MemoryRecorder
	anonymize []string
}

func newFixture(account *user.User, findErr error) *fixture {
	f := &fixture{
		store:     &erasure.StubStore{ConsentRecords: 3, Requests: 1, AuditEntries: 12},
		sender:    &notify.RecordingSender{},
		publisher: &events.RecordingPublisher{},
		auditor:   &audit.MemoryRecorder{},
	}

	users := &user.StubRepo{
		FindFunc: func(context.Context, string) (*user.User, error) {
			if findErr != nil {
				return nil, findErr
			}
			return account, nil
		},
		AnonymizeFunc: func(_ context.Context, userID, email string, _ time.Time) error {
			f.anonymize = append(f.anonymize, userID, email)
			return nil
		},
	}

	f.provider = &erasure.Provider{
		Cfg: &config.Config{
			App:    &config.App{Key: "app-key"},
			Cookie: &config.Cookie{Name: "refresh_token"},
		},
		TxMgr:     &db.StubTxManager{},
		Users:     users,
		Consent:   f.store,
		Requests:  f.store,
		Activity:  f.store,
		Auditor:   f.auditor,
		Sender:    f.sender,
		Publisher: f.publisher,
	}
	return f
}

func TestService_Erase(t *testing.T) {
	t.Parallel()

	f := newFixture(&user.User{ID: "u-1", Email: "jane@example.com"}, nil)
	f.provider.Metrics = metrics.New()
	svc := erasure.NewService(f.provider)

	res, err := svc.EraseWithResult(context.Background(), "u-1", "request DSR-0000ABCD", "admin-1")
	if err != nil {
		t.Fatalf("svc.EraseWithResult() = %v", err)
	}

	if res.ConsentRecords != 3 || res.Requests != 1 || res.AuditEntries != 12 || res.ErasedAt.IsZero() {
		t.Errorf("res = %+v", res)
	}

	pseudonym := "erased+u-1@anonymized.invalid"
	if len(f.anonymize) != 2 || f.anonymize[1] != pseudonym {
		t.Errorf("Anonymize calls = %v, want u-1 renamed to %s", f.anonymize, pseudonym)
	}

	indexKey := crypto.SubKey("app-key", crypto.PurposeBlindIndex)
	wantPseudonym := [4]string{"u-1", crypto.BlindIndex(indexKey, "jane@example.com"), pseudonym, crypto.BlindIndex(indexKey, pseudonym)}
	if len(f.store.Pseudonyms) != 1 || f.store.Pseudonyms[0] != wantPseudonym {
		t.Errorf("Pseudonymize calls = %v, want: %v", f.store.Pseudonyms, wantPseudonym)
	}

	entries := f.auditor.Entries()
	if len(entries) != 1 || entries[0].Action != audit.ActionSubjectErased || entries[0].ActorID != "admin-1" || entries[0].Metadata["reason"] != "request DSR-0000ABCD" {
		t.Errorf("audit entries = %+v", entries)
	}

	if got := f.publisher.Types(); len(got) != 1 || got[0] != events.SubjectErased {
		t.Errorf("events = %v, want [%s]", got, events.SubjectErased)
	}

	msg, ok := f.sender.Last()
	if !ok || msg.To != "jane@example.com" || msg.Template != notify.TmplAccountErased {
		t.Errorf("last mail = %+v, want confirmation to the previous address", msg)
	}

	rec := httptest.NewRecorder()
	f.provider.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `gdprkit_erasures_total{reason="operator"} 1`) {
		t.Error("erasure counter was not incremented for the operator trigger")
	}
}

func TestService_Erase_Rejected(t *testing.T) {
	t.Parallel()

	erasedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		account *user.User
		findErr error
		wantErr error
	}{
		{"Already anonymized", &user.User{ID: "u-1", AnonymizedAt: &erasedAt}, nil, erasure.ErrAlreadyErased},
		{"Unknown account", nil, user.ErrNotFound, user.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(tc.account, tc.findErr)
			err := erasure.NewService(f.provider).Erase(context.Background(), "u-1", "self-service", "u-1")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("svc.Erase() = %v, want: %v", err, tc.wantErr)
			}

			if len(f.anonymize) != 0 || len(f.sender.Messages) != 0 || len(f.publisher.Events) != 0 {
				t.Error("a rejected erasure must not change or announce anything")
			}
		})
	}
}

func TestService_Erase_StoreFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(&user.User{ID: "u-1", Email: "jane@example.com"}, nil)
	f.store.Err = errors.New("consent store down")

	err := erasure.NewService(f.provider).Erase(context.Background(), "u-1", "self-service", "u-1")
	if !errors.Is(err, f.store.Err) {
		t.Fatalf("svc.Erase() = %v, want: %v", err, f.store.Err)
	}

	if len(f.sender.Messages) != 0 || len(f.publisher.Events) != 0 || len(f.auditor.Entries()) != 0 {
		t.Error("nothing must be recorded or announced when the transaction fails")
	}
}
