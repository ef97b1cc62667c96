package export_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/consent"
	"github.com/ferdiebergado/gdprkit/internal/dsr"
	"github.com/ferdiebergado/gdprkit/internal/export"
	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

func TestMain(m *testing.M) {
	logging.SetupLogger("testing", "error", os.Stdout)
	os.Exit(m.Run())
}

type requestsFunc func(ctx context.Context, userID, email string) ([]dsr.Request, error)

func (f requestsFunc) ListBySubject(ctx context.Context, userID, email string) ([]dsr.Request, error) {
	return f(ctx, userID, email)
}

var created = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T, findErr error) *export.Service {
	t.Helper()

	cfg := &config.Config{Compliance: &config.Compliance{ControllerName: "Example Ltd", DPOEmail: "dpo@example.com"}}

	users := &user.StubRepo{
		FindFunc: func(_ context.Context, userID string) (*user.User, error) {
			if findErr != nil {
				return nil, findErr
			}
			return &user.User{ID: userID, Email: "jane@example.com", Name: "Jane Doe", Role: user.RoleUser, CreatedAt: created}, nil
		},
	}

	history := &consent.StubService{
		HistoryFunc: func(_ context.Context, subject consent.Subject, limit, _ int) ([]consent.Record, error) {
			if subject.Type != consent.SubjectUser || limit != 0 {
				t.Errorf("History(%+v, limit %d), want the whole history of the account", subject, limit)
			}
			return []consent.Record{
				{ID: "c-1", SubjectID: subject.ID, Choices: consent.Choices{Necessary: true}, Action: consent.ActionGrant},
				{ID: "c-2", SubjectID: subject.ID, Choices: consent.Choices{Necessary: true, Analytics: true}, Action: consent.ActionUpdate},
			}, nil
		},
	}

	requests := requestsFunc(func(_ context.Context, userID, email string) ([]dsr.Request, error) {
		if userID != "u-1" || email != "jane@example.com" {
			t.Errorf("ListBySubject(%s, %s)", userID, email)
		}
		return []dsr.Request{{ID: "r-1", Reference: "DSR-0000ABCD", Type: dsr.TypeAccess, Status: dsr.StatusInProgress}}, nil
	})

	activity := &audit.StubService{
		ListByActorFunc: func(_ context.Context, _ string, limit, _ int) ([]audit.Entry, error) {
			if limit != 0 {
				t.Errorf("ListByActor(limit %d), want the whole trail", limit)
			}
			return []audit.Entry{{ID: "e-1", Action: audit.ActionProfileRead}}, nil
		},
	}

	return export.NewService(cfg, users, history, requests, activity)
}

func TestService_Build(t *testing.T) {
	t.Parallel()

	b, err := newService(t, nil).Build(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("svc.Build() = %v", err)
	}

	if b.Format != export.FormatVersion || b.Controller.DPOEmail != "dpo@example.com" {
		t.Errorf("bundle header = %s %+v", b.Format, b.Controller)
	}

	if b.Profile.Name != "Jane Doe" || b.Profile.Email != "jane@example.com" {
		t.Errorf("b.Profile = %+v, want decrypted profile", b.Profile)
	}

	if len(b.Consent) != 2 || len(b.Requests) != 1 || len(b.Activity) != 1 {
		t.Errorf("bundle holds %d consent, %d requests, %d activity; want 2, 1, 1", len(b.Consent), len(b.Requests), len(b.Activity))
	}

	if b.Requests[0].Reference != "DSR-0000ABCD" {
		t.Errorf("b.Requests[0] = %+v", b.Requests[0])
	}
}

func TestService_Build_UnknownUser(t *testing.T) {
	t.Parallel()

	if _, err := newService(t, user.ErrNotFound).Build(context.Background(), "u-9"); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("svc.Build() = %v, want: %v", err, user.ErrNotFound)
	}
}

func TestService_Summary(t *testing.T) {
	t.Parallel()

	got, err := newService(t, nil).Summary(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("svc.Summary() = %v", err)
	}

	want := "The export holds the profile, 2 consent records, 1 request and 1 activity entry."
	if got != want {
		t.Errorf("svc.Summary() = %q, want: %q", got, want)
	}
}
