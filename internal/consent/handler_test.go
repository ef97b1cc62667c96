package consent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/consent"
	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

func newHandler(svc consent.ConsentService) *consent.Handler {
	cfg := consentConfig()
	return consent.NewHandler(svc, consent.NewCookieCodec(cfg.CookieName, "secret", cfg.MaxAge.Duration), cfg)
}

func TestHandler_SubjectResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		userID        string
		visitorCookie string
		wantType      string
		wantID        string
		wantNewCookie bool
	}{
		{name: "Authenticated user", userID: "u-1", wantType: consent.SubjectUser, wantID: "u-1"},
		{name: "Returning visitor", visitorCookie: visitor.ID, wantType: consent.SubjectVisitor, wantID: visitor.ID},
		{name: "New visitor gets a cookie", wantType: consent.SubjectVisitor, wantNewCookie: true},
		{name: "Garbage visitor cookie is replaced", visitorCookie: "not-a-uuid", wantType: consent.SubjectVisitor, wantNewCookie: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got consent.Subject
			svc := &consent.StubService{
				CurrentFunc: func(_ context.Context, subject consent.Subject) (*consent.Status, error) {
					got = subject
					return &consent.Status{Choices: consent.Choices{Necessary: true}, Prompt: true}, nil
				},
			}

			r := httptest.NewRequest(http.MethodGet, "/consent", http.NoBody)
			if tc.userID != "" {
				r = r.WithContext(user.NewContextWithUser(r.Context(), tc.userID))
			}
			if tc.visitorCookie != "" {
				r.AddCookie(&http.Cookie{Name: "visitor_id", Value: tc.visitorCookie})
			}
			rec := httptest.NewRecorder()
			newHandler(svc).Get(rec, r)

			if rec.Code != http.StatusOK {
				t.Fatalf(message.FmtErrStatusCode, rec.Code, http.StatusOK)
			}

			if got.Type != tc.wantType {
				t.Errorf("subject.Type = %q, want: %q", got.Type, tc.wantType)
			}

			if tc.wantID != "" && got.ID != tc.wantID {
				t.Errorf("subject.ID = %q, want: %q", got.ID, tc.wantID)
			}

			cookies := rec.Result().Cookies()
			if tc.wantNewCookie {
				if len(cookies) != 1 || cookies[0].Value != got.ID {
					t.Errorf("cookies = %+v, want visitor cookie %q", cookies, got.ID)
				}
			} else if len(cookies) != 0 {
				t.Errorf("cookies = %+v, want none", cookies)
			}
		})
	}
}

func TestHandler_Banner(t *testing.T) {
	t.Parallel()

	updated := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	svc := &consent.StubService{
		CurrentFunc: func(context.Context, consent.Subject) (*consent.Status, error) {
			return &consent.Status{Choices: consent.Choices{Necessary: true, Analytics: true}, PolicyVersion: "2025-01", UpdatedAt: &updated}, nil
		},
		Version: "2025-01",
		URL:     "https://example.com/privacy",
	}

	r := httptest.NewRequest(http.MethodGet, "/consent/banner", http.NoBody)
	r.AddCookie(&http.Cookie{Name: "visitor_id", Value: visitor.ID})
	rec := httptest.NewRecorder()
	newHandler(svc).Banner(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf(message.FmtErrStatusCode, rec.Code, http.StatusOK)
	}

	var res web.OKResponse[*consent.BannerResponse]
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}

	if res.Data.Prompt || res.Data.Current == nil || !res.Data.Current.Analytics {
		t.Errorf("res.Data = %+v, want current analytics consent without prompt", res.Data)
	}

	if len(res.Data.Categories) != 4 || !res.Data.Categories[0].Required {
		t.Errorf("res.Data.Categories = %+v, want four with necessary required", res.Data.Categories)
	}
}

func TestHandler_ConsentCookieSync(t *testing.T) {
	t.Parallel()

	updated := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	stored := &consent.Status{Choices: consent.Choices{Necessary: true, Marketing: true}, PolicyVersion: "2025-01", UpdatedAt: &updated}
	none := &consent.Status{Choices: consent.Choices{Necessary: true}, PolicyVersion: "2025-01", Prompt: true}

	codec := consent.NewCookieCodec("consent", "secret", time.Hour)
	valid, err := codec.Encode(&consent.Record{PolicyVersion: "2025-01", Choices: stored.Choices, CreatedAt: updated})
	if err != nil {
		t.Fatal(err)
	}
	stale, err := codec.Encode(&consent.Record{PolicyVersion: "2024-06", Choices: consent.Choices{Necessary: true}, CreatedAt: updated.AddDate(0, -6, 0)})
	if err != nil {
		t.Fatal(err)
	}
	forged := valid.Value[:len(valid.Value)-2] + "xx"

	tests := []struct {
		name        string
		status      *consent.Status
		cookie      string
		wantCookie  bool
		wantExpired bool
	}{
		{name: "Matching cookie is left alone", status: stored, cookie: valid.Value},
		{name: "Missing cookie is issued", status: stored, wantCookie: true},
		{name: "Tampered cookie is reissued", status: stored, cookie: forged, wantCookie: true},
		{name: "Stale cookie is reissued", status: stored, cookie: stale.Value, wantCookie: true},
		{name: "Cookie without stored consent is expired", status: none, cookie: valid.Value, wantCookie: true, wantExpired: true},
		{name: "No cookie and no stored consent", status: none},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &consent.StubService{
				CurrentFunc: func(context.Context, consent.Subject) (*consent.Status, error) {
					return tc.status, nil
				},
			}

			r := httptest.NewRequest(http.MethodGet, "/consent", http.NoBody)
			r = r.WithContext(user.NewContextWithUser(r.Context(), "u-1"))
			if tc.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "consent", Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			newHandler(svc).Get(rec, r)

			if rec.Code != http.StatusOK {
				t.Fatalf(message.FmtErrStatusCode, rec.Code, http.StatusOK)
			}

			cookies := rec.Result().Cookies()
			if !tc.wantCookie {
				if len(cookies) != 0 {
					t.Errorf("cookies = %+v, want none", cookies)
				}
				return
			}

			if len(cookies) != 1 || cookies[0].Name != "consent" {
				t.Fatalf("cookies = %+v, want one consent cookie", cookies)
			}

			if tc.wantExpired {
				if cookies[0].MaxAge >= 0 {
					t.Errorf("MaxAge = %d, want expired", cookies[0].MaxAge)
				}
				return
			}

			state, err := codec.Decode(cookies[0])
			if err != nil {
				t.Fatalf("decode issued cookie: %v", err)
			}
			want := consent.CookieState{PolicyVersion: "2025-01", Choices: stored.Choices, UpdatedAt: updated.Unix()}
			if *state != want {
				t.Errorf("state = %+v, want: %+v", *state, want)
			}
		})
	}
}

func TestHandler_Save(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		saveErr    error
		wantCode   int
		wantCookie bool
	}{
		{"Stores consent and sets cookie", nil, http.StatusOK, true},
		{"Stale policy version", consent.ErrStaleVersion, http.StatusConflict, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got consent.SaveParams
			svc := &consent.StubService{
				SaveFunc: func(_ context.Context, params consent.SaveParams) (*consent.Record, error) {
					got = params
					if tc.saveErr != nil {
						return nil, tc.saveErr
					}
					return &consent.Record{
						ID:            "c-1",
						SubjectType:   consent.SubjectVisitor,
						Choices:       consent.Choices{Necessary: true, Analytics: params.Choices.Analytics},
						PolicyVersion: params.PolicyVersion,
						Action:        consent.ActionGrant,
						Source:        params.Source,
						CreatedAt:     now,
					}, nil
				},
				Version: "2025-01",
			}

			r := httptest.NewRequest(http.MethodPost, "/consent", http.NoBody)
			r.Header.Set("User-Agent", "test-agent")
			r.AddCookie(&http.Cookie{Name: "visitor_id", Value: visitor.ID})
			r = r.WithContext(web.NewContextWithParams(r.Context(), consent.SaveRequest{
				PolicyVersion: "2025-01",
				Analytics:     true,
				Source:        consent.SourceBanner,
			}))
			rec := httptest.NewRecorder()
			h := newHandler(svc)
			h.Save(rec, r)

			if rec.Code != tc.wantCode {
				t.Fatalf(message.FmtErrStatusCode, rec.Code, tc.wantCode)
			}

			if !got.Choices.Analytics || got.UserAgent != "test-agent" || got.Subject != visitor {
				t.Errorf("params = %+v, want analytics from visitor", got)
			}

			var consentCookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == "consent" {
					consentCookie = c
				}
			}

			if (consentCookie != nil) != tc.wantCookie {
				t.Fatalf("consent cookie set = %t, want: %t", consentCookie != nil, tc.wantCookie)
			}

			if consentCookie != nil {
				state, err := consent.NewCookieCodec("consent", "secret", time.Hour).Decode(consentCookie)
				if err != nil {
					t.Fatalf("Decode() = %v", err)
				}
				if !state.Choices.Analytics {
					t.Errorf("state.Choices = %+v, want analytics granted", state.Choices)
				}
			}
		})
	}
}

func TestHandler_Withdraw(t *testing.T) {
	t.Parallel()

	svc := &consent.StubService{
		WithdrawFunc: func(_ context.Context, params consent.WithdrawParams) (*consent.Record, error) {
			if params.Subject.ID != "u-1" || params.Source != consent.SourceSettings {
				t.Errorf("params = %+v, want settings withdrawal by u-1", params)
			}
			return &consent.Record{ID: "c-2", Choices: consent.Choices{Necessary: true}, Action: consent.ActionWithdraw}, nil
		},
	}

	r := httptest.NewRequest(http.MethodDelete, "/consent", http.NoBody)
	r = r.WithContext(user.NewContextWithUser(r.Context(), "u-1"))
	rec := httptest.NewRecorder()
	newHandler(svc).Withdraw(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf(message.FmtErrStatusCode, rec.Code, http.StatusOK)
	}

	var res web.OKResponse[*consent.RecordData]
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}

	if res.Message != consent.MsgWithdrawn || res.Data.Action != consent.ActionWithdraw {
		t.Errorf("res = %+v, want withdraw record", res)
	}
}

func TestHandler_History(t *testing.T) {
	t.Parallel()

	svc := &consent.StubService{
		HistoryFunc: func(_ context.Context, subject consent.Subject, limit, offset int) ([]consent.Record, error) {
			if limit != 50 || offset != 0 {
				t.Errorf("page = %d, %d, want: 50, 0", limit, offset)
			}
			return []consent.Record{
				{ID: "c-2", SubjectType: subject.Type, Action: consent.ActionUpdate},
				{ID: "c-1", SubjectType: subject.Type, Action: consent.ActionGrant},
			}, nil
		},
	}

	r := httptest.NewRequest(http.MethodGet, "/consent/history", http.NoBody)
	r = r.WithContext(user.NewContextWithUser(r.Context(), "u-1"))
	rec := httptest.NewRecorder()
	newHandler(svc).History(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf(message.FmtErrStatusCode, rec.Code, http.StatusOK)
	}

	var res web.OKResponse[*consent.HistoryResponse]
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}

	if len(res.Data.Records) != 2 || res.Data.Records[0].ID != "c-2" {
		t.Errorf("res.Data.Records = %+v, want newest first", res.Data.Records)
	}
}
