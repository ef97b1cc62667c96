package consent

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/security"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/user"
	"github.com/google/uuid"
)

const (
	MsgSaved        = "Consent saved."
	MsgWithdrawn    = "Consent withdrawn."
	MsgStaleVersion = "The privacy policy has changed. Please review your choices."
)

type ConsentService interface {
	Current(ctx context.Context, subject Subject) (*Status, error)
	Save(ctx context.Context, params SaveParams) (*Record, error)
	Withdraw(ctx context.Context, params WithdrawParams) (*Record, error)
	History(ctx context.Context, subject Subject, limit, offset int) ([]Record, error)
	PolicyVersion() string
	PolicyURL() string
}

type Handler struct {
	svc   ConsentService
	codec *CookieCodec
	cfg   *config.Consent
}

func NewHandler(svc ConsentService, codec *CookieCodec, cfg *config.Consent) *Handler {
	return &Handler{svc: svc, codec: codec, cfg: cfg}
}

// subject identifies the caller: the authenticated user or else the visitor
// cookie, which is issued when missing.
func (h *Handler) subject(w http.ResponseWriter, r *http.Request) Subject {
	if userID, err := user.FromContext(r.Context()); err == nil {
		return Subject{ID: userID, Type: SubjectUser}
	}

	if c, err := r.Cookie(h.cfg.VisitorCookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return Subject{ID: id.String(), Type: SubjectVisitor}
		}
	}

	id := uuid.NewString()
	cookie := security.NewSecureCookie(h.cfg.VisitorCookieName, id, h.cfg.MaxAge.Duration)
	cookie.SameSite = http.SameSiteLaxMode
	http.SetCookie(w, cookie)
	return Subject{ID: id, Type: SubjectVisitor}
}

type BannerResponse struct {
	PolicyVersion string     `json:"policy_version"`
	PolicyURL     string     `json:"policy_url,omitempty"`
	Categories    []Category `json:"categories"`
	Current       *Choices   `json:"current,omitempty"`
	Prompt        bool       `json:"prompt"`
}

// syncCookie keeps the consent cookie in step with the stored consent. A
// missing, tampered or outdated cookie is reissued, and a cookie with no
// stored consent behind it is expired.
func (h *Handler) syncCookie(w http.ResponseWriter, r *http.Request, status *Status) error {
	sent, err := r.Cookie(h.codec.Name())
	if status.UpdatedAt == nil {
		if err == nil {
			http.SetCookie(w, h.codec.Expire())
		}
		return nil
	}

	rec := &Record{PolicyVersion: status.PolicyVersion, Choices: status.Choices, CreatedAt: *status.UpdatedAt}
	if err == nil {
		state, err := h.codec.Decode(sent)
		switch {
		case err != nil:
			slog.Warn("Consent cookie rejected.", "reason", err)
		case *state == (CookieState{PolicyVersion: rec.PolicyVersion, Choices: rec.Choices, UpdatedAt: rec.CreatedAt.Unix()}):
			return nil
		}
	}

	cookie, err := h.codec.Encode(rec)
	if err != nil {
		return err
	}
	http.SetCookie(w, cookie)
	return nil
}

// Banner returns what the cookie banner needs to render.
func (h *Handler) Banner(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Current(r.Context(), h.subject(w, r))
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	if err := h.syncCookie(w, r, status); err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	res := &BannerResponse{
		PolicyVersion: h.svc.PolicyVersion(),
		PolicyURL:     h.svc.PolicyURL(),
		Categories:    Categories,
		Prompt:        status.Prompt,
	}
	if status.UpdatedAt != nil {
		res.Current = &status.Choices
	}

	web.RespondOK(w, nil, res)
}

type StatusResponse struct {
	Choices       Choices    `json:"choices"`
	PolicyVersion string     `json:"policy_version"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	Prompt        bool       `json:"prompt"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Current(r.Context(), h.subject(w, r))
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	if err := h.syncCookie(w, r, status); err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	web.RespondOK(w, nil, &StatusResponse{
		Choices:       status.Choices,
		PolicyVersion: status.PolicyVersion,
		UpdatedAt:     status.UpdatedAt,
		Prompt:        status.Prompt,
	})
}

type SaveRequest struct {
	PolicyVersion string `json:"policy_version" validate:"required,max=50"`
	Preferences   bool   `json:"preferences"`
	Analytics     bool   `json:"analytics"`
	Marketing     bool   `json:"marketing"`
	Source        string `json:"source,omitempty" validate:"omitempty,oneof=banner settings api"`
}

func (r *SaveRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("policy_version", r.PolicyVersion),
		slog.Bool("preferences", r.Preferences),
		slog.Bool("analytics", r.Analytics),
		slog.Bool("marketing", r.Marketing),
	)
}

type RecordData struct {
	ID            string    `json:"id"`
	SubjectType   string    `json:"subject_type"`
	Choices       Choices   `json:"choices"`
	PolicyVersion string    `json:"policy_version"`
	Action        string    `json:"action"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewRecordData(rec *Record) *RecordData {
	return &RecordData{
		ID:            rec.ID,
		SubjectType:   rec.SubjectType,
		Choices:       rec.Choices,
		PolicyVersion: rec.PolicyVersion,
		Action:        rec.Action,
		Source:        rec.Source,
		CreatedAt:     rec.CreatedAt,
	}
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	req, err := web.ParamsFromContext[SaveRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	rec, err := h.svc.Save(r.Context(), SaveParams{
		Subject: h.subject(w, r),
		Choices: Choices{
			Preferences: req.Preferences,
			Analytics:   req.Analytics,
			Marketing:   req.Marketing,
		},
		PolicyVersion: req.PolicyVersion,
		Source:        req.Source,
		IPAddress:     web.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, ErrStaleVersion) {
			web.RespondConflict(w, err, MsgStaleVersion, map[string]string{"policy_version": "current version is " + h.svc.PolicyVersion()})
			return
		}
		web.RespondInternalServerError(w, err)
		return
	}

	h.respondRecord(w, MsgSaved, rec)
}

// Withdraw refuses every optional category.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Withdraw(r.Context(), WithdrawParams{
		Subject:   h.subject(w, r),
		Source:    SourceSettings,
		IPAddress: web.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	h.respondRecord(w, MsgWithdrawn, rec)
}

func (h *Handler) respondRecord(w http.ResponseWriter, msg string, rec *Record) {
	cookie, err := h.codec.Encode(rec)
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}
	http.SetCookie(w, cookie)

	web.RespondOK(w, &msg, NewRecordData(rec))
}

type HistoryResponse struct {
	Records []RecordData `json:"records"`
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, offset := user.Page(r)
	recs, err := h.svc.History(r.Context(), h.subject(w, r), limit, offset)
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	data := make([]RecordData, 0, len(recs))
	for i := range recs {
		data = append(data, *NewRecordData(&recs[i]))
	}

	web.RespondOK(w, nil, &HistoryResponse{Records: data})
}
