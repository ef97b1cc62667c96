package dsr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/platform/jwt"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

type RequestService interface {
	Submit(ctx context.Context, params SubmitParams) (*Request, error)
	Verify(ctx context.Context, id string) (*Request, error)
	FindByReference(ctx context.Context, reference string) (*Request, error)
	Get(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context, f Filter) ([]Request, error)
	Start(ctx context.Context, id, actorID string) (*Request, error)
	Complete(ctx context.Context, id, actorID, resolution string) (*Request, error)
	Reject(ctx context.Context, id, actorID, reason string) (*Request, error)
	Extend(ctx context.Context, id, actorID string, params ExtendParams) (*Request, error)
}

type Handler struct {
	svc            RequestService
	signer         jwt.Signer
	verifyAudience string
}

func NewHandler(svc RequestService, signer jwt.Signer, verifyAudience string) *Handler {
	return &Handler{svc: svc, signer: signer, verifyAudience: verifyAudience}
}

type SubmitRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Type        string `json:"type" validate:"required,oneof=access rectification erasure portability restriction objection"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

func (r *SubmitRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", logging.MaskEmail(r.Email)),
		slog.String("type", r.Type),
		slog.String("description", logging.MaskChar),
	)
}

// StatusData is what the requester sees. It carries no personal data.
type StatusData struct {
	Reference  string     `json:"reference"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	DueAt      time.Time  `json:"due_at"`
	ExtendedAt *time.Time `json:"extended_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func NewStatusData(req *Request) *StatusData {
	return &StatusData{
		Reference:  req.Reference,
		Type:       req.Type,
		Status:     req.Status,
		DueAt:      req.DueAt,
		ExtendedAt: req.ExtendedAt,
		ClosedAt:   req.ClosedAt,
		CreatedAt:  req.CreatedAt,
	}
}

// Submit accepts the public request form. A signed-in submitter is taken
// from the optional bearer token.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	req, err := web.ParamsFromContext[SubmitRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	userID, _ := user.FromContext(r.Context())
	created, err := h.svc.Submit(r.Context(), SubmitParams{
		Email:       req.Email,
		Type:        req.Type,
		Description: req.Description,
		UserID:      userID,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidType) {
			web.RespondUnprocessableEntity(w, err, message.InvalidInput, map[string]string{"type": "unknown request type"})
			return
		}
		web.RespondInternalServerError(w, err)
		return
	}

	msg := MsgSubmitted
	if created.Status != StatusUnverified {
		msg = MsgSubmittedVerified
	}
	web.RespondAccepted(w, &msg, NewStatusData(created))
}

// Verify handles the link mailed to the requester.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		web.RespondUnauthorized(w, errors.New("dsr: missing verification token"), MsgInvalidLink, nil)
		return
	}

	claims, err := h.signer.Verify(token, h.verifyAudience)
	if err != nil {
		web.RespondUnauthorized(w, err, MsgInvalidLink, nil)
		return
	}

	verified, err := h.svc.Verify(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}

	msg := MsgVerified
	web.RespondOK(w, &msg, NewStatusData(verified))
}

// Status looks a request up by the reference quoted to the requester.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.FindByReference(r.Context(), r.PathValue("reference"))
	if err != nil {
		h.fail(w, err)
		return
	}

	web.RespondOK(w, nil, NewStatusData(req))
}

type RequestData struct {
	StatusData
	ID              string     `json:"id"`
	UserID          string     `json:"user_id,omitempty"`
	Email           string     `json:"email"`
	Description     string     `json:"description,omitempty"`
	Resolution      string     `json:"resolution,omitempty"`
	ExtensionReason string     `json:"extension_reason,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	Overdue         bool       `json:"overdue"`
}

func NewRequestData(req *Request, now time.Time) *RequestData {
	return &RequestData{
		StatusData:      *NewStatusData(req),
		ID:              req.ID,
		UserID:          req.UserID,
		Email:           req.Email,
		Description:     req.Description,
		Resolution:      req.Resolution,
		ExtensionReason: req.ExtensionReason,
		VerifiedAt:      req.VerifiedAt,
		Overdue:         req.IsOverdue(now),
	}
}

type ListResponse struct {
	Requests []RequestData `json:"requests"`
}

// List serves the admin queue. Filters: status, type and overdue=true.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := user.Page(r)

	f := Filter{
		Status: q.Get("status"),
		Type:   q.Get("type"),
		Limit:  limit,
		Offset: offset,
	}

	if v := q.Get("overdue"); v != "" {
		overdue, err := strconv.ParseBool(v)
		if err != nil {
			web.RespondBadRequest(w, err, message.InvalidInput, map[string]string{"overdue": "overdue must be true or false"})
			return
		}
		f.Overdue = overdue
	}

	if f.Type != "" && !ValidType(f.Type) {
		web.RespondBadRequest(w, ErrInvalidType, message.InvalidInput, map[string]string{"type": "unknown request type"})
		return
	}

	reqs, err := h.svc.List(r.Context(), f)
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	now := time.Now()
	data := make([]RequestData, 0, len(reqs))
	for i := range reqs {
		data = append(data, *NewRequestData(&reqs[i], now))
	}

	web.RespondOK(w, nil, &ListResponse{Requests: data})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	web.RespondOK(w, nil, NewRequestData(req, time.Now()))
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(ctx context.Context, id, actorID string) (*Request, error) {
		return h.svc.Start(ctx, id, actorID)
	})
}

type CompleteRequest struct {
	Resolution string `json:"resolution,omitempty" validate:"max=2000"`
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	req, err := web.ParamsFromContext[CompleteRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	h.act(w, r, func(ctx context.Context, id, actorID string) (*Request, error) {
		return h.svc.Complete(ctx, id, actorID, req.Resolution)
	})
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	req, err := web.ParamsFromContext[RejectRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	h.act(w, r, func(ctx context.Context, id, actorID string) (*Request, error) {
		return h.svc.Reject(ctx, id, actorID, req.Reason)
	})
}

type ExtendRequest struct {
	Days   int    `json:"days" validate:"required,min=1"`
	Reason string `json:"reason" validate:"required,max=2000"`
}

func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	req, err := web.ParamsFromContext[ExtendRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	h.act(w, r, func(ctx context.Context, id, actorID string) (*Request, error) {
		return h.svc.Extend(ctx, id, actorID, ExtendParams{
			By:     time.Duration(req.Days) * 24 * time.Hour,
			Reason: req.Reason,
		})
	})
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, actorID string) (*Request, error)) {
	actorID, err := user.FromContext(r.Context())
	if err != nil {
		web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		return
	}

	req, err := fn(r.Context(), r.PathValue("id"), actorID)
	if err != nil {
		h.fail(w, err)
		return
	}

	msg := MsgUpdated
	web.RespondOK(w, &msg, NewRequestData(req, time.Now()))
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		web.RespondNotFound(w, err, message.NotFound, nil)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyVerified), errors.Is(err, ErrAlreadyExtended):
		web.RespondConflict(w, err, MsgInvalidState, nil)
	case errors.Is(err, ErrInvalidExtension):
		web.RespondUnprocessableEntity(w, err, MsgInvalidExtension, nil)
	default:
		web.RespondInternalServerError(w, err)
	}
}
