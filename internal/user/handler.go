package user

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type UserService interface {
	List(ctx context.Context, limit, offset int) ([]User, error)
	Find(ctx context.Context, userID string) (*User, error)
	UpdateProfile(ctx context.Context, userID string, params ProfileParams) (*User, error)
}

type Handler struct {
	svc UserService
}

func NewHandler(svc UserService) *Handler {
	return &Handler{svc: svc}
}

type UserData struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Role            string     `json:"role"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	TermsVersion    string     `json:"terms_version,omitempty"`
	TermsAcceptedAt *time.Time `json:"terms_accepted_at,omitempty"`
	AnonymizedAt    *time.Time `json:"anonymized_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func NewUserData(u *User) *UserData {
	return &UserData{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Phone:           u.Phone,
		Role:            u.Role,
		VerifiedAt:      u.VerifiedAt,
		LastLoginAt:     u.LastLoginAt,
		TermsVersion:    u.TermsVersion,
		TermsAcceptedAt: u.TermsAcceptedAt,
		AnonymizedAt:    u.AnonymizedAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

type ListResponse struct {
	Users []UserData `json:"users"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := Page(r)
	users, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	data := make([]UserData, 0, len(users))
	for i := range users {
		data = append(data, *NewUserData(&users[i]))
	}

	web.RespondOK(w, nil, &ListResponse{Users: data})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := FromContext(r.Context())
	if err != nil {
		web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		return
	}

	u, err := h.svc.Find(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			web.RespondNotFound(w, err, message.NotFound, nil)
			return
		}
		web.RespondInternalServerError(w, err)
		return
	}

	web.RespondOK(w, nil, NewUserData(u))
}

type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,e164"`
}

func (r *UpdateProfileRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("name", r.Name != nil),
		slog.Bool("phone", r.Phone != nil),
	)
}

// UpdateMe rectifies the caller's personal data.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := FromContext(r.Context())
	if err != nil {
		web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		return
	}

	req, err := web.ParamsFromContext[UpdateProfileRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	u, err := h.svc.UpdateProfile(r.Context(), userID, ProfileParams(req))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			web.RespondNotFound(w, err, message.NotFound, nil)
			return
		}
		web.RespondInternalServerError(w, err)
		return
	}

	msg := "Profile updated."
	web.RespondOK(w, &msg, NewUserData(u))
}

// Page reads the limit and offset query parameters.
func Page(r *http.Request) (limit, offset int) {
	q := r.URL.Query()

	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	offset, err = strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
