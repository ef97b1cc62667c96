package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/config"
	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/security"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

type AuthService interface {
	Register(ctx context.Context, params RegisterParams) (*user.User, error)
	Verify(ctx context.Context, userID string) error
	Login(ctx context.Context, params LoginParams) (accessToken, refreshToken string, err error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	SendPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, userID, newPassword string) error
}

type Handler struct {
	svc   AuthService
	cfg   *config.Config
	baker web.Baker
}

func NewHandler(svc AuthService, provider *Provider) *Handler {
	return &Handler{
		svc:   svc,
		cfg:   provider.Cfg,
		baker: provider.CSRFBaker,
	}
}

type RegisterRequest struct {
	Email           string `json:"email,omitempty" validate:"required,email"`
	Password        string `json:"password,omitempty" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
	Name            string `json:"name,omitempty" validate:"omitempty,max=200"`
	AcceptTerms     bool   `json:"accept_terms"`
}

func (r *RegisterRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", logging.MaskEmail(r.Email)),
		slog.String("password", logging.MaskChar),
		slog.String("password_confirm", logging.MaskChar),
		slog.Bool("accept_terms", r.AcceptTerms),
	)
}

type RegisterResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	TermsVersion    string     `json:"terms_version"`
	TermsAcceptedAt *time.Time `json:"terms_accepted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := web.ParamsFromContext[RegisterRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	u, err := h.svc.Register(r.Context(), RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		AcceptTerms: req.AcceptTerms,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTermsNotAccepted):
			web.RespondUnprocessableEntity(w, err, MsgTermsNotAccepted, map[string]string{"accept_terms": "accept_terms must be true"})
		case errors.Is(err, ErrUserExists):
			web.RespondConflict(w, err, MsgUserExists, nil)
		default:
			web.RespondInternalServerError(w, err)
		}
		return
	}

	msg := MsgRegisterSuccess
	web.RespondCreated(w, &msg, &RegisterResponse{
		ID:              u.ID,
		Email:           u.Email,
		TermsVersion:    u.TermsVersion,
		TermsAcceptedAt: u.TermsAcceptedAt,
		CreatedAt:       u.CreatedAt,
	})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	userID, err := user.FromContext(r.Context())
	if err != nil {
		web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		return
	}

	if err := h.svc.Verify(r.Context(), userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			web.RespondNotFound(w, err, message.NotFound, nil)
			return
		}
		web.RespondInternalServerError(w, err)
		return
	}

	msg := MsgVerifySuccess
	web.RespondOK(w, &msg, struct{}{})
}

type LoginRequest struct {
	Email    string `json:"email,omitempty" validate:"required,email"`
	Password string `json:"password,omitempty" validate:"required"`
}

func (r *LoginRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", logging.MaskEmail(r.Email)),
		slog.String("password", logging.MaskChar),
	)
}

type TokenResponse struct {
	AccessToken string `json:"access_token,omitempty"`
}

// Login returns the access token in the body and sets the refresh token as an
// http-only cookie together with a fresh CSRF cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := web.ParamsFromContext[LoginRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	accessToken, refreshToken, err := h.svc.Login(r.Context(), LoginParams(req))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		case errors.Is(err, ErrUserNotVerified):
			web.RespondForbidden(w, err, MsgNotVerified, nil)
		default:
			web.RespondInternalServerError(w, err)
		}
		return
	}

	csrfCookie, err := h.baker.Bake()
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	cookieCfg := h.cfg.Cookie
	http.SetCookie(w, security.NewSecureCookie(cookieCfg.Name, refreshToken, cookieCfg.MaxAge.Duration))
	http.SetCookie(w, csrfCookie)

	msg := MsgLoggedIn
	web.RespondOK(w, &msg, &TokenResponse{AccessToken: accessToken})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie(h.cfg.Cookie.Name)
	if err != nil || refreshCookie.Value == "" {
		web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		return
	}

	accessToken, err := h.svc.Refresh(r.Context(), refreshCookie.Value)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			web.RespondUnauthorized(w, err, message.InvalidUser, nil)
			return
		}
		web.RespondInternalServerError(w, err)
		return
	}

	msg := MsgRefreshed
	web.RespondOK(w, &msg, &TokenResponse{AccessToken: accessToken})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookieName := h.cfg.Cookie.Name
	if _, err := r.Cookie(cookieName); err != nil {
		web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		return
	}

	http.SetCookie(w, security.NewSecureCookie(cookieName, "", -1))

	msg := MsgLoggedOut
	web.RespondOK(w, &msg, struct{}{})
}

type ForgotPasswordRequest struct {
	Email string `json:"email,omitempty" validate:"required,email"`
}

func (r *ForgotPasswordRequest) LogValue() slog.Value {
	return slog.GroupValue(slog.String("email", logging.MaskEmail(r.Email)))
}

// ForgotPassword answers the same way whether or not the address is
// registered.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	req, err := web.ParamsFromContext[ForgotPasswordRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	if err := h.svc.SendPasswordReset(r.Context(), req.Email); err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	msg := message.ResetSent
	web.RespondAccepted(w, &msg, struct{}{})
}

type ResetPasswordRequest struct {
	NewPassword    string `json:"new_password,omitempty" validate:"required,min=8"`
	RepeatPassword string `json:"repeat_password,omitempty" validate:"required,eqfield=NewPassword"`
}

func (r *ResetPasswordRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("new_password", logging.MaskChar),
		slog.String("repeat_password", logging.MaskChar),
	)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	userID, err := user.FromContext(r.Context())
	if err != nil {
		web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		return
	}

	req, err := web.ParamsFromContext[ResetPasswordRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), userID, req.NewPassword); err != nil {
		if errors.Is(err, ErrNotFound) {
			web.RespondUnauthorized(w, err, message.InvalidUser, nil)
			return
		}
		web.RespondInternalServerError(w, err)
		return
	}

	msg := message.ResetSuccess
	web.RespondOK(w, &msg, struct{}{})
}
