package erasure

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/security"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/platform/hash"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

type Eraser interface {
	Erase(ctx context.Context, userID, reason, actorID string) error
}

type UserFinder interface {
	Find(ctx context.Context, userID string) (*user.User, error)
}

type Handler struct {
	svc        Eraser
	users      UserFinder
	hasher     hash.Hasher
	cookieName string
}

func NewHandler(svc Eraser, users UserFinder, hasher hash.Hasher, cookieName string) *Handler {
	return &Handler{svc: svc, users: users, hasher: hasher, cookieName: cookieName}
}

type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

func (r *DeleteAccountRequest) LogValue() slog.Value {
	return slog.GroupValue(slog.String("password", logging.MaskChar))
}

// DeleteAccount erases the signed-in account after the password is
// confirmed, then clears the session cookie.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := user.FromContext(r.Context())
	if err != nil {
		web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		return
	}

	req, err := web.ParamsFromContext[DeleteAccountRequest](r.Context())
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, nil)
		return
	}

	u, err := h.users.Find(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			web.RespondUnauthorized(w, err, message.InvalidUser, nil)
			return
		}
		web.RespondInternalServerError(w, err)
		return
	}

	ok, err := h.hasher.Verify(req.Password, u.PasswordHash)
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	if !ok {
		web.RespondForbidden(w, errors.New("erasure: password mismatch"), MsgWrongPassword, nil)
		return
	}

	if err := h.svc.Erase(r.Context(), userID, "self-service", userID); err != nil {
		if errors.Is(err, ErrAlreadyErased) {
			web.RespondConflict(w, err, MsgErased, nil)
			return
		}
		web.RespondInternalServerError(w, err)
		return
	}

	http.SetCookie(w, security.NewSecureCookie(h.cookieName, "", -1))

	msg := MsgErased
	web.RespondOK(w, &msg, struct{}{})
}
