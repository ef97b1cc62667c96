package export

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

type Builder interface {
	Build(ctx context.Context, userID string) (*Bundle, error)
}

type Handler struct {
	svc Builder
}

func NewHandler(svc Builder) *Handler {
	return &Handler{svc: svc}
}

// Filename is the attachment name of the export of userID.
func Filename(userID string) string {
	return "personal-data-" + userID + ".json"
}

// Export sends the caller's personal data as a JSON attachment.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	userID, err := user.FromContext(r.Context())
	if err != nil {
		web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		return
	}

	b, err := h.svc.Build(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			web.RespondNotFound(w, err, message.NotFound, nil)
			return
		}
		web.RespondInternalServerError(w, err)
		return
	}

	body, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+Filename(userID)+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("Failed to write export.", "user_id", userID, "reason", err)
	}
}
