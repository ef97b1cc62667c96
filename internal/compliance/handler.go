package compliance

import (
	"context"
	"net/http"

	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
)

type Reporter interface {
	Report(ctx context.Context) (*Report, error)
}

type Handler struct {
	svc Reporter
}

func NewHandler(svc Reporter) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Report(r.Context())
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	web.RespondOK(w, nil, report)
}
