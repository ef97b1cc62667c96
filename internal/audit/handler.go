package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/pkg/message"
	"github.com/ferdiebergado/gdprkit/internal/pkg/web"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

type AuditService interface {
	List(ctx context.Context, f Filter) ([]Entry, error)
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]Entry, error)
}

type Handler struct {
	svc AuditService
}

func NewHandler(svc AuditService) *Handler {
	return &Handler{svc: svc}
}

type EntryData struct {
	ID        string            `json:"id"`
	ActorID   string            `json:"actor_id,omitempty"`
	Action    string            `json:"action"`
	Resource  string            `json:"resource"`
	Method    string            `json:"method,omitempty"`
	Path      string            `json:"path,omitempty"`
	Status    int               `json:"status,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type ListResponse struct {
	Entries []EntryData `json:"entries"`
}

func NewEntryData(e *Entry) *EntryData {
	return &EntryData{
		ID:        e.ID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		Resource:  e.Resource,
		Method:    e.Method,
		Path:      e.Path,
		Status:    e.Status,
		IPAddress: e.IPAddress,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
}

func newListResponse(entries []Entry) *ListResponse {
	data := make([]EntryData, 0, len(entries))
	for i := range entries {
		data = append(data, *NewEntryData(&entries[i]))
	}
	return &ListResponse{Entries: data}
}

// MyActivity lists the entries where the caller is the actor.
func (h *Handler) MyActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := user.FromContext(r.Context())
	if err != nil {
		web.RespondUnauthorized(w, err, message.InvalidUser, nil)
		return
	}

	limit, offset := user.Page(r)
	entries, err := h.svc.ListByActor(r.Context(), userID, limit, offset)
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	web.RespondOK(w, nil, newListResponse(entries))
}

// List serves the admin audit trail. Filters: actor_id, action, and the
// RFC 3339 bounds since and until.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, err := parseTime(q.Get("since"))
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, map[string]string{"since": "since must be an RFC 3339 timestamp"})
		return
	}

	until, err := parseTime(q.Get("until"))
	if err != nil {
		web.RespondBadRequest(w, err, message.InvalidInput, map[string]string{"until": "until must be an RFC 3339 timestamp"})
		return
	}

	limit, offset := user.Page(r)
	entries, err := h.svc.List(r.Context(), Filter{
		ActorID: q.Get("actor_id"),
		Action:  q.Get("action"),
		Since:   since,
		Until:   until,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		web.RespondInternalServerError(w, err)
		return
	}

	web.RespondOK(w, nil, newListResponse(entries))
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // absent bound
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
