// Package events publishes domain events to downstream processors that hold
// copies of personal data.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	RequestSubmitted = "request.submitted"
	RequestVerified  = "request.verified"
	RequestUpdated   = "request.updated"
	SubjectErased    = "subject.erased"
	ConsentChanged   = "consent.changed"
)

type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	SubjectID  string            `json:"subject_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data,omitempty"`
}

// New returns an event with a fresh id stamped with the current time.
func New(eventType, subjectID string, data map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		SubjectID:  subjectID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the log. It is used when no broker is
// configured.
type LogPublisher struct{}

var _ Publisher = LogPublisher{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	slog.Info("Event published.", "type", e.Type, "event", string(b))
	return nil
}

func (LogPublisher) Close() error { return nil }
