// Package notify delivers templated e-mails from a background queue.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
)

// Template names under the configured templates directory.
const (
	TmplVerification  = "verification"
	TmplResetPassword = "reset_password"
	TmplDSRReceived   = "dsr_received"
	TmplDSRVerified   = "dsr_verified"
	TmplDSRCompleted  = "dsr_completed"
	TmplDSRRejected   = "dsr_rejected"
	TmplDSRExtended   = "dsr_extended"
	TmplAccountErased = "account_erased"
)

var ErrClosed = errors.New("notify: dispatcher is closed")

type Message struct {
	To       string
	Subject  string
	Template string
	Data     map[string]string
}

func (m Message) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("to", logging.MaskEmail(m.To)),
		slog.String("subject", m.Subject),
		slog.String("template", m.Template),
	)
}

// Sender queues a message for delivery.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
