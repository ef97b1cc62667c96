package email

import (
	"log/slog"

	"github.com/ferdiebergado/gdprkit/internal/pkg/logging"
)

type Mailer interface {
	SendPlain(to []string, subject, body string) error
	SendHTML(to []string, subject, tmplName string, data map[string]string) error
}

// LogMailer writes mails to the log instead of delivering them. It is used
// when no SMTP host is configured.
type LogMailer struct{}

var _ Mailer = LogMailer{}

func (LogMailer) SendPlain(to []string, subject, _ string) error {
	slog.Info("Mail not delivered, no smtp host.", "to", maskAll(to), "subject", subject)
	return nil
}

func (LogMailer) SendHTML(to []string, subject, tmplName string, _ map[string]string) error {
	slog.Info("Mail not delivered, no smtp host.", "to", maskAll(to), "subject", subject, "template", tmplName)
	return nil
}

func maskAll(addrs []string) []string {
	masked := make([]string, 0, len(addrs))
	for _, a := range addrs {
		masked = append(masked, logging.MaskEmail(a))
	}
	return masked
}
