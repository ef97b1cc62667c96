package email

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"

	"github.com/ferdiebergado/gdprkit/internal/config"
)

var _ Mailer = &SMTPMailer{}

type templateMap map[string]*template.Template

type SMTPMailer struct {
	from      string
	pass      string
	host      string
	port      int
	sender    string
	templates templateMap
	sendFunc  func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (e *SMTPMailer) send(to []string, subject, body, contentType string) error {
	from := e.from
	host := e.host
	auth := smtp.PlainAuth(
		"",
		from,
		e.pass,
		host,
	)

	recipients := strings.Join(to, ", ")
	headers := "From: " + e.sender + "\r\n" +
		"To: " + recipients + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0\r\n" +
		"Content-Type: " + contentType + "; charset=\"UTF-8\"\r\n\r\n"

	message := headers + body
	addr := fmt.Sprintf("%s:%d", host, e.port)

	if err := e.sendFunc(addr, auth, from, to, []byte(message)); err != nil {
		return fmt.Errorf("sending email with subject %q: %w", subject, err)
	}

	slog.Info("Email sent.", "subject", subject)
	return nil
}

// Render executes the named page template inside the layout.
func (e *SMTPMailer) Render(tmplName string, data map[string]string) (string, error) {
	tmpl, ok := e.templates[tmplName]
	if !ok {
		return "", fmt.Errorf("template does not exist: %s", tmplName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute email template %q: %w", tmplName, err)
	}
	return buf.String(), nil
}

func (e *SMTPMailer) SendHTML(to []string, subject, tmplName string, data map[string]string) error {
	body, err := e.Render(tmplName, data)
	if err != nil {
		return err
	}

	if err := e.send(to, subject, body, "text/html"); err != nil {
		return fmt.Errorf("send html email: %w", err)
	}

	return nil
}

func (e *SMTPMailer) SendPlain(to []string, subject, body string) error {
	return e.send(to, subject, body, "text/plain")
}

func NewSMTPMailer(cfg *config.SMTP, opts *config.Email) (*SMTPMailer, error) {
	path := opts.Templates
	layoutFile := filepath.Join(path, opts.Layout)
	tmplMap, err := parsePages(path, opts.Layout, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("parse pages at path %q and layout file %q: %w", path, layoutFile, err)
	}

	return &SMTPMailer{
		from:      cfg.User,
		pass:      cfg.Password,
		host:      cfg.Host,
		port:      cfg.Port,
		sender:    opts.Sender,
		templates: tmplMap,
		sendFunc:  smtp.SendMail,
	}, nil
}

func parsePages(templateDir, layoutName, layoutFile string) (templateMap, error) {
	layoutTmpl, err := template.New("layout").ParseFiles(layoutFile)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	tmplMap := make(templateMap)
	err = fs.WalkDir(os.DirFS(templateDir), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk directory %q at path %q: %w", templateDir, path, err)
		}

		const suffix = ".html"
		if d.IsDir() || !strings.HasSuffix(path, suffix) || path == layoutName {
			return nil
		}

		clone, err := layoutTmpl.Clone()
		if err != nil {
			return fmt.Errorf("clone layout: %w", err)
		}

		page, err := clone.ParseFiles(filepath.Join(templateDir, path))
		if err != nil {
			return fmt.Errorf("parse page %q: %w", path, err)
		}

		name := strings.TrimSuffix(path, suffix)
		tmplMap[name] = page.Lookup(layoutName)
		slog.Debug("parsed page", "path", path, "name", name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load pages templates: %w", err)
	}

	return tmplMap, nil
}
