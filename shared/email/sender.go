package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"dfl-stack/internal/models"
	"dfl-stack/shared/config"
)

//go:embed templates/*.html
var templateFS embed.FS

var digestTemplate = template.Must(template.New("digest.html").Funcs(template.FuncMap{
	"lower": func(v any) string { return strings.ToLower(fmt.Sprint(v)) },
	"pct":   func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
}).ParseFS(templateFS, "templates/digest.html"))

type Sender struct {
	config *config.EmailConfig
}

func NewSender(cfg *config.EmailConfig) *Sender {
	return &Sender{
		config: cfg,
	}
}

// SendDigest mails the cycle digest. It is a no-op when email is disabled.
func (s *Sender) SendDigest(digest *models.Digest) error {
	if digest == nil || digest.Status == nil {
		return fmt.Errorf("digest cannot be nil")
	}
	if !s.config.Enabled {
		return nil
	}

	body, err := GenerateDigestBody(digest)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	return s.SendHTML(Subject(digest), body)
}

// Subject summarizes the digest for the mail subject line.
func Subject(digest *models.Digest) string {
	report := digest.Status.Report
	subject := fmt.Sprintf("DFL Daily Report - Score %d/100 (%s) - %s",
		report.OverallScore, report.ViralStatus, digest.Date.Format("Jan 2, 2006"))
	if digest.Pivot != nil {
		subject += " - Pivot: " + digest.Pivot.Payload.Topic
	}
	return subject
}

// SendHTML sends an email with custom HTML content
func (s *Sender) SendHTML(subject, htmlBody string) error {
	return s.sendViaSMTP(subject, htmlBody)
}

func (s *Sender) sendViaSMTP(subject, body string) error {
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPServer)

	to := []string{s.config.ToEmail}
	msg := []byte(fmt.Sprintf(`To: %s
From: %s
Subject: %s
MIME-Version: 1.0
Content-Type: text/html; charset=UTF-8

%s`, s.config.ToEmail, s.config.FromEmail, subject, body))

	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.FromEmail, to, msg)
}

func GenerateDigestBody(digest *models.Digest) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, digest); err != nil {
		return "", err
	}
	return buf.String(), nil
}
