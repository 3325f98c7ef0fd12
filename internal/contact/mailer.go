package contact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrTransportNotConfigured means the mail credentials or addresses are missing.
var ErrTransportNotConfigured = errors.New("contact: email transport not configured")

// Mailer delivers a validated submission to the studio inbox.
type Mailer interface {
	Send(ctx context.Context, s Submission) error
}

// sender is the subset of *sendgrid.Client used here.
type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig holds the transport settings.
type SendGridConfig struct {
	APIKey string
	From   string
	To     string
}

func (c SendGridConfig) configured() bool {
	return c.APIKey != "" && c.From != "" && c.To != ""
}

// SendGridMailer sends through the SendGrid v3 API.
type SendGridMailer struct {
	cfg    SendGridConfig
	client sender
}

// NewSendGridMailer never fails; an incomplete config yields a mailer whose Send
// returns ErrTransportNotConfigured.
func NewSendGridMailer(cfg SendGridConfig) *SendGridMailer {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.From = strings.TrimSpace(cfg.From)
	cfg.To = strings.TrimSpace(cfg.To)
	m := &SendGridMailer{cfg: cfg}
	if cfg.configured() {
		m.client = sendgrid.NewSendClient(cfg.APIKey)
	}
	return m
}

func (m *SendGridMailer) Send(ctx context.Context, s Submission) error {
	if m == nil || m.client == nil || !m.cfg.configured() {
		return ErrTransportNotConfigured
	}
	htmlBody, err := renderHTML(s)
	if err != nil {
		return fmt.Errorf("contact: render mail: %w", err)
	}
	msg := mail.NewSingleEmail(
		mail.NewEmail("BitPoet", m.cfg.From),
		Subject(s),
		mail.NewEmail("BitPoet", m.cfg.To),
		s.Message,
		htmlBody,
	)
	msg.SetReplyTo(mail.NewEmail(s.Name, s.Email))

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("contact: sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("contact: sendgrid status %d: %s", resp.StatusCode, truncate(resp.Body, 200))
	}
	return nil
}

// Subject is the mail subject line for s.
func Subject(s Submission) string {
	return "New BitPoet inquiry from " + s.Name
}

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	mailPolicy = bluemonday.UGCPolicy()
)

// renderHTML builds the HTML body. Submitter text goes through markdown with raw
// HTML disabled, then the sanitizer.
func renderHTML(s Submission) (string, error) {
	var src strings.Builder
	src.WriteString("**New contact form submission**\n\n")
	src.WriteString("**Name:** " + escapeMarkdown(s.Name) + "\n\n")
	src.WriteString("**Email:** " + escapeMarkdown(s.Email) + "\n\n")
	src.WriteString("**Message:**\n\n")
	src.WriteString(s.Message)
	src.WriteString("\n")

	var buf bytes.Buffer
	if err := md.Convert([]byte(src.String()), &buf); err != nil {
		return "", err
	}
	return mailPolicy.Sanitize(buf.String()), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "#", `\#`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
