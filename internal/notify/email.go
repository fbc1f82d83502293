package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSMTPPort    = 587
	defaultSendTimeout = 30 * time.Second
)

// EmailConfig holds SMTP submission settings.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	// To may list several comma-separated recipients.
	To string
	// From defaults to User.
	From    string
	Timeout time.Duration
}

// Email sends alerts through an SMTP submission server using STARTTLS.
type Email struct {
	cfg       EmailConfig
	tlsConfig *tls.Config
}

var _ Channel = (*Email)(nil)

// NewEmail creates the email channel.
func NewEmail(cfg EmailConfig) *Email {
	if cfg.Port == 0 {
		cfg.Port = defaultSMTPPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}
	if strings.TrimSpace(cfg.From) == "" {
		cfg.From = cfg.User
	}
	return &Email{
		cfg: cfg,
		tlsConfig: &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		},
	}
}

// Name implements Channel.
func (e *Email) Name() string { return "email" }

// Configured implements Channel.
func (e *Email) Configured() bool {
	return e.cfg.Host != "" && e.cfg.User != "" && e.cfg.Password != "" &&
		len(e.recipients()) > 0 && e.cfg.From != ""
}

// Send delivers msg to every recipient in one SMTP transaction.
func (e *Email) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	dialer := &net.Dialer{Timeout: e.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	deadline := time.Now().Add(e.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return fmt.Errorf("set smtp deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return errors.New("smtp server does not support STARTTLS")
	}
	if err := client.StartTLS(e.tlsConfig); err != nil {
		return fmt.Errorf("smtp starttls: %w", err)
	}
	if err := client.Auth(smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(envelopeAddress(e.cfg.From)); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	recipients := e.recipients()
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildEmail(e.cfg.From, recipients, msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp finish body: %w", err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}

// envelopeAddress strips a display name ("Name <addr>") for MAIL FROM. The
// From header keeps the configured form. Values that do not parse, such as a
// bare SMTP login, are used as given.
func envelopeAddress(from string) string {
	from = strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(from); err == nil {
		return parsed.Address
	}
	return from
}

func (e *Email) recipients() []string {
	var out []string
	for _, part := range strings.Split(e.cfg.To, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// buildEmail renders a plain-text UTF-8 RFC 5322 message with CRLF line endings.
func buildEmail(from string, to []string, msg Message) []byte {
	date := msg.Event.CheckedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}
