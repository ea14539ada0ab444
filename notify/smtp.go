package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/civicpulse/authcore"
)

// SMTPConfig addresses an SMTP relay. Username empty disables AUTH.
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	HelloName          string
	DialTimeout        time.Duration
	InsecureSkipVerify bool
}

// Mailer sends notifications as plain-text mail. STARTTLS is used when the
// server offers it.
type Mailer struct {
	cfg    SMTPConfig
	now    func() time.Time
	logger *slog.Logger
}

var _ authcore.Notifier = (*Mailer)(nil)

// NewMailer checks cfg; it does not dial until the first Send.
func NewMailer(cfg SMTPConfig, logger *slog.Logger) (*Mailer, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, errors.New("notify: smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, errors.New("notify: from address is required")
	}
	if cfg.HelloName == "" {
		cfg.HelloName = "localhost"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{cfg: cfg, now: time.Now, logger: logger}, nil
}

// Send renders n and delivers it over SMTP.
func (m *Mailer) Send(ctx context.Context, n authcore.Notification) error {
	msg, err := Render(n, m.now())
	if err != nil {
		return err
	}
	return m.deliver(ctx, n.Identity, msg)
}

func (m *Mailer) deliver(ctx context.Context, to string, msg Message) error {
	dialer := &net.Dialer{Timeout: m.cfg.DialTimeout}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer func() {
		if err := c.Quit(); err != nil {
			m.logger.DebugContext(ctx, "smtp quit failed", "error", err)
		}
	}()

	if err := c.Hello(m.cfg.HelloName); err != nil {
		return err
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host, InsecureSkipVerify: m.cfg.InsecureSkipVerify}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(m.compose(to, msg)); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (m *Mailer) compose(to string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.cfg.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("UTF-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + m.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
