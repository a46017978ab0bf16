package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"primetrade/internal/config"

	"gopkg.in/gomail.v2"
)

const appName = "Primetrade"

var (
	// ErrNotConfigured is returned when SMTP credentials are missing.
	ErrNotConfigured = errors.New("email not configured: set SMTP_USER and SMTP_PASS")
	// ErrSendTimeout is returned when the SMTP exchange outlives the send timeout.
	ErrSendTimeout = errors.New("email send timed out")
)

// EmailNotifier delivers one-time codes over SMTP.
type EmailNotifier struct {
	cfg     config.EmailConfig
	logger  *slog.Logger
	deliver func(*gomail.Message) error
}

const defaultTimeout = 10 * time.Second

// NewEmailNotifier builds a notifier that dials the configured SMTP server per message.
func NewEmailNotifier(cfg config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &EmailNotifier{
		cfg:     cfg,
		logger:  logger,
		deliver: func(m *gomail.Message) error { return dialAndSend(cfg, m) },
	}
}

// dialAndSend delivers m over one SMTP session whose connection carries a
// deadline of cfg.Timeout, so a stalled server cannot hold it open.
// Port 465 uses implicit TLS; other ports upgrade with STARTTLS when offered.
func dialAndSend(cfg config.EmailConfig, m *gomail.Message) error {
	addr := net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	tlsCfg := &tls.Config{ServerName: cfg.SMTPHost}

	var (
		conn net.Conn
		err  error
	)
	if cfg.SMTPPort == 465 {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(cfg.Timeout)); err != nil {
		conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok && cfg.SMTPPort != 465 {
		if err := c.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if ok, _ := c.Extension("AUTH"); ok && cfg.SMTPUser != "" {
		if err := c.Auth(smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	err = gomail.Send(gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		if err := c.Mail(from); err != nil {
			return err
		}
		for _, rcpt := range to {
			if err := c.Rcpt(rcpt); err != nil {
				return err
			}
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		if _, err := msg.WriteTo(w); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	}), m)
	if err != nil {
		return err
	}
	return c.Quit()
}

// SendOTP mails code to toEmail. The call returns once the message is
// accepted, ctx is done, or the configured timeout elapses.
func (n *EmailNotifier) SendOTP(ctx context.Context, toEmail, code string, ttl time.Duration) error {
	if !n.cfg.Enabled() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("empty recipient")
	}

	minutes := int(ttl.Minutes())
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", appName+" - Your OTP Code")
	m.SetBody("text/plain", fmt.Sprintf("Your OTP code is %s. It will expire in %d minutes.", code, minutes))
	m.AddAlternative("text/html", fmt.Sprintf("<p>Your OTP code is <b>%s</b>.</p><p>It will expire in %d minutes.</p>", code, minutes))

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- n.deliver(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
	case <-ctx.Done():
		return ErrSendTimeout
	}

	n.logger.Info("otp email sent", slog.String("to", toEmail))
	return nil
}
