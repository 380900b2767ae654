// Package email renders and delivers the account security emails
package email

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"medqueue/internal/config"
	"medqueue/internal/logger"
	"medqueue/internal/metrics"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no SMTP server is configured
var ErrNotConfigured = errors.New("email delivery is not configured")

type deliverFunc func(ctx context.Context, to string, msg []byte) error

// Service sends multipart emails over SMTP
type Service struct {
	config  config.EmailConfig
	log     *zap.Logger
	deliver deliverFunc
}

// NewService creates an SMTP backed email service
func NewService(cfg config.EmailConfig, log *zap.Logger) *Service {
	s := &Service{
		config: cfg,
		log:    logger.WithComponent(log, "email"),
	}
	s.deliver = s.sendSMTP
	return s
}

// SendVerificationCode sends a two-factor login code
func (s *Service) SendVerificationCode(ctx context.Context, to, username, code string, expiresIn time.Duration) error {
	return s.sendTemplate(ctx, to, templateVerificationCode, templateData{
		Username:  username,
		Code:      code,
		ExpiresIn: humanDuration(expiresIn),
	})
}

// SendAccountLocked tells the owner their account is locked until unlockAt
func (s *Service) SendAccountLocked(ctx context.Context, to, username string, unlockAt time.Time) error {
	return s.sendTemplate(ctx, to, templateAccountLocked, templateData{
		Username: username,
		UnlockAt: unlockAt.UTC().Format("2006-01-02 15:04 MST"),
	})
}

// SendPasswordResetCode sends a password reset code
func (s *Service) SendPasswordResetCode(ctx context.Context, to, username, code string, expiresIn time.Duration) error {
	return s.sendTemplate(ctx, to, templatePasswordReset, templateData{
		Username:  username,
		Code:      code,
		ExpiresIn: humanDuration(expiresIn),
	})
}

func (s *Service) sendTemplate(ctx context.Context, to, name string, data templateData) (err error) {
	defer func() {
		metrics.EmailDeliveriesTotal.WithLabelValues(name, metrics.Status(err)).Inc()
	}()

	if !s.config.Enabled() {
		return ErrNotConfigured
	}

	msg, err := render(name, data)
	if err != nil {
		return err
	}
	return s.Send(ctx, to, msg.Subject, msg.HTML, msg.Text)
}

// Send delivers a message with HTML and plain text alternatives
func (s *Service) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if !s.config.Enabled() {
		return ErrNotConfigured
	}

	raw, err := buildMessage(s.config.FromAddress, to, subject, htmlBody, textBody)
	if err != nil {
		return err
	}

	s.log.Debug("sending email",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("smtp_host", s.config.SMTPHost),
	)
	if err := s.deliver(ctx, to, raw); err != nil {
		s.log.Warn("failed to send email", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody, textBody string) ([]byte, error) {
	boundary, err := newBoundary()
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes(), nil
}

func newBoundary() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate boundary: %w", err)
	}
	return "medqueue-" + hex.EncodeToString(buf), nil
}

// sendSMTP opens a connection per message. The context deadline bounds the
// whole exchange.
func (s *Service) sendSMTP(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(s.config.SMTPHost, strconv.Itoa(s.config.SMTPPort))

	dialer := &net.Dialer{Timeout: s.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	deadline := time.Now().Add(s.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.SMTPHost}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	if s.config.SMTPUsername != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate with SMTP server: %w", err)
		}
	}

	if err := client.Mail(s.config.FromAddress); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to add recipient %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message writer: %w", err)
	}
	return client.Quit()
}
