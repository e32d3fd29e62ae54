package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Ananth-NQI/mechlocator-backend/internal/config"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

var ErrMailNotConfigured = errors.New("email delivery is not configured")

// LoginInfo describes a completed login for the alert email.
type LoginInfo struct {
	IP        string
	UserAgent string
	At        time.Time
}

// OTPSubject returns the email subject for an OTP purpose.
func OTPSubject(purpose string) string {
	switch purpose {
	case models.PurposeLogin:
		return "MechLocator - Your Login OTP Code"
	case models.PurposePasswordReset:
		return "MechLocator - Password Reset OTP"
	case models.PurposeEmailVerification:
		return "MechLocator - Email Verification OTP"
	}
	return "MechLocator - OTP Code"
}

const loginAlertSubject = "MechLocator - New Login Detected"

var (
	otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
<h2>{{.AppName}} {{.Purpose}} Code</h2>
<p>Hello {{.Name}},</p>
<p>Your one-time code is:</p>
<p style="font-size: 28px; letter-spacing: 6px;"><strong>{{.Code}}</strong></p>
<p>This code expires in {{.ExpiresIn}}. If you did not request it, you can ignore this email.</p>
<p>The {{.AppName}} Team</p>
</body></html>`))

	loginAlertTemplate = template.Must(template.New("login_alert").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
<h2>New login to your {{.AppName}} account</h2>
<p>Hello {{.Name}},</p>
<p>We noticed a new login to your account.</p>
<ul>
<li>Time: {{.Time}}</li>
<li>IP address: {{.IP}}</li>
<li>Device: {{.UserAgent}}</li>
</ul>
<p>If this was not you, please change your password immediately.</p>
<p>The {{.AppName}} Team</p>
</body></html>`))
)

// PurposeTitle renders an OTP purpose for display, e.g. "Password Reset".
func PurposeTitle(purpose string) string {
	// Casers keep state, so one is built per call.
	return cases.Title(language.English).String(strings.ReplaceAll(purpose, "_", " "))
}

// Mailer sends OTP codes and login alerts over SMTP.
type Mailer struct {
	cfg  config.EmailConfig
	log  *zap.Logger
	send func(ctx context.Context, to string, msg []byte) error
}

func NewMailer(cfg config.EmailConfig, log *zap.Logger) *Mailer {
	m := &Mailer{cfg: cfg, log: log.Named("mailer")}
	m.send = m.sendSMTP
	return m
}

func (m *Mailer) Channel() string { return "email" }

func (m *Mailer) SendOTP(ctx context.Context, user *models.User, otp *models.OTPCode) error {
	minutes := int(otp.ExpiresAt.Sub(otp.CreatedAt).Round(time.Minute) / time.Minute)

	var body bytes.Buffer
	err := otpTemplate.Execute(&body, map[string]string{
		"AppName":   "MechLocator",
		"Purpose":   PurposeTitle(otp.Purpose),
		"Name":      user.DisplayName(),
		"Code":      otp.Code,
		"ExpiresIn": fmt.Sprintf("%d minutes", minutes),
	})
	if err != nil {
		return fmt.Errorf("render OTP email: %w", err)
	}

	if err := m.deliver(ctx, user.Email, OTPSubject(otp.Purpose), body.String()); err != nil {
		return err
	}
	m.log.Info("OTP email sent", zap.Uint("user_id", user.ID), zap.String("purpose", otp.Purpose))
	return nil
}

func (m *Mailer) SendLoginAlert(ctx context.Context, user *models.User, info LoginInfo) error {
	var body bytes.Buffer
	err := loginAlertTemplate.Execute(&body, map[string]string{
		"AppName":   "MechLocator",
		"Name":      user.DisplayName(),
		"Time":      info.At.UTC().Format("2006-01-02 15:04:05 UTC"),
		"IP":        info.IP,
		"UserAgent": info.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("render login alert: %w", err)
	}

	if err := m.deliver(ctx, user.Email, loginAlertSubject, body.String()); err != nil {
		return err
	}
	m.log.Info("login alert sent", zap.Uint("user_id", user.ID))
	return nil
}

func (m *Mailer) deliver(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return fmt.Errorf("no email address on file")
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", m.cfg.From),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Date: %s", time.Now().Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		htmlBody,
	}, "\r\n")

	if err := m.send(ctx, to, []byte(msg)); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// sendSMTP speaks SMTP directly so that every step runs under a deadline.
// Port 465 uses implicit TLS, anything else STARTTLS when offered.
func (m *Mailer) sendSMTP(ctx context.Context, to string, msg []byte) error {
	if !m.cfg.Configured() {
		return ErrMailNotConfigured
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: 8 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))

	if m.cfg.Port == 465 {
		conn = tls.Client(conn, &tls.Config{ServerName: m.cfg.Host})
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Quit() }()

	if m.cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return err
			}
		}
	}

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	if err := c.Auth(auth); err != nil {
		return err
	}

	from := m.cfg.From
	if parsed, err := mail.ParseAddress(from); err == nil {
		from = parsed.Address
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
