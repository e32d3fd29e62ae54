package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/metrics"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

// OTPSender delivers a one-time code to a user out of band.
type OTPSender interface {
	Channel() string
	SendOTP(ctx context.Context, user *models.User, otp *models.OTPCode) error
}

// LoginAlertSender notifies a user about a completed login.
type LoginAlertSender interface {
	SendLoginAlert(ctx context.Context, user *models.User, info LoginInfo) error
}

// OTPDispatcher picks the delivery channel per user: SMS when preferred
// and the user has a phone number, email otherwise.
type OTPDispatcher struct {
	email OTPSender
	sms   OTPSender
	log   *zap.Logger
}

// NewOTPDispatcher builds a dispatcher. sms may be nil.
func NewOTPDispatcher(email, sms OTPSender, log *zap.Logger) *OTPDispatcher {
	return &OTPDispatcher{email: email, sms: sms, log: log.Named("otp_dispatch")}
}

func (d *OTPDispatcher) Channel() string {
	if d.sms != nil {
		return d.sms.Channel()
	}
	return d.email.Channel()
}

func (d *OTPDispatcher) SendOTP(ctx context.Context, user *models.User, otp *models.OTPCode) error {
	sender := d.email
	if d.sms != nil && user.Profile != nil && user.Profile.Phone != "" {
		sender = d.sms
	}

	if err := sender.SendOTP(ctx, user, otp); err != nil {
		metrics.OTPDispatchTotal.WithLabelValues(sender.Channel(), "failed").Inc()
		d.log.Error("OTP dispatch failed",
			zap.String("channel", sender.Channel()),
			zap.Uint("user_id", user.ID),
			zap.Error(err),
		)
		return err
	}
	metrics.OTPDispatchTotal.WithLabelValues(sender.Channel(), "sent").Inc()
	return nil
}

// LogSender writes codes to the log instead of delivering them. It is
// only wired outside production when no real channel is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.Named("otp_console")}
}

func (s *LogSender) Channel() string { return "log" }

func (s *LogSender) SendOTP(ctx context.Context, user *models.User, otp *models.OTPCode) error {
	s.log.Warn("OTP not delivered, no channel configured",
		zap.String("username", user.Username),
		zap.String("purpose", otp.Purpose),
		zap.String("code", otp.Code),
	)
	return nil
}

func (s *LogSender) SendLoginAlert(ctx context.Context, user *models.User, info LoginInfo) error {
	s.log.Info("login alert", zap.String("username", user.Username), zap.String("ip", info.IP))
	return nil
}
