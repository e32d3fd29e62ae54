package services

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/mechlocator-backend/internal/config"
	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

// messageCreator is the part of the Twilio REST client we use.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSService delivers OTP codes by text message through Twilio.
type SMSService struct {
	api            messageCreator
	from           string
	statusCallback string
	log            *zap.Logger
}

// NewSMSService creates a Twilio-backed sender.
func NewSMSService(cfg config.TwilioConfig, log *zap.Logger) (*SMSService, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &SMSService{
		api:            client.Api,
		from:           cfg.PhoneNumber,
		statusCallback: cfg.StatusCallbackURL,
		log:            log.Named("sms"),
	}, nil
}

func (s *SMSService) Channel() string { return "sms" }

// SendSMS sends a plain text message.
func (s *SMSService) SendSMS(to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(s.from)
	params.SetTo(to)
	params.SetBody(body)
	if s.statusCallback != "" {
		params.SetStatusCallback(s.statusCallback)
	}

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return "", fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	return sid, nil
}

// SendOTP texts the code to the phone number on the user's profile.
func (s *SMSService) SendOTP(ctx context.Context, user *models.User, otp *models.OTPCode) error {
	if user.Profile == nil || user.Profile.Phone == "" {
		return fmt.Errorf("user %d has no phone number", user.ID)
	}

	minutes := int(otp.ExpiresAt.Sub(otp.CreatedAt).Minutes())
	body := fmt.Sprintf("Your MechLocator %s code is %s. It expires in %d minutes.",
		PurposeTitle(otp.Purpose), otp.Code, minutes)

	sid, err := s.SendSMS(user.Profile.Phone, body)
	if err != nil {
		return err
	}
	s.log.Info("OTP SMS sent", zap.Uint("user_id", user.ID), zap.String("sid", sid))
	return nil
}
