package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
)

var (
	ErrContactIncomplete = errors.New("contact form incomplete")
	ErrContactEmail      = errors.New("contact form email invalid")
)

// Messages shown to the visitor.
const (
	ContactIncompleteMessage = "Please fill in all required fields."
	ContactEmailMessage      = "Please enter a valid email address."
	ContactThanks            = "Thank you for your message! We will get back to you within 24 hours."
)

// ContactInput is the public contact form.
type ContactInput struct {
	FirstName  string `json:"firstName" form:"firstName" validate:"required"`
	LastName   string `json:"lastName" form:"lastName" validate:"required"`
	Email      string `json:"email" form:"email" validate:"required,email"`
	Phone      string `json:"phone" form:"phone"`
	Subject    string `json:"subject" form:"subject" validate:"required"`
	Message    string `json:"message" form:"message" validate:"required"`
	Newsletter string `json:"-" form:"newsletter"`
}

type ContactService struct {
	activity *ActivityLogger
}

func NewContactService(activity *ActivityLogger) *ContactService {
	return &ContactService{activity: activity}
}

// Submit validates the form and records it. Missing fields take
// precedence over a malformed email.
func (s *ContactService) Submit(ctx context.Context, in *ContactInput, meta RequestMeta) error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	errs, err := validateStruct(in)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		for _, msg := range errs {
			if msg == requiredMessage {
				return ErrContactIncomplete
			}
		}
		return ErrContactEmail
	}

	if s.activity != nil {
		s.activity.Log(ctx, meta, models.ActionContact, fmt.Sprintf("Contact form submitted: %s from %s", in.Subject, in.Email))
	}
	return nil
}
