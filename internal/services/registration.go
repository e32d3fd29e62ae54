package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ananth-NQI/mechlocator-backend/internal/models"
	"github.com/Ananth-NQI/mechlocator-backend/internal/storage"
)

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

// RegistrationInput is the sign-up form.
type RegistrationInput struct {
	Username  string `json:"username" form:"username" validate:"required,min=3,username_chars,max=150"`
	Email     string `json:"email" form:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" form:"first_name" validate:"required,max=30"`
	LastName  string `json:"last_name" form:"last_name" validate:"required,max=30"`
	Phone     string `json:"phone" form:"phone" validate:"omitempty,max=15,phone_digits"`
	Password1 string `json:"password1" form:"password1" validate:"required,min=8,max=72,not_numeric"`
	Password2 string `json:"password2" form:"password2" validate:"required,eqfield=Password1"`
}

// RegistrationFields lists the form fields in display order.
var RegistrationFields = []string{"username", "first_name", "last_name", "email", "phone", "password1", "password2"}

func (in *RegistrationInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
}

type RegistrationService struct {
	store    storage.Store
	activity *ActivityLogger
	log      *zap.Logger
}

func NewRegistrationService(store storage.Store, activity *ActivityLogger, log *zap.Logger) *RegistrationService {
	return &RegistrationService{store: store, activity: activity, log: log.Named("registration")}
}

// Validate checks every field and returns the first failing rule for
// each. Uniqueness is only checked for fields that passed their format
// rules.
func (s *RegistrationService) Validate(ctx context.Context, in *RegistrationInput) (FieldErrors, error) {
	in.normalize()

	errs, err := validateStruct(in)
	if err != nil {
		return nil, err
	}
	if errs == nil {
		errs = FieldErrors{}
	}

	if _, bad := errs["username"]; !bad {
		exists, err := s.store.UsernameExists(ctx, in.Username)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if exists {
			errs["username"] = "A user with that username already exists."
		}
	}
	if _, bad := errs["email"]; !bad {
		exists, err := s.store.EmailExists(ctx, in.Email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if exists {
			errs["email"] = "This email address is already registered."
		}
	}

	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

// Register validates the form and creates the user with its profile.
// Validation failures are returned as FieldErrors.
func (s *RegistrationService) Register(ctx context.Context, in *RegistrationInput, meta RequestMeta) (*models.User, error) {
	errs, err := s.Validate(ctx, in)
	if err != nil {
		return nil, err
	}
	if errs != nil {
		return nil, errs
	}

	hash, err := HashPassword(in.Password1)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsActive:     true,
	}
	profile := &models.UserProfile{Phone: in.Phone}

	if err := s.store.CreateUserWithProfile(ctx, user, profile); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// Lost a race with a concurrent sign-up.
			return nil, FieldErrors{"username": "A user with that username or email already exists."}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	if s.activity != nil {
		meta.UserID = &user.ID
		s.activity.Log(ctx, meta, models.ActionRegister, fmt.Sprintf("New user registered: %s", user.Username))
	}
	return user, nil
}

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
