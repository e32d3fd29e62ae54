package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/Ananth-NQI/mechlocator-backend/internal/utils"
)

const requiredMessage = "This field is required."

var (
	validate        = newValidator()
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	numericPattern  = regexp.MustCompile(`^[0-9]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}
	must("username_chars", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	must("phone_digits", func(fl validator.FieldLevel) bool {
		return len(utils.DigitsOnly(fl.Field().String())) >= 10
	})
	must("not_numeric", func(fl validator.FieldLevel) bool {
		return !numericPattern.MatchString(fl.Field().String())
	})
	return v
}

// FieldErrors maps a form field to the message for the first rule it
// failed.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// validateStruct runs the struct tags and converts failures to
// FieldErrors. A nil result means the struct is valid.
func validateStruct(s interface{}) (FieldErrors, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = fieldMessage(fe)
		}
	}
	return out, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return requiredMessage
	case "email":
		return "Enter a valid email address."
	case "username_chars":
		return "Username can only contain letters, numbers, and underscores."
	case "phone_digits":
		return "Please enter a valid phone number with at least 10 digits."
	case "not_numeric":
		return "This password is entirely numeric."
	case "latitude":
		return "Enter a latitude between -90 and 90."
	case "longitude":
		return "Enter a longitude between -180 and 180."
	case "url":
		return "Enter a valid URL."
	case "eqfield":
		return "The two password fields didn't match."
	case "min":
		switch fe.Field() {
		case "username":
			return "Username must be at least 3 characters long."
		case "password1":
			return fmt.Sprintf("This password is too short. It must contain at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "max":
		if s, ok := fe.Value().(string); ok {
			return fmt.Sprintf("Ensure this value has at most %s characters (it has %d).", fe.Param(), utf8.RuneCountInString(s))
		}
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	}
	return "Enter a valid value."
}
