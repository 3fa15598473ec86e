package auth

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	platformerrors "chat-server-go/internal/platform/errors"
)

// MaxPasswordBytes bounds the work a single hash can cost.
const MaxPasswordBytes = 1024

type registration struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,max=1024"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func validateRegistration(r registration) error {
	if len(r.Password) > MaxPasswordBytes {
		return platformerrors.New(platformerrors.KindValidation, "auth.Register", "password must be at most 1024 bytes")
	}
	err := getValidator().Struct(r)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return platformerrors.Wrap(platformerrors.KindValidation, "auth.Register", "invalid registration", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, strings.ToLower(fe.Field())+" "+describe(fe))
	}
	return platformerrors.Wrap(platformerrors.KindValidation, "auth.Register", strings.Join(messages, "; "), err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
