package auth

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var ErrUsernameWhitespace = errors.New("username must not contain whitespace")

type Credentials struct {
	Username string `validate:"required,min=3,max=32"`
	Password string `validate:"required,min=3,max=128"`
}

func ValidateCredentials(c Credentials) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if strings.IndexFunc(c.Username, unicode.IsSpace) >= 0 {
		return ErrUsernameWhitespace
	}
	return nil
}
