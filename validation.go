package authsync

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type credentials struct {
	Email    string
	Password string
}

func (c credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&c.Password, validation.Required, validation.Length(6, 72)),
	)
}

func validateCredentials(email, password string) error {
	if err := (credentials{Email: email, Password: password}).Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid credentials")
	}
	return nil
}

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid email address")
	}
	return nil
}

func validatePatch(patch ProfilePatch) error {
	if patch.IsZero() {
		return goerrors.New("empty profile patch", goerrors.CategoryBadInput)
	}
	if patch.Email != nil {
		if err := validateEmail(*patch.Email); err != nil {
			return err
		}
	}
	if patch.TestsRemaining != nil && *patch.TestsRemaining < 0 {
		return goerrors.New("tests remaining cannot be negative", goerrors.CategoryBadInput)
	}
	return nil
}
