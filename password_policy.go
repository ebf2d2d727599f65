package actions

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
)

// PasswordMinLength is the minimum number of characters of a new password.
const PasswordMinLength = 10

// PasswordSpecialCharacters is the set a new password must draw from.
const PasswordSpecialCharacters = `!@#$%^&*(),.?":{}|<>`

var (
	passwordDigit   = regexp.MustCompile(`[0-9]`)
	passwordSpecial = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// Field level policy messages.
const (
	MessagePasswordTooShort  = "password must be at least 10 characters"
	MessagePasswordNoDigit   = "password must contain at least one number"
	MessagePasswordNoSpecial = "password must contain at least one special character"
	MessagePasswordMismatch  = "passwords do not match"
)

// PasswordResetForm is the payload of a new password submission.
type PasswordResetForm struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate checks the new password against the policy and the
// confirmation against the password.
func (f PasswordResetForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Password, passwordRules()...),
		validation.Field(&f.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(f.Password)),
		),
	)
}

// ValidatePassword checks a single password against the policy.
func ValidatePassword(password string) error {
	return validation.Validate(password, passwordRules()...)
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.RuneLength(PasswordMinLength, 0).Error(MessagePasswordTooShort),
		validation.Match(passwordDigit).Error(MessagePasswordNoDigit),
		validation.Match(passwordSpecial).Error(MessagePasswordNoSpecial),
	}
}

// ValidateStringEquals returns a rule that fails unless the value equals str.
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New(MessagePasswordMismatch)
		}
		return nil
	}
}

// FormatValidationErrors flattens validation errors into field messages.
// Errors that are not field errors are returned under "form".
func FormatValidationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		out := make(map[string]string, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			if fieldErr != nil {
				out[field] = fieldErr.Error()
			}
		}
		return out
	}

	return map[string]string{"form": err.Error()}
}
