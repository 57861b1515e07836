package service

import (
	"fmt"
	"strings"
	"unicode"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 12

// ValidationError is a field-level rejection of malformed input, raised
// before any storage access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// normalizeEmail lowercases and trims an email so all comparisons and
// lookups treat Email@X.com and email@x.com as the same identity.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return &ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	return nil
}

// validatePassword enforces the confirmation match, minimum length, and
// character-class composition.
func validatePassword(password, confirm string) error {
	if password != confirm {
		return &ValidationError{Field: "passwordConfirm", Message: "passwords do not match"}
	}
	if len(password) < MinPasswordLength {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength),
		}
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return &ValidationError{
			Field:   "password",
			Message: "must contain uppercase, lowercase, digit, and symbol characters",
		}
	}
	return nil
}
