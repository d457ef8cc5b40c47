package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex       = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	displayNameRegex = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} _'\-]*$`)
)

const (
	MinPasswordLength    = 8
	MinDisplayNameLength = 2
	MaxDisplayNameLength = 24
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < MinPasswordLength {
		return ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}
	return nil
}

// ValidateDisplayName checks the public name shown on the leaderboard.
// Profanity is checked separately against the bad-word table.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "displayName", Message: "display name is required"}
	}
	n := utf8.RuneCountInString(name)
	if n < MinDisplayNameLength || n > MaxDisplayNameLength {
		return ValidationError{
			Field:   "displayName",
			Message: fmt.Sprintf("display name must be %d to %d characters", MinDisplayNameLength, MaxDisplayNameLength),
		}
	}
	if !displayNameRegex.MatchString(name) {
		return ValidationError{Field: "displayName", Message: "display name may only contain letters, digits, spaces, _ ' and -"}
	}
	return nil
}
