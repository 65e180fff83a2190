package task

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrUsernameRequired = fmt.Errorf("%w: username is required", ErrInvalidInput)
	ErrInvalidEmail     = fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	ErrTextRequired     = fmt.Errorf("%w: text is required", ErrInvalidInput)
	ErrNoChanges        = fmt.Errorf("%w: no changes provided", ErrInvalidInput)
)

// ValidateEmail проверяет формат email (local@domain.tld)
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return ErrInvalidEmail
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func validateNewTask(username, email, text string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameRequired
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return ErrTextRequired
	}
	return nil
}
