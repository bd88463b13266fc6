package user

import (
	"strings"
	"unicode"

	"github.com/promptvault/promptvault/internal/apperr"
)

const minPasswordLength = 8

const specialChars = "@$!%*?&#^()[]{}-_=+.,;:"

// ValidatePassword enforces the registration password policy: minimum
// length plus at least one uppercase letter, lowercase letter, digit
// and special character.
func ValidatePassword(password string) error {
	if password == "" {
		return apperr.Validation("password is required")
	}
	if len(password) < minPasswordLength {
		return apperr.Validation("password must be at least 8 characters long")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	if !upper || !lower || !digit || !special {
		return apperr.Validation("password must include uppercase, lowercase, number, and special character")
	}
	return nil
}
