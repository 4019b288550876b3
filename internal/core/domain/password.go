package domain

import (
	"regexp"
	"strings"
)

// PasswordSymbols is the set of symbols accepted by the password policy.
const PasswordSymbols = "@$!%*?&"

var (
	passwordCharset = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{8,}$`)
	hasLower        = regexp.MustCompile(`[a-z]`)
	hasUpper        = regexp.MustCompile(`[A-Z]`)
	hasDigit        = regexp.MustCompile(`\d`)
)

// ValidatePasswordPolicy enforces the complexity rule applied to accounts
// created by a receptionist: at least 8 characters drawn from letters, digits
// and PasswordSymbols, with at least one of each class.
func ValidatePasswordPolicy(pw string) error {
	if !passwordCharset.MatchString(pw) ||
		!hasLower.MatchString(pw) ||
		!hasUpper.MatchString(pw) ||
		!hasDigit.MatchString(pw) ||
		!strings.ContainsAny(pw, PasswordSymbols) {
		return ErrWeakPassword
	}
	return nil
}
