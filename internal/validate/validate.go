package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/models"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 6

// MaxStrength is the highest score PasswordStrength returns.
const MaxStrength = 3

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	lowerRe  = regexp.MustCompile(`[a-z]`)
	upperRe  = regexp.MustCompile(`[A-Z]`)
	digitRe  = regexp.MustCompile(`[0-9]`)
	symbolRe = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// User-facing validation messages.
const (
	MsgFillAllFields    = "Please fill in all fields"
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordTooShort = "Password must be at least 6 characters long"
	MsgPasswordMismatch = "Passwords do not match"
	MsgAcceptTerms      = "Please accept the terms and conditions"
)

// IsValidEmail reports whether s looks like local@domain.tld.
func IsValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// PasswordStrength scores s from 0 to 3 on length and character variety.
func PasswordStrength(s string) int {
	score := 0
	n := utf8.RuneCountInString(s)
	if n >= 8 {
		score++
	}
	if n >= 12 {
		score++
	}
	for _, re := range []*regexp.Regexp{lowerRe, upperRe, digitRe, symbolRe} {
		if re.MatchString(s) {
			score++
		}
	}
	return min(score, MaxStrength)
}

// StrengthLabel describes a PasswordStrength score.
func StrengthLabel(score int) string {
	switch {
	case score >= 3:
		return "Strong password"
	case score == 2:
		return "Medium strength"
	default:
		return "Weak password"
	}
}

// PasswordsMatch reports whether the password and its confirmation agree.
func PasswordsMatch(a, b string) bool {
	return a == b
}

// Login checks the login form. The email is trimmed before checking.
func Login(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errs.Validation(MsgFillAllFields)
	}
	if !IsValidEmail(email) {
		return errs.Validation(MsgInvalidEmail)
	}
	return nil
}

// Signup checks the signup form; the first failing check is returned.
func Signup(f models.SignupForm) error {
	name := strings.TrimSpace(f.Name)
	email := strings.TrimSpace(f.Email)

	if name == "" || email == "" || f.Password == "" || f.ConfirmPassword == "" {
		return errs.Validation(MsgFillAllFields)
	}
	if !IsValidEmail(email) {
		return errs.Validation(MsgInvalidEmail)
	}
	if utf8.RuneCountInString(f.Password) < MinPasswordLength {
		return errs.Validation(MsgPasswordTooShort)
	}
	if !PasswordsMatch(f.Password, f.ConfirmPassword) {
		return errs.Validation(MsgPasswordMismatch)
	}
	if !f.AcceptedTerms {
		return errs.Validation(MsgAcceptTerms)
	}
	return nil
}
