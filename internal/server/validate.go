package server

import (
	"net/mail"
	"strings"

	notificationdomain "storyloom/backend/internal/notification/domain"
	otpdomain "storyloom/backend/internal/otp/domain"
	"storyloom/backend/internal/security"
)

const (
	maxUsernameLength = 30
	otpLength         = 6
)

// validateEmail requires a single bare address.
func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalidf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return invalidf("invalid email format")
	}
	return nil
}

func validateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return invalidf("username is required")
	}
	if len(username) > maxUsernameLength {
		return invalidf("username must be at most %d characters", maxUsernameLength)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return invalidf("username must not contain whitespace")
	}
	return nil
}

func validatePassword(password string, minLength int) error {
	if password == "" {
		return invalidf("password is required")
	}
	if len(password) < minLength {
		return invalidf("password must be at least %d characters", minLength)
	}
	if len(password) > security.MaxPasswordBytes {
		return invalidf("password must be at most %d bytes", security.MaxPasswordBytes)
	}
	return nil
}

// validateOTP requires exactly six digits after trimming.
func validateOTP(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return invalidf("otp is required")
	}
	if len(code) != otpLength {
		return invalidf("otp must be %d digits", otpLength)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return invalidf("otp must be %d digits", otpLength)
		}
	}
	return nil
}

func validateNotificationType(t string) error {
	if t == "" {
		return nil
	}
	if !notificationdomain.Type(t).Valid() {
		return invalidf("unknown notification type %q", t)
	}
	return nil
}

func validatePurpose(p string) error {
	if !otpdomain.Purpose(p).Valid() {
		return invalidf("purpose must be one of signup, login, forgot_password")
	}
	return nil
}
