package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	authservice "storyloom/backend/internal/auth/service"
	notificationdomain "storyloom/backend/internal/notification/domain"
	notificationservice "storyloom/backend/internal/notification/service"
	"storyloom/backend/internal/otp"
	"storyloom/backend/internal/server/middleware"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"validation", invalidf("email is invalid"), http.StatusBadRequest, CodeValidation, "email is invalid"},
		{"duplicate email", authservice.ErrEmailAlreadyRegistered, http.StatusConflict, CodeConflict, "User already exists with this email"},
		{"otp not found", otp.ErrChallengeNotFound, http.StatusBadRequest, CodeOTPNotFound, "OTP not found, request a new one"},
		{"otp expired", otp.ErrChallengeExpired, http.StatusBadRequest, CodeOTPExpired, "OTP expired"},
		{"wrong code", otp.ErrInvalidCode, http.StatusBadRequest, CodeInvalidOTP, "Invalid OTP"},
		{"attempts exceeded", otp.ErrTooManyAttempts, http.StatusBadRequest, CodeAttemptsExceeded, "Too many incorrect attempts, request a new OTP"},
		{"dispatch wrapped", fmt.Errorf("%w: smtp down", otp.ErrDispatchFailed), http.StatusBadGateway, CodeTransportFailure, "Failed to send OTP email"},
		{"bad credentials", authservice.ErrInvalidCredentials, http.StatusUnauthorized, CodeUnauthorized, "Invalid email or password"},
		{"missing token", middleware.ErrMissingToken, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized access, token is missing"},
		{"unknown reset email", authservice.ErrUserNotFound, http.StatusNotFound, CodeNotFound, "User not found with this email"},
		{"password too short keeps detail", fmt.Errorf("%w: must be at least 6 characters", authservice.ErrPasswordTooShort), http.StatusBadRequest, CodeValidation, "password is too short: must be at least 6 characters"},
		{"recipient missing", notificationservice.ErrRecipientNotFound, http.StatusNotFound, CodeNotFound, "Recipient user not found"},
		{"user id missing", notificationservice.ErrUserIDRequired, http.StatusBadRequest, CodeBadRequest, "User ID is required"},
		{"foreign notification", notificationdomain.ErrNotificationNotFound, http.StatusNotFound, CodeNotFound, "Notification not found or you are not authorized to delete it"},
		{"oops wrapped sentinel", oops.Code("db").Wrap(otp.ErrInvalidCode), http.StatusBadRequest, CodeInvalidOTP, "Invalid OTP"},
		{"store failure", errors.New("connection refused"), http.StatusInternalServerError, CodeInternal, "Something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}
