package server

import (
	"errors"
	"fmt"
	"net/http"

	authservice "storyloom/backend/internal/auth/service"
	notificationdomain "storyloom/backend/internal/notification/domain"
	notificationservice "storyloom/backend/internal/notification/service"
	"storyloom/backend/internal/otp"
	"storyloom/backend/internal/server/middleware"
	storydomain "storyloom/backend/internal/story/domain"
)

// Machine-readable error codes carried in the envelope.
const (
	CodeValidation       = "VALIDATION"
	CodeBadRequest       = "BAD_REQUEST"
	CodeConflict         = "CONFLICT"
	CodeNotFound         = "NOT_FOUND"
	CodeOTPNotFound      = "OTP_NOT_FOUND"
	CodeOTPExpired       = "OTP_EXPIRED"
	CodeInvalidOTP       = "INVALID_OTP"
	CodeAttemptsExceeded = "OTP_ATTEMPTS_EXCEEDED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeTransportFailure = "TRANSPORT_FAILURE"
	CodeInternal         = "INTERNAL"
)

// apiError is the HTTP form of a failure.
type apiError struct {
	Status  int
	Code    string
	Message string
}

// validationError is a boundary validation failure.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalidf(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// errorTable maps service sentinels to responses. Messages are the user-facing text.
var errorTable = []struct {
	target error
	resp   apiError
}{
	{authservice.ErrEmailAlreadyRegistered, apiError{http.StatusConflict, CodeConflict, "User already exists with this email"}},
	{authservice.ErrUsernameTaken, apiError{http.StatusConflict, CodeConflict, "Username is already taken"}},
	{authservice.ErrPasswordTooShort, apiError{http.StatusBadRequest, CodeValidation, ""}},
	{authservice.ErrSignupDetailsMissing, apiError{http.StatusBadRequest, CodeOTPNotFound, "OTP not found, request a new one"}},
	{otp.ErrChallengeNotFound, apiError{http.StatusBadRequest, CodeOTPNotFound, "OTP not found, request a new one"}},
	{otp.ErrChallengeExpired, apiError{http.StatusBadRequest, CodeOTPExpired, "OTP expired"}},
	{otp.ErrInvalidCode, apiError{http.StatusBadRequest, CodeInvalidOTP, "Invalid OTP"}},
	{otp.ErrTooManyAttempts, apiError{http.StatusBadRequest, CodeAttemptsExceeded, "Too many incorrect attempts, request a new OTP"}},
	{otp.ErrDispatchFailed, apiError{http.StatusBadGateway, CodeTransportFailure, "Failed to send OTP email"}},
	{authservice.ErrInvalidCredentials, apiError{http.StatusUnauthorized, CodeUnauthorized, "Invalid email or password"}},
	{authservice.ErrInvalidSession, apiError{http.StatusUnauthorized, CodeUnauthorized, "Unauthorized access, token is invalid"}},
	{authservice.ErrInvalidRefreshToken, apiError{http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired refresh token"}},
	{authservice.ErrRefreshTokenReuse, apiError{http.StatusUnauthorized, CodeUnauthorized, "Refresh token reuse detected, please sign in again"}},
	{middleware.ErrMissingToken, apiError{http.StatusUnauthorized, CodeUnauthorized, "Unauthorized access, token is missing"}},
	{authservice.ErrUserNotFound, apiError{http.StatusNotFound, CodeNotFound, "User not found with this email"}},
	{notificationservice.ErrUserIDRequired, apiError{http.StatusBadRequest, CodeBadRequest, "User ID is required"}},
	{notificationservice.ErrRecipientNotFound, apiError{http.StatusNotFound, CodeNotFound, "Recipient user not found"}},
	{notificationservice.ErrRecipientRequired, apiError{http.StatusBadRequest, CodeValidation, "Recipient email or user ID is required"}},
	{notificationservice.ErrStoryIDRequired, apiError{http.StatusBadRequest, CodeValidation, "Story ID is required"}},
	{notificationservice.ErrInvalidType, apiError{http.StatusBadRequest, CodeValidation, "Unknown notification type"}},
	{notificationservice.ErrNotificationIDRequired, apiError{http.StatusBadRequest, CodeBadRequest, "Notification ID is required"}},
	{notificationservice.ErrCharacterRequired, apiError{http.StatusBadRequest, CodeValidation, "Character is required when accepting a notification"}},
	{notificationdomain.ErrNotificationNotFound, apiError{http.StatusNotFound, CodeNotFound, "Notification not found or you are not authorized to delete it"}},
	{notificationdomain.ErrUnknownUser, apiError{http.StatusNotFound, CodeNotFound, "User not found"}},
	{storydomain.ErrStoryNotFound, apiError{http.StatusNotFound, CodeNotFound, "Story not found"}},
}

// mapError returns the response for err. Unknown errors become 500 without leaking details.
func mapError(err error) apiError {
	var ve *validationError
	if errors.As(err, &ve) {
		return apiError{http.StatusBadRequest, CodeValidation, ve.msg}
	}
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			resp := e.resp
			if resp.Message == "" {
				resp.Message = err.Error()
			}
			return resp
		}
	}
	return apiError{http.StatusInternalServerError, CodeInternal, "Something went wrong"}
}
