package server

import (
	"context"
	"net/http"
	"time"

	authservice "storyloom/backend/internal/auth/service"
	userdomain "storyloom/backend/internal/user/domain"
)

// AuthAPI is the auth workflow used by the HTTP handlers.
type AuthAPI interface {
	RequestSignupOTP(ctx context.Context, req authservice.SignupRequest) (*authservice.OTPDispatch, error)
	VerifySignupOTP(ctx context.Context, email, code string) (*userdomain.User, error)
	RequestLoginOTP(ctx context.Context, email, password string) (*authservice.OTPDispatch, error)
	VerifyLoginOTP(ctx context.Context, email, code string) (*authservice.LoginResult, error)
	RequestPasswordResetOTP(ctx context.Context, email string) (*authservice.OTPDispatch, error)
	VerifyPasswordReset(ctx context.Context, email, code, newPassword string) error
	Refresh(ctx context.Context, refreshToken string) (*authservice.LoginResult, error)
	Logout(ctx context.Context) error
	AuthenticateToken(ctx context.Context, accessToken string) (userID, sessionID string, err error)
}

type signupOTPRequest struct {
	Email          string `json:"email"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	ProfilePicture string `json:"profilePicture"`
}

type loginOTPRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetOTPRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type otpSentResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type sessionResponse struct {
	User         userdomain.PublicProfile `json:"user"`
	AccessToken  string                   `json:"accessToken"`
	RefreshToken string                   `json:"refreshToken"`
	ExpiresAt    time.Time                `json:"expiresAt"`
}

type authHandler struct {
	auth              AuthAPI
	passwordMinLength int
	errs              errorWriter
}

func (h *authHandler) sendSignupOTP(w http.ResponseWriter, r *http.Request) {
	var req signupOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := firstError(
		validateEmail(req.Email),
		validateUsername(req.Username),
		validatePassword(req.Password, h.passwordMinLength),
	); err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.auth.RequestSignupOTP(r.Context(), authservice.SignupRequest{
		Email:          req.Email,
		Username:       req.Username,
		Password:       req.Password,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Signup OTP sent successfully", otpSentResponse{Email: d.Email, ExpiresAt: d.ExpiresAt})
}

func (h *authHandler) verifySignupOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := firstError(validateEmail(req.Email), validateOTP(req.OTP)); err != nil {
		h.errs.write(w, r, err)
		return
	}
	u, err := h.auth.VerifySignupOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "User registered successfully", u.Public())
}

func (h *authHandler) sendLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req loginOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := firstError(validateEmail(req.Email), requirePassword(req.Password)); err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.auth.RequestLoginOTP(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login OTP sent successfully", otpSentResponse{Email: d.Email, ExpiresAt: d.ExpiresAt})
}

func (h *authHandler) verifyLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := firstError(validateEmail(req.Email), validateOTP(req.OTP)); err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.auth.VerifyLoginOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful", toSessionResponse(res))
}

func (h *authHandler) sendResetOTP(w http.ResponseWriter, r *http.Request) {
	var req resetOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := validateEmail(req.Email); err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.auth.RequestPasswordResetOTP(r.Context(), req.Email)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "OTP has been sent", otpSentResponse{Email: d.Email, ExpiresAt: d.ExpiresAt})
}

func (h *authHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := firstError(
		validateEmail(req.Email),
		validateOTP(req.OTP),
		validatePassword(req.NewPassword, h.passwordMinLength),
	); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.auth.VerifyPasswordReset(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Password reset successfully", nil)
}

func (h *authHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		h.errs.write(w, r, invalidf("refreshToken is required"))
		return
	}
	res, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "New access token generated successfully", toSessionResponse(res))
}

func (h *authHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "User logged out successfully", nil)
}

func toSessionResponse(res *authservice.LoginResult) sessionResponse {
	out := sessionResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
	}
	if res.User != nil {
		out.User = res.User.Public()
	}
	return out
}

func requirePassword(password string) error {
	if password == "" {
		return invalidf("password is required")
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
