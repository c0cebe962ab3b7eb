package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storyloom/backend/internal/audit"
	auditdomain "storyloom/backend/internal/audit/domain"
	"storyloom/backend/internal/otp"
	otpdomain "storyloom/backend/internal/otp/domain"
	"storyloom/backend/internal/security"
	"storyloom/backend/internal/server/middleware"
	sessiondomain "storyloom/backend/internal/session/domain"
	userdomain "storyloom/backend/internal/user/domain"
)

// Sentinel errors for the auth service; the HTTP layer maps them to status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrUsernameTaken          = errors.New("username already taken")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrUserNotFound           = errors.New("no account registered with this email")
	ErrPasswordTooShort       = errors.New("password is too short")
	ErrInvalidSession         = errors.New("session is invalid or has expired")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse      = errors.New("refresh token reuse detected; all sessions revoked")
	ErrSignupDetailsMissing   = errors.New("signup details missing, request a new code")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllSessionsByUser(ctx context.Context, userID string) error
	// RotateRefreshToken swaps the refresh jti only if it still equals oldJti and reports whether it did.
	RotateRefreshToken(ctx context.Context, sessionID, oldJti, newJti, refreshTokenHash string) (bool, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// OTPIssuer issues and sends one-time codes.
type OTPIssuer interface {
	Request(ctx context.Context, email string, purpose otpdomain.Purpose, payload *otpdomain.Payload) (time.Time, error)
	TTL() time.Duration
}

// OTPVerifier checks a submitted code and runs the completion step on success.
type OTPVerifier interface {
	Verify(ctx context.Context, email string, purpose otpdomain.Purpose, code string, complete otp.CompleteFunc) error
}

// Config holds the auth policy knobs.
type Config struct {
	PasswordMinLength int
	// ConcealUnknownResetEmail makes RequestPasswordResetOTP report success for unknown emails
	// instead of ErrUserNotFound.
	ConcealUnknownResetEmail bool
}

// SignupRequest is the first phase of signup.
type SignupRequest struct {
	Email          string
	Username       string
	Password       string
	ProfilePicture string
}

// OTPDispatch reports where a code was sent and until when it is valid.
type OTPDispatch struct {
	Email     string
	ExpiresAt time.Time
}

// LoginResult holds the session tokens issued after a verified login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	SessionID    string
	User         *userdomain.User
}

// AuthService implements the OTP-gated signup, login, and password reset flows plus session
// refresh, logout, and bearer authentication.
type AuthService struct {
	userRepo    UserRepo
	sessionRepo SessionRepo
	issuer      OTPIssuer
	verifier    OTPVerifier
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	audit       audit.AuditLogger
	cfg         Config
	now         func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. auditLogger may be nil.
func NewAuthService(
	userRepo UserRepo,
	sessionRepo SessionRepo,
	issuer OTPIssuer,
	verifier OTPVerifier,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	auditLogger audit.AuditLogger,
	cfg Config,
) *AuthService {
	if cfg.PasswordMinLength <= 0 {
		cfg.PasswordMinLength = 6
	}
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		issuer:      issuer,
		verifier:    verifier,
		hasher:      hasher,
		tokens:      tokens,
		audit:       auditLogger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RequestSignupOTP checks that the email and username are free, hashes the password, and sends a
// signup code. The pending registration travels with the challenge.
func (s *AuthService) RequestSignupOTP(ctx context.Context, req SignupRequest) (*OTPDispatch, error) {
	email := userdomain.NormalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	if err := s.checkPassword(req.Password); err != nil {
		return nil, err
	}
	if err := s.checkAvailable(ctx, email, username); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	payload := &otpdomain.Payload{
		Username:       username,
		PasswordHash:   hashed,
		ProfilePicture: strings.TrimSpace(req.ProfilePicture),
	}
	expiresAt, err := s.issuer.Request(ctx, email, otpdomain.PurposeSignup, payload)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, "", audit.ActionOTPRequested, string(otpdomain.PurposeSignup))
	return &OTPDispatch{Email: email, ExpiresAt: expiresAt}, nil
}

// VerifySignupOTP consumes the signup code and creates the account from the pending registration.
// Email and username uniqueness are checked again since another signup may have finished meanwhile.
func (s *AuthService) VerifySignupOTP(ctx context.Context, email, code string) (*userdomain.User, error) {
	email = userdomain.NormalizeEmail(email)
	var created *userdomain.User
	err := s.verifier.Verify(ctx, email, otpdomain.PurposeSignup, code, func(ctx context.Context, c *otpdomain.Challenge) error {
		if c.Payload == nil {
			return ErrSignupDetailsMissing
		}
		if err := s.checkAvailable(ctx, email, c.Payload.Username); err != nil {
			return err
		}
		now := s.now()
		u := &userdomain.User{
			ID:             uuid.New().String(),
			Email:          email,
			Username:       c.Payload.Username,
			PasswordHash:   c.Payload.PasswordHash,
			ProfilePicture: c.Payload.ProfilePicture,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := u.Validate(); err != nil {
			return err
		}
		if err := s.userRepo.Create(ctx, u); err != nil {
			return mapDuplicate(err)
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, created.ID, audit.ActionSignupCompleted, "user")
	return created, nil
}

// RequestLoginOTP checks the password and sends a login code. Unknown emails and wrong passwords
// both yield ErrInvalidCredentials.
func (s *AuthService) RequestLoginOTP(ctx context.Context, email, password string) (*OTPDispatch, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.logEvent(ctx, "", audit.ActionLoginFailure, "unknown_email")
		return nil, ErrInvalidCredentials
	}
	ok, err := s.hasher.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logEvent(ctx, user.ID, audit.ActionLoginFailure, "password")
		return nil, ErrInvalidCredentials
	}
	expiresAt, err := s.issuer.Request(ctx, email, otpdomain.PurposeLogin, nil)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, audit.ActionOTPRequested, string(otpdomain.PurposeLogin))
	return &OTPDispatch{Email: email, ExpiresAt: expiresAt}, nil
}

// VerifyLoginOTP consumes the login code and opens a session for the account.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	email = userdomain.NormalizeEmail(email)
	var result *LoginResult
	err := s.verifier.Verify(ctx, email, otpdomain.PurposeLogin, code, func(ctx context.Context, c *otpdomain.Challenge) error {
		user, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrInvalidCredentials
		}
		result, err = s.openSession(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, result.User.ID, audit.ActionLoginSuccess, "session")
	return result, nil
}

// RequestPasswordResetOTP sends a reset code. Unknown emails fail with ErrUserNotFound unless
// ConcealUnknownResetEmail is set, in which case the call reports success without sending anything.
func (s *AuthService) RequestPasswordResetOTP(ctx context.Context, email string) (*OTPDispatch, error) {
	email = userdomain.NormalizeEmail(email)
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if s.cfg.ConcealUnknownResetEmail {
			return &OTPDispatch{Email: email, ExpiresAt: s.now().Add(s.issuer.TTL())}, nil
		}
		return nil, ErrUserNotFound
	}
	expiresAt, err := s.issuer.Request(ctx, email, otpdomain.PurposeForgotPassword, nil)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, audit.ActionOTPRequested, string(otpdomain.PurposeForgotPassword))
	return &OTPDispatch{Email: email, ExpiresAt: expiresAt}, nil
}

// VerifyPasswordReset consumes the reset code, overwrites the password, and revokes every session
// of the account. The new password is checked before the code so a valid code is never spent on a
// password that would be rejected.
func (s *AuthService) VerifyPasswordReset(ctx context.Context, email, code, newPassword string) error {
	email = userdomain.NormalizeEmail(email)
	if err := s.checkPassword(newPassword); err != nil {
		return err
	}
	hashed, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}
	var userID string
	err = s.verifier.Verify(ctx, email, otpdomain.PurposeForgotPassword, code, func(ctx context.Context, c *otpdomain.Challenge) error {
		user, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if err := s.userRepo.UpdatePassword(ctx, user.ID, hashed); err != nil {
			return err
		}
		userID = user.ID
		return s.sessionRepo.RevokeAllSessionsByUser(ctx, user.ID)
	})
	if err != nil {
		return err
	}
	s.logEvent(ctx, userID, audit.ActionPasswordReset, "user")
	return nil
}

// Refresh validates the refresh token, rotates it, and returns new tokens. Presenting an already
// rotated refresh token revokes every session of the user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	sessionID, jti, userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if sess == nil || !sess.Active(now) || sess.UserID != userID {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != jti {
		_ = s.sessionRepo.RevokeAllSessionsByUser(ctx, userID)
		return nil, ErrRefreshTokenReuse
	}
	if sess.RefreshTokenHash != "" && !security.DigestEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}
	_ = s.sessionRepo.UpdateLastSeen(ctx, sessionID, now)
	newRefresh, newJti, _, err := s.tokens.IssueRefresh(sessionID, userID)
	if err != nil {
		return nil, err
	}
	rotated, err := s.sessionRepo.RotateRefreshToken(ctx, sessionID, jti, newJti, security.Digest(newRefresh))
	if err != nil {
		return nil, err
	}
	if !rotated {
		// Another refresh with the same token won the swap.
		_ = s.sessionRepo.RevokeAllSessionsByUser(ctx, userID)
		return nil, ErrRefreshTokenReuse
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(sessionID, subjectOf(user))
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExp,
		SessionID:    sessionID,
		User:         user,
	}, nil
}

// Logout revokes the session bound to the bearer token in ctx. Without one it is a no-op.
func (s *AuthService) Logout(ctx context.Context) error {
	sessionID, ok := middleware.GetSessionID(ctx)
	if !ok || sessionID == "" {
		return nil
	}
	if err := s.sessionRepo.Revoke(ctx, sessionID); err != nil {
		return err
	}
	userID, _ := middleware.GetUserID(ctx)
	s.logEvent(ctx, userID, audit.ActionLogout, "session")
	return nil
}

// AuthenticateToken validates an access token and confirms its session is still active.
func (s *AuthService) AuthenticateToken(ctx context.Context, accessToken string) (string, string, error) {
	sessionID, sub, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return "", "", ErrInvalidSession
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	now := s.now()
	if sess == nil || !sess.Active(now) || sess.UserID != sub.UserID {
		return "", "", ErrInvalidSession
	}
	_ = s.sessionRepo.UpdateLastSeen(ctx, sessionID, now)
	return sub.UserID, sessionID, nil
}

func (s *AuthService) openSession(ctx context.Context, user *userdomain.User) (*LoginResult, error) {
	sessionID := uuid.New().String()
	refreshToken, jti, refreshExp, err := s.tokens.IssueRefresh(sessionID, user.ID)
	if err != nil {
		return nil, err
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(sessionID, subjectOf(user))
	if err != nil {
		return nil, err
	}
	sess := &sessiondomain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		ExpiresAt:        refreshExp,
		IPAddress:        middleware.GetClientIP(ctx),
		RefreshJti:       jti,
		RefreshTokenHash: security.Digest(refreshToken),
		CreatedAt:        s.now(),
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		SessionID:    sessionID,
		User:         user,
	}, nil
}

func (s *AuthService) checkAvailable(ctx context.Context, email, username string) error {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailAlreadyRegistered
	}
	taken, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken != nil {
		return ErrUsernameTaken
	}
	return nil
}

func (s *AuthService) checkPassword(password string) error {
	if len(password) < s.cfg.PasswordMinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooShort, s.cfg.PasswordMinLength)
	}
	return nil
}

func (s *AuthService) logEvent(ctx context.Context, userID string, action auditdomain.Action, resource string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, userID, action, resource, "")
}

func subjectOf(u *userdomain.User) security.Subject {
	return security.Subject{UserID: u.ID, Email: u.Email, Username: u.Username}
}

func mapDuplicate(err error) error {
	switch {
	case errors.Is(err, userdomain.ErrDuplicateEmail):
		return ErrEmailAlreadyRegistered
	case errors.Is(err, userdomain.ErrDuplicateUsername):
		return ErrUsernameTaken
	}
	return err
}
