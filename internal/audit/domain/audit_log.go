package domain

import "time"

// Action names a security-relevant auth event.
type Action string

const (
	ActionOTPRequested    Action = "otp_requested"
	ActionSignupCompleted Action = "signup_completed"
	ActionLoginSuccess    Action = "login_success"
	ActionLoginFailure    Action = "login_failure"
	ActionPasswordReset   Action = "password_reset"
	ActionLogout          Action = "logout"
)

// AuditLog is one recorded auth event. UserID is empty when the account is unknown, as for a
// login attempt with an unregistered email.
type AuditLog struct {
	ID       string
	UserID   string
	Action   Action
	Resource string
	// IP is the client address, or "unknown".
	IP        string
	Metadata  string
	CreatedAt time.Time
}
