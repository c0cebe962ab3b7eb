package otp

import (
	"context"
	"errors"
)

var (
	// ErrChallengeNotFound means there is no unconsumed challenge for (email, purpose).
	ErrChallengeNotFound = errors.New("no pending verification code, request a new one")
	// ErrChallengeExpired means the challenge exists but is past its expiry. A new request is required.
	ErrChallengeExpired = errors.New("verification code has expired, request a new one")
	// ErrInvalidCode means the submitted code does not match. The challenge stays live.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrTooManyAttempts means the challenge was burned after too many wrong codes.
	ErrTooManyAttempts = errors.New("too many incorrect attempts, request a new code")
	// ErrDispatchFailed means the code could not be handed to the email transport.
	ErrDispatchFailed = errors.New("failed to send verification code")
)

// Metrics receives issuance and verification outcomes.
type Metrics interface {
	Issued(ctx context.Context, purpose string)
	Verified(ctx context.Context, purpose string)
	VerifyFailed(ctx context.Context, purpose, reason string)
}

type noopMetrics struct{}

func (noopMetrics) Issued(context.Context, string)               {}
func (noopMetrics) Verified(context.Context, string)             {}
func (noopMetrics) VerifyFailed(context.Context, string, string) {}

// TxRunner runs fn in a single store transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
