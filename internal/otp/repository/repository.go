package repository

import (
	"context"
	"time"

	"storyloom/backend/internal/otp/domain"
)

// Repository defines persistence for OTP challenges.
type Repository interface {
	// UpsertLive writes c as the only challenge for (c.Email, c.Purpose), replacing any previous
	// row in a single statement. Attempts and ConsumedAt are reset.
	UpsertLive(ctx context.Context, c *domain.Challenge) error
	// FindLive returns the unconsumed challenge for (email, purpose), or nil if none. Expired
	// challenges are returned so callers can tell expiry from absence.
	FindLive(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error)
	// MarkConsumed sets consumed_at on challenge id if it is still unconsumed. It reports whether
	// this call performed the transition.
	MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error)
	// IncrementAttempts adds one failed attempt to an unconsumed challenge and returns the new
	// count. ok is false when the challenge is gone or already consumed.
	IncrementAttempts(ctx context.Context, id string) (attempts int, ok bool, err error)
}
