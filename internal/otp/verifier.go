package otp

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"storyloom/backend/internal/otp/domain"
	"storyloom/backend/internal/otp/repository"
	userdomain "storyloom/backend/internal/user/domain"
)

// CompleteFunc performs the purpose-specific step after a code is accepted. It runs in the same
// transaction that consumes the challenge.
type CompleteFunc func(ctx context.Context, c *domain.Challenge) error

// Verifier implements the verification algorithm shared by signup, login, and password reset.
type Verifier struct {
	repo        repository.Repository
	tx          TxRunner
	maxAttempts int
	metrics     Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewVerifier returns a Verifier. maxAttempts of 0 allows unlimited wrong codes until expiry.
func NewVerifier(repo repository.Repository, tx TxRunner, maxAttempts int, metrics Metrics, logger *zap.Logger) *Verifier {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		repo:        repo,
		tx:          tx,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Verify checks code against the live challenge for (email, purpose). On a match it consumes the
// challenge and runs complete in one transaction; complete only runs for the caller that wins the
// consumption. Errors: ErrChallengeNotFound, ErrChallengeExpired, ErrInvalidCode,
// ErrTooManyAttempts, or a store error passed through unchanged.
func (v *Verifier) Verify(ctx context.Context, email string, purpose domain.Purpose, code string, complete CompleteFunc) error {
	email = userdomain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	p := string(purpose)

	c, err := v.repo.FindLive(ctx, email, purpose)
	if err != nil {
		return err
	}
	if c == nil {
		v.metrics.VerifyFailed(ctx, p, "not_found")
		return ErrChallengeNotFound
	}
	now := v.now()
	if c.Expired(now) {
		v.metrics.VerifyFailed(ctx, p, "expired")
		return ErrChallengeExpired
	}
	if v.maxAttempts > 0 && c.Attempts >= v.maxAttempts {
		v.burn(ctx, c.ID)
		v.metrics.VerifyFailed(ctx, p, "attempts_exceeded")
		return ErrTooManyAttempts
	}
	if !CodeMatches(code, c.CodeHash) {
		return v.recordMismatch(ctx, c)
	}

	err = v.tx.WithinTx(ctx, func(ctx context.Context) error {
		won, err := v.repo.MarkConsumed(ctx, c.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return ErrChallengeNotFound
		}
		return complete(ctx, c)
	})
	if err != nil {
		return err
	}
	v.metrics.Verified(ctx, p)
	return nil
}

func (v *Verifier) recordMismatch(ctx context.Context, c *domain.Challenge) error {
	p := string(c.Purpose)
	attempts, ok, err := v.repo.IncrementAttempts(ctx, c.ID)
	if err != nil {
		return err
	}
	if ok && v.maxAttempts > 0 && attempts >= v.maxAttempts {
		v.burn(ctx, c.ID)
		v.metrics.VerifyFailed(ctx, p, "attempts_exceeded")
		return ErrTooManyAttempts
	}
	v.metrics.VerifyFailed(ctx, p, "invalid")
	return ErrInvalidCode
}

func (v *Verifier) burn(ctx context.Context, id string) {
	if _, err := v.repo.MarkConsumed(ctx, id, v.now()); err != nil {
		v.logger.Error("burn challenge", zap.String("challenge_id", id), zap.Error(err))
	}
}
