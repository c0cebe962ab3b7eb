package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyloom/backend/internal/mail"
	"storyloom/backend/internal/otp/domain"
	"storyloom/backend/internal/otp/repository"
	userdomain "storyloom/backend/internal/user/domain"
)

// Issuer creates challenges and dispatches their codes.
type Issuer struct {
	repo      repository.Repository
	transport mail.Transport
	ttl       time.Duration
	metrics   Metrics
	logger    *zap.Logger

	now      func() time.Time
	generate func() (string, error)
}

// NewIssuer returns an Issuer. metrics and logger may be nil.
func NewIssuer(repo repository.Repository, transport mail.Transport, ttl time.Duration, metrics Metrics, logger *zap.Logger) *Issuer {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{
		repo:      repo,
		transport: transport,
		ttl:       ttl,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		generate:  GenerateCode,
	}
}

// TTL is how long issued codes stay valid.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Request issues a new code for (email, purpose), replacing any earlier challenge for that key,
// and sends it. payload is kept only for signup challenges. It returns the expiry of the new code.
//
// When the transport fails the new challenge is invalidated and the error wraps ErrDispatchFailed.
func (i *Issuer) Request(ctx context.Context, email string, purpose domain.Purpose, payload *domain.Payload) (time.Time, error) {
	email = userdomain.NormalizeEmail(email)
	if purpose != domain.PurposeSignup {
		payload = nil
	}
	code, err := i.generate()
	if err != nil {
		return time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	now := i.now()
	c := &domain.Challenge{
		ID:        uuid.New().String(),
		Email:     email,
		Purpose:   purpose,
		CodeHash:  HashCode(code),
		Payload:   payload,
		ExpiresAt: now.Add(i.ttl),
		CreatedAt: now,
	}
	if err := i.repo.UpsertLive(ctx, c); err != nil {
		return time.Time{}, err
	}

	msg := mail.OTPMessage{To: email, Code: code, Purpose: string(purpose), TTL: i.ttl}
	if err := i.transport.SendOTP(ctx, msg); err != nil {
		i.logger.Warn("otp dispatch failed",
			zap.String("email", email),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
		i.invalidate(ctx, c.ID)
		return time.Time{}, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	i.metrics.Issued(ctx, string(purpose))
	return c.ExpiresAt, nil
}

// invalidateTimeout bounds the cleanup write after a failed dispatch.
const invalidateTimeout = 5 * time.Second

// invalidate burns an undelivered challenge. It runs even when ctx is already cancelled.
func (i *Issuer) invalidate(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if _, err := i.repo.MarkConsumed(ctx, id, i.now()); err != nil {
		i.logger.Error("invalidate undelivered challenge", zap.String("challenge_id", id), zap.Error(err))
	}
}
