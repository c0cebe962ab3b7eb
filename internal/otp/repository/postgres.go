package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"storyloom/backend/internal/db"
	"storyloom/backend/internal/otp/domain"
)

type PostgresRepository struct {
	db db.Querier
}

// NewPostgresRepository returns an OTP challenge repository backed by q.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// UpsertLive inserts the challenge or overwrites the existing row for (email, purpose). The row
// takes the new ID so a verifier still holding the old ID cannot consume it.
func (r *PostgresRepository) UpsertLive(ctx context.Context, c *domain.Challenge) error {
	payload, err := domain.MarshalPayload(c.Payload)
	if err != nil {
		return oops.Code("OTP_UPSERT_FAILED").With("operation", "marshal payload").Wrap(err)
	}
	_, err = db.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO otp_challenges (id, email, purpose, code_hash, payload, attempts, expires_at, consumed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, NULL, $7)
		ON CONFLICT (email, purpose) DO UPDATE SET
			id = EXCLUDED.id,
			code_hash = EXCLUDED.code_hash,
			payload = EXCLUDED.payload,
			attempts = 0,
			expires_at = EXCLUDED.expires_at,
			consumed_at = NULL,
			created_at = EXCLUDED.created_at`,
		c.ID, c.Email, string(c.Purpose), c.CodeHash, payload, c.ExpiresAt, c.CreatedAt,
	)
	if err != nil {
		return oops.Code("OTP_UPSERT_FAILED").
			With("operation", "upsert challenge").
			With("purpose", string(c.Purpose)).
			Wrap(err)
	}
	return nil
}

// FindLive returns the unconsumed challenge for (email, purpose), or nil if not found.
func (r *PostgresRepository) FindLive(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error) {
	var (
		c       domain.Challenge
		p       string
		payload []byte
	)
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, email, purpose, code_hash, payload, attempts, expires_at, consumed_at, created_at
		FROM otp_challenges
		WHERE email = $1 AND purpose = $2 AND consumed_at IS NULL`,
		email, string(purpose),
	).Scan(&c.ID, &c.Email, &p, &c.CodeHash, &payload, &c.Attempts, &c.ExpiresAt, &c.ConsumedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("OTP_FIND_FAILED").With("purpose", string(purpose)).Wrap(err)
	}
	c.Purpose = domain.Purpose(p)
	if c.Payload, err = domain.UnmarshalPayload(payload); err != nil {
		return nil, oops.Code("OTP_FIND_FAILED").With("operation", "decode payload").Wrap(err)
	}
	return &c, nil
}

// MarkConsumed transitions challenge id from unconsumed to consumed exactly once.
func (r *PostgresRepository) MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := db.Conn(ctx, r.db).Exec(ctx,
		`UPDATE otp_challenges SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`,
		id, at,
	)
	if err != nil {
		return false, oops.Code("OTP_CONSUME_FAILED").With("id", id).Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementAttempts records a failed submission against challenge id.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id string) (int, bool, error) {
	var attempts int
	err := db.Conn(ctx, r.db).QueryRow(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = $1 AND consumed_at IS NULL RETURNING attempts`,
		id,
	).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("OTP_ATTEMPT_FAILED").With("id", id).Wrap(err)
	}
	return attempts, true, nil
}
