package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"storyloom/backend/internal/db"
	"storyloom/backend/internal/session/domain"
)

type PostgresRepository struct {
	db db.Querier
}

// NewPostgresRepository returns a session repository backed by q.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := db.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, user_id, expires_at, revoked_at, last_seen_at, ip_address, refresh_jti, refresh_token_hash, created_at
		FROM sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.RevokedAt, &s.LastSeenAt, &s.IPAddress, &s.RefreshJti, &s.RefreshTokenHash, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("id", id).Wrap(err)
	}
	return &s, nil
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, revoked_at, last_seen_at, ip_address, refresh_jti, refresh_token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.ExpiresAt, s.RevokedAt, s.LastSeenAt, s.IPAddress, s.RefreshJti, s.RefreshTokenHash, s.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("user_id", s.UserID).Wrap(err)
	}
	return nil
}

// Revoke marks the session with the given id as revoked. Already revoked sessions keep their original time.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").With("id", id).Wrap(err)
	}
	return nil
}

// RevokeAllSessionsByUser revokes all active sessions for the given user.
func (r *PostgresRepository) RevokeAllSessionsByUser(ctx context.Context, userID string) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, time.Now().UTC(),
	)
	if err != nil {
		return oops.Code("SESSION_REVOKE_ALL_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

// UpdateLastSeen sets the session's last-seen timestamp.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx, `UPDATE sessions SET last_seen_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").With("id", id).Wrap(err)
	}
	return nil
}

// RotateRefreshToken stores the new refresh jti and hash when the session still carries oldJti.
// It returns false when no row matched.
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, sessionID, oldJti, newJti, refreshTokenHash string) (bool, error) {
	tag, err := db.Conn(ctx, r.db).Exec(ctx,
		`UPDATE sessions SET refresh_jti = $3, refresh_token_hash = $4 WHERE id = $1 AND refresh_jti = $2`,
		sessionID, oldJti, newJti, refreshTokenHash,
	)
	if err != nil {
		return false, oops.Code("SESSION_ROTATE_FAILED").With("id", sessionID).Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}
