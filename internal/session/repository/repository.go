package repository

import (
	"context"
	"time"

	"storyloom/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllSessionsByUser(ctx context.Context, userID string) error
	RotateRefreshToken(ctx context.Context, sessionID, oldJti, newJti, refreshTokenHash string) (bool, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}
