package repository

import (
	"context"

	"storyloom/backend/internal/notification/domain"
)

// Repository defines persistence for notifications.
type Repository interface {
	// Create inserts n. Returns storydomain.ErrStoryNotFound when the story does not exist.
	Create(ctx context.Context, n *domain.Notification) error
	// GetByID returns the notification for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	// ListForRecipient returns the recipient's notifications joined with sender and story,
	// newest first.
	ListForRecipient(ctx context.Context, toUserID string, limit, offset int) ([]*domain.View, error)
	// DeleteForRecipient removes notification id if it is addressed to toUserID and returns the
	// removed row, or nil when nothing matched. Only one of several concurrent callers gets the row.
	DeleteForRecipient(ctx context.Context, id, toUserID string) (*domain.Notification, error)
}
