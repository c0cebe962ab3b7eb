package repository

import (
	"context"

	"storyloom/backend/internal/story/domain"
)

// Repository defines persistence for stories and their collaborators.
type Repository interface {
	// GetByID returns the story for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Story, error)
	Create(ctx context.Context, s *domain.Story) error
	// AddCollaborator adds c to the story, replacing the character of an existing collaborator.
	// Returns domain.ErrStoryNotFound when the story does not exist.
	AddCollaborator(ctx context.Context, c *domain.Collaborator) error
	ListCollaborators(ctx context.Context, storyID string) ([]*domain.Collaborator, error)
}
