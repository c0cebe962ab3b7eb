package domain

import (
	"errors"
	"time"
)

// ErrStoryNotFound is returned when a referenced story does not exist.
var ErrStoryNotFound = errors.New("story not found")

// Story is a collaborative story owned by one user.
type Story struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	CreatedAt   time.Time
}

// Collaborator is a user writing in a story as a named character.
type Collaborator struct {
	StoryID   string
	UserID    string
	Character string
	CreatedAt time.Time
}
