package domain

import (
	"errors"
	"time"
)

// Type is the kind of event a notification reports.
type Type string

const (
	TypeCollaborationInvite Type = "collaboration_invite"
	TypeInviteAccepted      Type = "invite_accepted"
	TypeInviteRejected      Type = "invite_rejected"
	TypeComment             Type = "comment"
	TypeLike                Type = "like"
)

var (
	// ErrNotificationNotFound is returned when a notification does not exist or belongs to someone else.
	ErrNotificationNotFound = errors.New("notification not found or you are not authorized to delete it")
	// ErrUnknownUser is returned when a notification references a user that does not exist.
	ErrUnknownUser = errors.New("referenced user does not exist")
)

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	switch t {
	case TypeCollaborationInvite, TypeInviteAccepted, TypeInviteRejected, TypeComment, TypeLike:
		return true
	}
	return false
}

// Notification is a message from one user to another about a story.
type Notification struct {
	ID        string     `json:"id"`
	FromUser  string     `json:"fromUser"`
	ToUser    string     `json:"toUser"`
	StoryID   string     `json:"storyId"`
	Type      Type       `json:"type"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Pending reports whether the notification awaits an accept or reject from its recipient.
func (n *Notification) Pending() bool {
	return n.Type == TypeCollaborationInvite
}

// UserRef is the public projection of a user embedded in a notification view.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// StoryRef is the projection of a story embedded in a notification view.
type StoryRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// View is a notification joined with its sender and story, as listed to the recipient.
type View struct {
	ID        string     `json:"id"`
	ToUser    string     `json:"toUser"`
	FromUser  UserRef    `json:"fromUser"`
	Story     StoryRef   `json:"story"`
	Type      Type       `json:"type"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}
