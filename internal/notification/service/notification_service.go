package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyloom/backend/internal/notification/domain"
	"storyloom/backend/internal/notification/publish"
	"storyloom/backend/internal/notification/repository"
	storydomain "storyloom/backend/internal/story/domain"
	userdomain "storyloom/backend/internal/user/domain"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
	publishTimeout   = 5 * time.Second
)

// Sentinel errors for the notification service; the HTTP layer maps them to status codes.
var (
	ErrUserIDRequired         = errors.New("user ID is required")
	ErrRecipientRequired      = errors.New("recipient email or user ID is required")
	ErrRecipientNotFound      = errors.New("recipient user not found")
	ErrStoryIDRequired        = errors.New("story ID is required")
	ErrInvalidType            = errors.New("unknown notification type")
	ErrNotificationIDRequired = errors.New("notification ID is required")
	ErrCharacterRequired      = errors.New("character is required when accepting a notification")
)

// UserRepo is the minimal user repository needed to resolve recipients.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// StoryRepo is the minimal story repository needed to accept invites.
type StoryRepo interface {
	GetByID(ctx context.Context, id string) (*storydomain.Story, error)
	AddCollaborator(ctx context.Context, c *storydomain.Collaborator) error
}

// TxRunner runs fn in a single store transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreateInput identifies the sender, the recipient (by email or by id), and the story.
// An empty Type creates a collaboration invite.
type CreateInput struct {
	FromUserID string
	ToEmail    string
	ToUserID   string
	StoryID    string
	Type       domain.Type
}

// RespondInput is the recipient's action on a notification. A nil Accept only deletes it.
type RespondInput struct {
	NotificationID string
	UserID         string
	Accept         *bool
	Character      string
}

// NotificationService creates, lists, and resolves notifications.
type NotificationService struct {
	repo      repository.Repository
	users     UserRepo
	stories   StoryRepo
	tx        TxRunner
	publisher publish.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService returns a NotificationService. publisher and logger may be nil.
func NewNotificationService(repo repository.Repository, users UserRepo, stories StoryRepo, tx TxRunner, publisher publish.Publisher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		repo:      repo,
		users:     users,
		stories:   stories,
		tx:        tx,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateNotification resolves the recipient and stores the notification. An unresolvable recipient
// fails with ErrRecipientNotFound before anything is written. Store errors are returned unchanged.
func (s *NotificationService) CreateNotification(ctx context.Context, in CreateInput) (*domain.Notification, error) {
	if in.FromUserID == "" {
		return nil, ErrUserIDRequired
	}
	storyID := strings.TrimSpace(in.StoryID)
	if storyID == "" {
		return nil, ErrStoryIDRequired
	}
	typ := in.Type
	if typ == "" {
		typ = domain.TypeCollaborationInvite
	}
	if !typ.Valid() {
		return nil, ErrInvalidType
	}
	recipient, err := s.resolveRecipient(ctx, in)
	if err != nil {
		return nil, err
	}
	n := &domain.Notification{
		ID:        uuid.New().String(),
		FromUser:  in.FromUserID,
		ToUser:    recipient.ID,
		StoryID:   storyID,
		Type:      typ,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.publishAsync(n)
	return n, nil
}

// GetNotificationsForUser lists the user's notifications, newest first. limit defaults to
// DefaultListLimit and is capped at MaxListLimit. An empty userID fails before any query.
func (s *NotificationService) GetNotificationsForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.View, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForRecipient(ctx, userID, limit, offset)
}

// Respond lets the recipient dismiss a notification, or accept or reject a pending invite.
// Accepting adds the recipient to the story as Character. Accepting or rejecting notifies the
// original sender. The notification is deleted in every case, all in one transaction.
// The delete runs first and gates the rest, so a notification is answered at most once.
// It returns the response notification sent back, or nil when none was created.
func (s *NotificationService) Respond(ctx context.Context, in RespondInput) (*domain.Notification, error) {
	if in.UserID == "" {
		return nil, ErrUserIDRequired
	}
	if in.NotificationID == "" {
		return nil, ErrNotificationIDRequired
	}
	character := strings.TrimSpace(in.Character)
	if in.Accept != nil && *in.Accept && character == "" {
		return nil, ErrCharacterRequired
	}

	var response *domain.Notification
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.DeleteForRecipient(ctx, in.NotificationID, in.UserID)
		if err != nil {
			return err
		}
		if n == nil {
			return domain.ErrNotificationNotFound
		}
		if in.Accept != nil && n.Pending() {
			now := s.now()
			typ := domain.TypeInviteRejected
			if *in.Accept {
				story, err := s.stories.GetByID(ctx, n.StoryID)
				if err != nil {
					return err
				}
				if story == nil {
					return storydomain.ErrStoryNotFound
				}
				if err := s.stories.AddCollaborator(ctx, &storydomain.Collaborator{
					StoryID:   story.ID,
					UserID:    n.ToUser,
					Character: character,
					CreatedAt: now,
				}); err != nil {
					return err
				}
				typ = domain.TypeInviteAccepted
			}
			response = &domain.Notification{
				ID:        uuid.New().String(),
				FromUser:  n.ToUser,
				ToUser:    n.FromUser,
				StoryID:   n.StoryID,
				Type:      typ,
				CreatedAt: now,
			}
			if err := s.repo.Create(ctx, response); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if response != nil {
		s.publishAsync(response)
	}
	return response, nil
}

func (s *NotificationService) resolveRecipient(ctx context.Context, in CreateInput) (*userdomain.User, error) {
	var (
		u   *userdomain.User
		err error
	)
	switch {
	case strings.TrimSpace(in.ToUserID) != "":
		u, err = s.users.GetByID(ctx, strings.TrimSpace(in.ToUserID))
	case strings.TrimSpace(in.ToEmail) != "":
		u, err = s.users.GetByEmail(ctx, userdomain.NormalizeEmail(in.ToEmail))
	default:
		return nil, ErrRecipientRequired
	}
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrRecipientNotFound
	}
	return u, nil
}

// publishAsync hands n to the publisher without blocking the request. The stored row stays the
// source of truth, so failures are only logged.
func (s *NotificationService) publishAsync(n *domain.Notification) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, n); err != nil {
			s.logger.Warn("notification publish failed",
				zap.String("notification_id", n.ID),
				zap.String("to_user", n.ToUser),
				zap.Error(err),
			)
		}
	}()
}
