package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"storyloom/backend/internal/db"
	"storyloom/backend/internal/notification/domain"
	storydomain "storyloom/backend/internal/story/domain"
)

const (
	storyForeignKey = "notifications_story_id_fkey"
	columns         = "id, from_user, to_user, story_id, type, read_at, created_at"
)

type PostgresRepository struct {
	db db.Querier
}

// NewPostgresRepository returns a notification repository backed by q.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// Create persists the notification. The notification must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO notifications (id, from_user, to_user, story_id, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.FromUser, n.ToUser, n.StoryID, string(n.Type), n.CreatedAt,
	)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		if pgErr.ConstraintName == storyForeignKey {
			return storydomain.ErrStoryNotFound
		}
		return domain.ErrUnknownUser
	}
	return oops.Code("NOTIFICATION_CREATE_FAILED").
		With("to_user", n.ToUser).
		With("story_id", n.StoryID).
		Wrap(err)
}

// GetByID returns the notification for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	n, err := scanNotification(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+columns+` FROM notifications WHERE id = $1`, id,
	))
	if err != nil {
		return nil, oops.Code("NOTIFICATION_GET_FAILED").With("id", id).Wrap(err)
	}
	return n, nil
}

// ListForRecipient returns notifications addressed to toUserID with the sender's public fields and
// the story title, newest first. It issues a single query.
func (r *PostgresRepository) ListForRecipient(ctx context.Context, toUserID string, limit, offset int) ([]*domain.View, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `
		SELECT n.id, n.to_user, n.type, n.read_at, n.created_at,
		       u.id, u.username, u.email,
		       s.id, s.title
		FROM notifications n
		JOIN users u ON u.id = n.from_user
		JOIN stories s ON s.id = n.story_id
		WHERE n.to_user = $1
		ORDER BY n.created_at DESC, n.id
		LIMIT $2 OFFSET $3`,
		toUserID, limit, offset,
	)
	if err != nil {
		return nil, oops.Code("NOTIFICATION_LIST_FAILED").With("to_user", toUserID).Wrap(err)
	}
	defer rows.Close()

	out := make([]*domain.View, 0)
	for rows.Next() {
		var v domain.View
		var typ string
		if err := rows.Scan(
			&v.ID, &v.ToUser, &typ, &v.ReadAt, &v.CreatedAt,
			&v.FromUser.ID, &v.FromUser.Username, &v.FromUser.Email,
			&v.Story.ID, &v.Story.Title,
		); err != nil {
			return nil, oops.Code("NOTIFICATION_LIST_FAILED").With("to_user", toUserID).Wrap(err)
		}
		v.Type = domain.Type(typ)
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("NOTIFICATION_LIST_FAILED").With("to_user", toUserID).Wrap(err)
	}
	return out, nil
}

// DeleteForRecipient deletes the row only when it belongs to toUserID. The DELETE takes the row
// lock, so a concurrent caller blocks and then matches nothing.
func (r *PostgresRepository) DeleteForRecipient(ctx context.Context, id, toUserID string) (*domain.Notification, error) {
	n, err := scanNotification(db.Conn(ctx, r.db).QueryRow(ctx,
		`DELETE FROM notifications WHERE id = $1 AND to_user = $2 RETURNING `+columns, id, toUserID,
	))
	if err != nil {
		return nil, oops.Code("NOTIFICATION_DELETE_FAILED").With("id", id).Wrap(err)
	}
	return n, nil
}

// scanNotification reads one row selected with columns. No row yields (nil, nil).
func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	var typ string
	err := row.Scan(&n.ID, &n.FromUser, &n.ToUser, &n.StoryID, &typ, &n.ReadAt, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n.Type = domain.Type(typ)
	return &n, nil
}
