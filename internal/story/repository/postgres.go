package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"storyloom/backend/internal/db"
	"storyloom/backend/internal/story/domain"
)

type PostgresRepository struct {
	db db.Querier
}

// NewPostgresRepository returns a story repository backed by q.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// GetByID returns the story for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	var s domain.Story
	err := db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT id, owner_id, title, description, created_at FROM stories WHERE id = $1`, id,
	).Scan(&s.ID, &s.OwnerID, &s.Title, &s.Description, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("STORY_GET_FAILED").With("id", id).Wrap(err)
	}
	return &s, nil
}

// Create persists the story. The story must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Story) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx,
		`INSERT INTO stories (id, owner_id, title, description, created_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.OwnerID, s.Title, s.Description, s.CreatedAt,
	)
	if err != nil {
		return oops.Code("STORY_CREATE_FAILED").With("owner_id", s.OwnerID).Wrap(err)
	}
	return nil
}

// AddCollaborator inserts c or updates its character when the user already collaborates.
func (r *PostgresRepository) AddCollaborator(ctx context.Context, c *domain.Collaborator) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO story_collaborators (story_id, user_id, character, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (story_id, user_id) DO UPDATE SET character = EXCLUDED.character`,
		c.StoryID, c.UserID, c.Character, c.CreatedAt,
	)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return domain.ErrStoryNotFound
	}
	return oops.Code("STORY_ADD_COLLABORATOR_FAILED").
		With("story_id", c.StoryID).
		With("user_id", c.UserID).
		Wrap(err)
}

// ListCollaborators returns the story's collaborators in join order.
func (r *PostgresRepository) ListCollaborators(ctx context.Context, storyID string) ([]*domain.Collaborator, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `
		SELECT story_id, user_id, character, created_at FROM story_collaborators
		WHERE story_id = $1 ORDER BY created_at`, storyID)
	if err != nil {
		return nil, oops.Code("STORY_LIST_COLLABORATORS_FAILED").With("story_id", storyID).Wrap(err)
	}
	defer rows.Close()
	var out []*domain.Collaborator
	for rows.Next() {
		var c domain.Collaborator
		if err := rows.Scan(&c.StoryID, &c.UserID, &c.Character, &c.CreatedAt); err != nil {
			return nil, oops.Code("STORY_LIST_COLLABORATORS_FAILED").With("story_id", storyID).Wrap(err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STORY_LIST_COLLABORATORS_FAILED").With("story_id", storyID).Wrap(err)
	}
	return out, nil
}
