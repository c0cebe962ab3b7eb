package repository

import (
	"context"

	"github.com/samber/oops"

	"storyloom/backend/internal/audit/domain"
	"storyloom/backend/internal/db"
)

type PostgresRepository struct {
	db db.Querier
}

// NewPostgresRepository returns an audit log repository backed by q.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, string(a.Action), a.Resource, a.IP, a.Metadata, a.CreatedAt,
	)
	if err != nil {
		return oops.Code("AUDIT_CREATE_FAILED").With("action", string(a.Action)).Wrap(err)
	}
	return nil
}

// ListByUser returns the user's audit logs, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `
		SELECT id, user_id, action, resource, ip, metadata, created_at
		FROM audit_logs WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, oops.Code("AUDIT_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a      domain.AuditLog
			action string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, oops.Code("AUDIT_LIST_FAILED").With("operation", "scan").Wrap(err)
		}
		a.Action = domain.Action(action)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("AUDIT_LIST_FAILED").Wrap(err)
	}
	return out, nil
}
