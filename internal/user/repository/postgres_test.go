package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom/backend/internal/user/domain"
)

var userCols = []string{"id", "email", "username", "password_hash", "profile_picture", "created_at", "updated_at"}

func TestPostgresRepository_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("ada@example.com").
		WillReturnRows(pgxmock.NewRows(userCols).AddRow("u1", "ada@example.com", "ada", "hash", "", now, now))

	repo := NewPostgresRepository(mock)
	u, err := repo.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "ada", u.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByUsername_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(userCols))

	repo := NewPostgresRepository(mock)
	u, err := repo.GetByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByID_StoreFailurePropagates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("connection refused")
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).WithArgs("u1").WillReturnError(boom)

	repo := NewPostgresRepository(mock)
	_, err = repo.GetByID(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}

func TestPostgresRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	u := &domain.User{ID: "u1", Email: "ada@example.com", Username: "ada", PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("u1", "ada@example.com", "ada", "hash", "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPostgresRepository(mock)
	require.NoError(t, repo.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Create_UniqueViolation(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{"users_email_key", domain.ErrDuplicateEmail},
		{"users_username_key", domain.ErrDuplicateUsername},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectExec(`INSERT INTO users`).
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: tt.constraint})

			repo := NewPostgresRepository(mock)
			err = repo.Create(context.Background(), &domain.User{ID: "u1", Email: "a@b.c", Username: "ada", PasswordHash: "h"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPostgresRepository_UpdatePassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE users SET password_hash = \$2`).
		WithArgs("u1", "newhash", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewPostgresRepository(mock)
	require.NoError(t, repo.UpdatePassword(context.Background(), "u1", "newhash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
