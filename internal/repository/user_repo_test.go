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

	"membership-api/internal/domain"
)

var userRowColumns = []string{
	"id", "email", "display_name", "is_active", "password_hash", "password_changed_at",
	"password_reset_token_hash", "password_reset_expires_at",
	"password_change_token_hash", "password_change_expires_at", "pending_password_hash",
	"created_at",
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func plainUserRow(id, email string, created time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(userRowColumns).AddRow(
		id, email, "Test", true, "hash", (*time.Time)(nil),
		(*string)(nil), (*time.Time)(nil),
		(*string)(nil), (*time.Time)(nil), (*string)(nil),
		created,
	)
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgUserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock, NewPgUserRepository(mock)
}

func TestPgUserRepository_Create(t *testing.T) {
	created := time.Now().UTC()
	user := domain.User{
		ID:           "u1",
		Email:        "user@example.com",
		DisplayName:  "Test",
		IsActive:     true,
		PasswordHash: "hash",
		CreatedAt:    created,
	}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "inserts user",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs("u1", "user@example.com", "Test", true, "hash", created).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs("u1", "user@example.com", "Test", true, "hash", created).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"})
			},
			wantErr: ErrDuplicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)
			tt.setupMock(mock)

			err := repo.Create(context.Background(), user)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPgUserRepository_GetActiveByEmail(t *testing.T) {
	created := time.Now().UTC().Truncate(time.Second)

	t.Run("found", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		mock.ExpectQuery(`FROM users WHERE LOWER\(email\) = LOWER\(\$1\) AND is_active`).
			WithArgs("user@example.com").
			WillReturnRows(plainUserRow("u1", "user@example.com", created))

		user, err := repo.GetActiveByEmail(context.Background(), "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
		assert.Empty(t, user.PasswordResetTokenHash)
		assert.Nil(t, user.PasswordResetExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		mock.ExpectQuery(`FROM users WHERE LOWER\(email\)`).
			WithArgs("missing@example.com").
			WillReturnRows(pgxmock.NewRows(userRowColumns))

		_, err := repo.GetActiveByEmail(context.Background(), "missing@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		mock.ExpectQuery(`FROM users WHERE LOWER\(email\)`).
			WithArgs("user@example.com").
			WillReturnError(errors.New("connection refused"))

		_, err := repo.GetActiveByEmail(context.Background(), "user@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestPgUserRepository_SetResetToken(t *testing.T) {
	expires := time.Now().UTC().Add(10 * time.Minute)

	t.Run("overwrites token pair", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		mock.ExpectExec(`SET password_reset_token_hash = \$2, password_reset_expires_at = \$3`).
			WithArgs("u1", "hash-1", expires).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.SetResetToken(context.Background(), "u1", "hash-1", expires))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		mock.ExpectExec(`SET password_reset_token_hash`).
			WithArgs("u404", "hash-1", expires).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetResetToken(context.Background(), "u404", "hash-1", expires)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPgUserRepository_GetByResetTokenHash(t *testing.T) {
	now := time.Now().UTC()
	expires := now.Add(5 * time.Minute)

	mock, repo := newMockRepo(t)
	rows := pgxmock.NewRows(userRowColumns).AddRow(
		"u1", "user@example.com", "Test", true, "hash", (*time.Time)(nil),
		strPtr("token-hash"), timePtr(expires),
		(*string)(nil), (*time.Time)(nil), (*string)(nil),
		now,
	)
	mock.ExpectQuery(`password_reset_token_hash = \$1 AND password_reset_expires_at > \$2`).
		WithArgs("token-hash", now).
		WillReturnRows(rows)

	user, err := repo.GetByResetTokenHash(context.Background(), "token-hash", now)
	require.NoError(t, err)
	assert.Equal(t, "token-hash", user.PasswordResetTokenHash)
	require.NotNil(t, user.PasswordResetExpiresAt)
	assert.True(t, user.HasPendingReset(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUserRepository_CommitReset(t *testing.T) {
	now := time.Now().UTC()

	t.Run("commits and returns cleared record", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		rows := pgxmock.NewRows(userRowColumns).AddRow(
			"u1", "user@example.com", "Test", true, "new-hash", timePtr(now),
			(*string)(nil), (*time.Time)(nil),
			(*string)(nil), (*time.Time)(nil), (*string)(nil),
			now,
		)
		mock.ExpectQuery(`UPDATE users\s+SET password_hash = \$2`).
			WithArgs("token-hash", "new-hash", now).
			WillReturnRows(rows)

		user, err := repo.CommitReset(context.Background(), "token-hash", "new-hash", now)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", user.PasswordHash)
		assert.Empty(t, user.PasswordResetTokenHash)
		assert.Nil(t, user.PasswordResetExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("token already consumed", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		mock.ExpectQuery(`UPDATE users\s+SET password_hash = \$2`).
			WithArgs("token-hash", "new-hash", now).
			WillReturnRows(pgxmock.NewRows(userRowColumns))

		_, err := repo.CommitReset(context.Background(), "token-hash", "new-hash", now)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPgUserRepository_SetPasswordChange(t *testing.T) {
	expires := time.Now().UTC().Add(10 * time.Minute)

	mock, repo := newMockRepo(t)
	mock.ExpectExec(`SET password_change_token_hash = \$2`).
		WithArgs("u1", "change-hash", expires, "pending-hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetPasswordChange(context.Background(), "u1", "change-hash", "pending-hash", expires))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUserRepository_CommitPasswordChange(t *testing.T) {
	now := time.Now().UTC()

	t.Run("promotes pending hash", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		rows := pgxmock.NewRows(userRowColumns).AddRow(
			"u1", "user@example.com", "Test", true, "pending-hash", timePtr(now),
			(*string)(nil), (*time.Time)(nil),
			(*string)(nil), (*time.Time)(nil), (*string)(nil),
			now,
		)
		mock.ExpectQuery(`SET password_hash = pending_password_hash(?s:.*)AND is_active`).
			WithArgs("change-hash", now).
			WillReturnRows(rows)

		user, err := repo.CommitPasswordChange(context.Background(), "change-hash", now)
		require.NoError(t, err)
		assert.Equal(t, "pending-hash", user.PasswordHash)
		assert.Empty(t, user.PendingPasswordHash)
		assert.Empty(t, user.PasswordChangeTokenHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost race", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		mock.ExpectQuery(`SET password_hash = pending_password_hash`).
			WithArgs("change-hash", now).
			WillReturnRows(pgxmock.NewRows(userRowColumns))

		_, err := repo.CommitPasswordChange(context.Background(), "change-hash", now)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPgUserRepository_GetByChangeTokenHash_RequiresActive(t *testing.T) {
	now := time.Now().UTC()

	mock, repo := newMockRepo(t)
	mock.ExpectQuery(`password_change_token_hash = \$1 AND password_change_expires_at > \$2 AND is_active`).
		WithArgs("change-hash", now).
		WillReturnRows(pgxmock.NewRows(userRowColumns))

	_, err := repo.GetByChangeTokenHash(context.Background(), "change-hash", now)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUserRepository_ClearExpiredTokens(t *testing.T) {
	now := time.Now().UTC()

	mock, repo := newMockRepo(t)
	mock.ExpectExec(`WHERE password_reset_expires_at <= \$1 OR password_change_expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.ClearExpiredTokens(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
