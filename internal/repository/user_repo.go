package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"membership-api/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios y sus credenciales.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetActiveByEmail(ctx context.Context, email string) (domain.User, error)

	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (domain.User, error)
	CommitReset(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (domain.User, error)

	SetPasswordChange(ctx context.Context, id, tokenHash, pendingHash string, expiresAt time.Time) error
	GetByChangeTokenHash(ctx context.Context, tokenHash string, now time.Time) (domain.User, error)
	CommitPasswordChange(ctx context.Context, tokenHash string, now time.Time) (domain.User, error)

	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// PgUserRepository implementa UserRepository usando pgx.
type PgUserRepository struct {
	pool pgxQuerier
}

func NewPgUserRepository(pool pgxQuerier) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, email, display_name, is_active, password_hash, password_changed_at,
	password_reset_token_hash, password_reset_expires_at,
	password_change_token_hash, password_change_expires_at, pending_password_hash,
	created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, display_name, is_active, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.IsActive,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_DUPLICATE").With("constraint", pgErr.ConstraintName).Wrap(ErrDuplicate)
		}
		return oops.Code("USER_CREATE_FAILED").With("user_id", user.ID).Wrap(err)
	}
	return nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, "USER_GET_FAILED", query, id)
}

// GetActiveByEmail busca por email normalizado y solo cuentas activas.
func (r *PgUserRepository) GetActiveByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) AND is_active`
	return r.getOne(ctx, "USER_GET_BY_EMAIL_FAILED", query, email)
}

// SetResetToken sobrescribe el token de reset vigente; un pedido nuevo invalida al anterior.
func (r *PgUserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET password_reset_token_hash = $2, password_reset_expires_at = $3
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return oops.Code("USER_RESET_TOKEN_FAILED").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(ErrNotFound)
	}
	return nil
}

func (r *PgUserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE password_reset_token_hash = $1 AND password_reset_expires_at > $2 AND is_active`
	return r.getOne(ctx, "USER_GET_BY_RESET_TOKEN_FAILED", query, tokenHash, now)
}

// CommitReset activa el nuevo hash y borra el estado de tokens en un solo UPDATE
// condicionado al hash del token. Si otro request ya lo consumio devuelve ErrNotFound.
// Un reset tambien descarta cualquier cambio de password pendiente.
func (r *PgUserRepository) CommitReset(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (domain.User, error) {
	query := `
		UPDATE users
		SET password_hash = $2,
			password_changed_at = $3,
			password_reset_token_hash = NULL,
			password_reset_expires_at = NULL,
			password_change_token_hash = NULL,
			password_change_expires_at = NULL,
			pending_password_hash = NULL
		WHERE password_reset_token_hash = $1
			AND password_reset_expires_at > $3
			AND is_active
		RETURNING ` + userColumns
	return r.getOne(ctx, "USER_RESET_COMMIT_FAILED", query, tokenHash, newPasswordHash, now)
}

// SetPasswordChange deja staged el nuevo hash junto con su token y expiracion.
func (r *PgUserRepository) SetPasswordChange(ctx context.Context, id, tokenHash, pendingHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET password_change_token_hash = $2,
			password_change_expires_at = $3,
			pending_password_hash = $4
		WHERE id = $1 AND is_active
	`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, expiresAt, pendingHash)
	if err != nil {
		return oops.Code("USER_CHANGE_TOKEN_FAILED").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(ErrNotFound)
	}
	return nil
}

func (r *PgUserRepository) GetByChangeTokenHash(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE password_change_token_hash = $1 AND password_change_expires_at > $2 AND is_active`
	return r.getOne(ctx, "USER_GET_BY_CHANGE_TOKEN_FAILED", query, tokenHash, now)
}

// CommitPasswordChange promueve pending_password_hash en un solo UPDATE condicionado.
func (r *PgUserRepository) CommitPasswordChange(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	query := `
		UPDATE users
		SET password_hash = pending_password_hash,
			password_changed_at = $2,
			password_change_token_hash = NULL,
			password_change_expires_at = NULL,
			pending_password_hash = NULL
		WHERE password_change_token_hash = $1
			AND password_change_expires_at > $2
			AND pending_password_hash IS NOT NULL
			AND is_active
		RETURNING ` + userColumns
	return r.getOne(ctx, "USER_CHANGE_COMMIT_FAILED", query, tokenHash, now)
}

// ClearExpiredTokens limpia pares token/expiracion vencidos. Solo higiene de storage:
// la verificacion ya ignora tokens vencidos.
func (r *PgUserRepository) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE users
		SET password_reset_token_hash = CASE WHEN password_reset_expires_at <= $1 THEN NULL ELSE password_reset_token_hash END,
			password_reset_expires_at = CASE WHEN password_reset_expires_at <= $1 THEN NULL ELSE password_reset_expires_at END,
			pending_password_hash = CASE WHEN password_change_expires_at <= $1 THEN NULL ELSE pending_password_hash END,
			password_change_token_hash = CASE WHEN password_change_expires_at <= $1 THEN NULL ELSE password_change_token_hash END,
			password_change_expires_at = CASE WHEN password_change_expires_at <= $1 THEN NULL ELSE password_change_expires_at END
		WHERE password_reset_expires_at <= $1 OR password_change_expires_at <= $1
	`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, oops.Code("USER_CLEAR_EXPIRED_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgUserRepository) getOne(ctx context.Context, code, query string, args ...any) (domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, oops.Code(code).Wrap(err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u           domain.User
		resetHash   *string
		changeHash  *string
		pendingHash *string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.IsActive,
		&u.PasswordHash,
		&u.PasswordChangedAt,
		&resetHash,
		&u.PasswordResetExpiresAt,
		&changeHash,
		&u.PasswordChangeExpiresAt,
		&pendingHash,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.PasswordResetTokenHash = deref(resetHash)
	u.PasswordChangeTokenHash = deref(changeHash)
	u.PendingPasswordHash = deref(pendingHash)
	return u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
