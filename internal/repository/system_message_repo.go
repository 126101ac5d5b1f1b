package repository

import (
	"context"

	"github.com/samber/oops"

	"membership-api/internal/domain"
)

// SystemMessageRepository guarda los avisos in-app de cada usuario.
type SystemMessageRepository interface {
	Create(ctx context.Context, msg domain.SystemMessage) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.SystemMessage, error)
}

type PgSystemMessageRepository struct {
	pool pgxQuerier
}

func NewPgSystemMessageRepository(pool pgxQuerier) *PgSystemMessageRepository {
	return &PgSystemMessageRepository{pool: pool}
}

func (r *PgSystemMessageRepository) Create(ctx context.Context, msg domain.SystemMessage) error {
	const query = `
		INSERT INTO system_messages (id, user_id, kind, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.UserID,
		string(msg.Kind),
		msg.Title,
		msg.Body,
		msg.CreatedAt,
	)
	if err != nil {
		return oops.Code("SYSTEM_MESSAGE_CREATE_FAILED").With("user_id", msg.UserID).Wrap(err)
	}
	return nil
}

func (r *PgSystemMessageRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.SystemMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `
		SELECT id, user_id, kind, title, body, created_at
		FROM system_messages
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, oops.Code("SYSTEM_MESSAGE_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	var messages []domain.SystemMessage
	for rows.Next() {
		var (
			m    domain.SystemMessage
			kind string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &kind, &m.Title, &m.Body, &m.CreatedAt); err != nil {
			return nil, oops.Code("SYSTEM_MESSAGE_SCAN_FAILED").Wrap(err)
		}
		m.Kind = domain.SystemMessageKind(kind)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SYSTEM_MESSAGE_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	return messages, nil
}
