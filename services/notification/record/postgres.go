package record

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore реализует Store поверх таблицы notifications.
// Уникальный индекс по event_id делает Create идемпотентным.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт PostgreSQL хранилище
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, r Record) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, event_id, title, message, creator_id, receiver_id, redirect_link, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (event_id) DO NOTHING`,
		r.ID, r.EventID, r.Title, r.Message, r.CreatorID, r.ReceiverID, r.RedirectLink, r.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListByReceiver(ctx context.Context, receiverID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, title, message, creator_id, receiver_id, redirect_link, created_at
		 FROM notifications
		 WHERE receiver_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		receiverID, limit)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(&r.ID, &r.EventID, &r.Title, &r.Message, &r.CreatorID, &r.ReceiverID, &r.RedirectLink, &r.CreatedAt)
		r.CreatedAt = r.CreatedAt.UTC()
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}
	return out, nil
}
