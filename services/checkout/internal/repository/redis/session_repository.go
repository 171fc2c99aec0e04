package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
)

const (
	hashFieldData   = "data"   // JSON сессии без статуса
	hashFieldStatus = "status" // статус меняется отдельно под WATCH

	pendingIndexKey = "checkout:sessions:pending" // ZSET id → expires_at (unix ms)

	maxTxRetries = 5
)

// SessionRepository реализует repository.SessionRepository на Redis hash.
// Ключ живёт до ExpiresAt + retention, чтобы истёкшая сессия отвечала "expired", а не "not found".
type SessionRepository struct {
	client    *redis.Client
	retention time.Duration
	logger    *zap.Logger
}

// NewSessionRepository создаёт Redis session repository
func NewSessionRepository(client *redis.Client, retention time.Duration, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		client:    client,
		retention: retention,
		logger:    logger,
	}
}

// expiryScore округляет ExpiresAt вверх до миллисекунды:
// сессия попадает в выборку sweeper-а не раньше самого ExpiresAt
func expiryScore(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.After(time.UnixMilli(ms)) {
		ms++
	}
	return ms
}

func sessionKey(id string) string {
	return fmt.Sprintf("checkout:session:%s", id)
}

// Create сохраняет сессию и, если она pending, добавляет её в индекс для sweeper-а
func (r *SessionRepository) Create(ctx context.Context, s repository.Session) error {
	status := s.Status
	s.Status = ""
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	key := sessionKey(s.ID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, hashFieldData, data, hashFieldStatus, string(status))
	pipe.ExpireAt(ctx, key, s.ExpiresAt.Add(r.retention))
	if status == repository.SessionPending {
		pipe.ZAdd(ctx, pendingIndexKey, redis.Z{Score: float64(expiryScore(s.ExpiresAt)), Member: s.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("failed to create session hash in redis",
			zap.Error(err),
			zap.String("session_id", s.ID),
		)
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Debug("session hash created",
		zap.String("session_id", s.ID),
		zap.Time("expires_at", s.ExpiresAt),
	)
	return nil
}

// Get читает сессию; отсутствующий ключ - repository.ErrNotFound
func (r *SessionRepository) Get(ctx context.Context, id string) (repository.Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return repository.Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	raw, ok := fields[hashFieldData]
	if !ok {
		return repository.Session{}, repository.ErrNotFound
	}

	var s repository.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return repository.Session{}, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	s.Status = repository.SessionStatus(fields[hashFieldStatus])
	return s, nil
}

// UpdateStatus переводит статус под WATCH: конкурентный переход приводит к повтору транзакции
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, from, to repository.SessionStatus) error {
	key := sessionKey(id)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, hashFieldStatus).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// ключ истёк по TTL, чистим индекс
				tx.ZRem(ctx, pendingIndexKey, id)
				return repository.ErrNotFound
			}
			return err
		}
		if repository.SessionStatus(current) != from {
			return &repository.StatusConflictError{Current: repository.SessionStatus(current)}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hashFieldStatus, string(to))
			if to != repository.SessionPending {
				pipe.ZRem(ctx, pendingIndexKey, id)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			r.logger.Debug("session status transaction retried",
				zap.String("session_id", id),
				zap.Int("attempt", i+1),
			)
			continue
		}
		return err
	}
	return fmt.Errorf("update session %s status: too many concurrent updates", id)
}

// ListExpiredPending читает индекс pending-сессий по времени истечения
func (r *SessionRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error) {
	by := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		by.Count = int64(limit)
	}
	ids, err := r.client.ZRangeByScore(ctx, pendingIndexKey, by).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	return ids, nil
}
