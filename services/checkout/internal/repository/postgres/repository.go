package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	platformpostgres "github.com/shestoi/nextbuy/platform/postgres"
	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
)

// IntentRepository реализует repository.IntentRepository на PostgreSQL
type IntentRepository struct {
	pool *pgxpool.Pool
}

// NewIntentRepository создаёт PostgreSQL репозиторий интентов
func NewIntentRepository(pool *pgxpool.Pool) *IntentRepository {
	return &IntentRepository{pool: pool}
}

const intentColumns = `id, session_id, seller_id, amount::text, currency, payout_account_ref,
	COALESCE(provider_intent_id, ''), client_secret, status, failure_reason, created_at, updated_at`

// SaveIntents сохраняет набор интентов сессии в одной транзакции.
// Уникальный (session_id, seller_id) не даёт записать второй набор при гонке.
func (r *IntentRepository) SaveIntents(ctx context.Context, records []repository.IntentRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_intents WHERE session_id = $1)`,
		records[0].SessionID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return repository.ErrIntentsExist
	}

	for _, rec := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO payment_intents
			   (id, session_id, seller_id, amount, currency, payout_account_ref,
			    provider_intent_id, client_secret, status, failure_reason, created_at, updated_at)
			 VALUES ($1, $2, $3, $4::numeric, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $11)`,
			rec.ID, rec.SessionID, rec.SellerID, rec.Amount.String(), rec.Currency, rec.PayoutAccountRef,
			rec.ProviderIntentID, rec.ClientSecret, string(rec.Status), rec.FailureReason, rec.CreatedAt)
		if err != nil {
			if platformpostgres.IsUniqueViolation(err) {
				return repository.ErrIntentsExist
			}
			return fmt.Errorf("insert intent %s: %w", rec.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// ListBySession интенты сессии, отсортированные по продавцу
func (r *IntentRepository) ListBySession(ctx context.Context, sessionID string) ([]repository.IntentRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE session_id = $1 ORDER BY seller_id`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.IntentRecord, 0)
	for rows.Next() {
		rec, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetByProviderID интент по id провайдера
func (r *IntentRepository) GetByProviderID(ctx context.Context, providerIntentID string) (repository.IntentRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE provider_intent_id = $1`,
		providerIntentID)
	rec, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.IntentRecord{}, repository.ErrNotFound
		}
		return repository.IntentRecord{}, err
	}
	return rec, nil
}

// UpdateStatus меняет статус интента
func (r *IntentRepository) UpdateStatus(ctx context.Context, id string, status repository.IntentStatus, reason string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payment_intents SET status = $2, failure_reason = $3, updated_at = now() WHERE id = $1`,
		id, string(status), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanIntent(row pgx.Row) (repository.IntentRecord, error) {
	var (
		rec    repository.IntentRecord
		amount string
		status string
	)
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.SellerID, &amount, &rec.Currency, &rec.PayoutAccountRef,
		&rec.ProviderIntentID, &rec.ClientSecret, &status, &rec.FailureReason, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return repository.IntentRecord{}, err
	}
	rec.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return repository.IntentRecord{}, fmt.Errorf("parse intent amount %q: %w", amount, err)
	}
	rec.Status = repository.IntentStatus(status)
	return rec, nil
}

// PayoutAccountRepository реализует repository.PayoutAccountRepository на PostgreSQL
type PayoutAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPayoutAccountRepository создаёт PostgreSQL репозиторий субаккаунтов
func NewPayoutAccountRepository(pool *pgxpool.Pool) *PayoutAccountRepository {
	return &PayoutAccountRepository{pool: pool}
}

// Upsert регистрирует субаккаунт продавца. Смена аккаунта сбрасывает флаг onboarded.
func (r *PayoutAccountRepository) Upsert(ctx context.Context, acc repository.PayoutAccount) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payout_accounts (seller_id, provider_account_id, onboarded, updated_at)
		 VALUES ($1, $2, false, now())
		 ON CONFLICT (seller_id) DO UPDATE SET
		   provider_account_id = EXCLUDED.provider_account_id,
		   onboarded = CASE WHEN payout_accounts.provider_account_id = EXCLUDED.provider_account_id
		                    THEN payout_accounts.onboarded ELSE false END,
		   updated_at = now()`,
		acc.SellerID, acc.ProviderAccountID)
	return err
}

// Get субаккаунт продавца
func (r *PayoutAccountRepository) Get(ctx context.Context, sellerID string) (repository.PayoutAccount, error) {
	return r.getBy(ctx, "seller_id", sellerID)
}

// GetByProviderAccount субаккаунт по id у провайдера (payout webhooks приходят с account id)
func (r *PayoutAccountRepository) GetByProviderAccount(ctx context.Context, providerAccountID string) (repository.PayoutAccount, error) {
	return r.getBy(ctx, "provider_account_id", providerAccountID)
}

// getBy column подставляется только из констант выше
func (r *PayoutAccountRepository) getBy(ctx context.Context, column, value string) (repository.PayoutAccount, error) {
	var (
		acc       repository.PayoutAccount
		checkedAt *time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT seller_id, provider_account_id, onboarded, last_checked_at FROM payout_accounts WHERE `+column+` = $1 LIMIT 1`,
		value).Scan(&acc.SellerID, &acc.ProviderAccountID, &acc.Onboarded, &checkedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.PayoutAccount{}, repository.ErrNotFound
		}
		return repository.PayoutAccount{}, err
	}
	if checkedAt != nil {
		acc.LastCheckedAt = *checkedAt
	}
	return acc, nil
}

// MarkChecked сохраняет результат проверки готовности
func (r *PayoutAccountRepository) MarkChecked(ctx context.Context, sellerID string, onboarded bool, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payout_accounts SET onboarded = $2, last_checked_at = $3, updated_at = now() WHERE seller_id = $1`,
		sellerID, onboarded, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
