//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	platformpostgres "github.com/shestoi/nextbuy/platform/postgres"
	"github.com/shestoi/nextbuy/services/checkout/internal/repository"
	"github.com/shestoi/nextbuy/services/checkout/migrations"
)

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()

	// Поднимаем PostgreSQL контейнер через testcontainers
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("checkout"),
		postgres.WithUsername("checkout_user"),
		postgres.WithPassword("checkout_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, container.Terminate(ctx))
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, platformpostgres.Migrate(ctx, dsn, migrations.FS))

	pool, err := platformpostgres.Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	intents := NewIntentRepository(pool)
	accounts := NewPayoutAccountRepository(pool)

	t.Run("save intents once per session", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		records := []repository.IntentRecord{
			{
				ID: uuid.NewString(), SessionID: "sess-1", SellerID: "shop-a",
				Amount: decimal.RequireFromString("54.00"), Currency: "usd",
				PayoutAccountRef: "acct_a", ProviderIntentID: "pi_a", ClientSecret: "secret_a",
				Status: repository.IntentCreated, CreatedAt: now,
			},
			{
				ID: uuid.NewString(), SessionID: "sess-1", SellerID: "shop-b",
				Amount: decimal.RequireFromString("36.00"), Currency: "usd",
				PayoutAccountRef: "acct_b", ProviderIntentID: "pi_b",
				Status: repository.IntentCreated, CreatedAt: now,
			},
		}
		require.NoError(t, intents.SaveIntents(ctx, records))
		assert.ErrorIs(t, intents.SaveIntents(ctx, records), repository.ErrIntentsExist)

		list, err := intents.ListBySession(ctx, "sess-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "shop-a", list[0].SellerID)
		assert.True(t, list[0].Amount.Equal(decimal.RequireFromString("54")))
		assert.Equal(t, "secret_a", list[0].ClientSecret)
	})

	t.Run("zero share without provider intent", func(t *testing.T) {
		rec := repository.IntentRecord{
			ID: uuid.NewString(), SessionID: "sess-2", SellerID: "shop-a",
			Amount: decimal.Zero, Currency: "usd", Status: repository.IntentSucceeded, CreatedAt: time.Now().UTC(),
		}
		other := rec
		other.ID, other.SellerID = uuid.NewString(), "shop-b"
		require.NoError(t, intents.SaveIntents(ctx, []repository.IntentRecord{rec, other}))
	})

	t.Run("update status by provider id", func(t *testing.T) {
		rec, err := intents.GetByProviderID(ctx, "pi_b")
		require.NoError(t, err)

		require.NoError(t, intents.UpdateStatus(ctx, rec.ID, repository.IntentFailed, "card_declined"))

		rec, err = intents.GetByProviderID(ctx, "pi_b")
		require.NoError(t, err)
		assert.Equal(t, repository.IntentFailed, rec.Status)
		assert.Equal(t, "card_declined", rec.FailureReason)

		_, err = intents.GetByProviderID(ctx, "pi_missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("payout accounts", func(t *testing.T) {
		require.NoError(t, accounts.Upsert(ctx, repository.PayoutAccount{SellerID: "shop-a", ProviderAccountID: "acct_a"}))
		at := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, accounts.MarkChecked(ctx, "shop-a", true, at))

		acc, err := accounts.Get(ctx, "shop-a")
		require.NoError(t, err)
		assert.True(t, acc.Onboarded)
		assert.True(t, acc.LastCheckedAt.Equal(at))

		require.NoError(t, accounts.Upsert(ctx, repository.PayoutAccount{SellerID: "shop-a", ProviderAccountID: "acct_new"}))
		acc, err = accounts.Get(ctx, "shop-a")
		require.NoError(t, err)
		assert.False(t, acc.Onboarded)

		acc, err = accounts.GetByProviderAccount(ctx, "acct_new")
		require.NoError(t, err)
		assert.Equal(t, "shop-a", acc.SellerID)

		_, err = accounts.Get(ctx, "shop-z")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
