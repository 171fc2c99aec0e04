//go:build integration

package record_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	platformpostgres "github.com/shestoi/nextbuy/platform/postgres"
	"github.com/shestoi/nextbuy/services/notification/migrations"
	"github.com/shestoi/nextbuy/services/notification/record"
)

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("notification"),
		postgres.WithUsername("notification_user"),
		postgres.WithPassword("notification_password"),
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

	store := record.NewPostgresStore(pool)
	ev := notificationEvent("evt-1", "buyer-1", time.Now())

	t.Run("create is idempotent by event id", func(t *testing.T) {
		r, err := record.FromEvent(ev)
		require.NoError(t, err)

		created, err := store.Create(ctx, r)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = store.Create(ctx, r)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("direct write and stored record have the same shape", func(t *testing.T) {
		require.NoError(t, record.NewDirectNotifier(store, zap.NewNop()).Notify(ctx, ev))

		list, err := store.ListByReceiver(ctx, "buyer-1", 10)
		require.NoError(t, err)
		require.Len(t, list, 1)

		want, err := record.FromEvent(ev)
		require.NoError(t, err)
		assert.Equal(t, want.ID, list[0].ID)
		assert.Equal(t, want.Title, list[0].Title)
		assert.True(t, want.CreatedAt.Equal(list[0].CreatedAt))
	})
}
