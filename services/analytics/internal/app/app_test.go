package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformkafka "github.com/shestoi/nextbuy/platform/kafka"
	"github.com/shestoi/nextbuy/services/analytics/internal/config"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestBuild_BrokerDisabledSkipsBatcher(t *testing.T) {
	cfg := config.Config{
		AppEnv:          config.EnvLocal,
		HTTPAddr:        freeAddr(t),
		ShutdownTimeout: time.Second,
		Store:           config.StoreMemory,
		Kafka:           platformkafka.Config{Enabled: false},
	}

	a, err := Build(cfg)
	require.NoError(t, err)
	assert.False(t, a.BatcherEnabled())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunContext(ctx) }()

	base := "http://" + cfg.HTTPAddr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/batcher")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestBuild_BrokerEnabledConfiguresBatcher(t *testing.T) {
	cfg := config.Config{
		AppEnv:          config.EnvLocal,
		HTTPAddr:        freeAddr(t),
		ShutdownTimeout: time.Second,
		Store:           config.StoreMemory,
		Kafka:           platformkafka.Config{Enabled: true, Brokers: []string{"127.0.0.1:1"}},
		Topic:           "marketplace.user-behavior",
		GroupID:         "analytics-test",
		FlushInterval:   time.Second,
		AcceptedActions: []string{"purchase"},
	}

	a, err := Build(cfg)
	require.NoError(t, err)
	assert.True(t, a.BatcherEnabled())
}
