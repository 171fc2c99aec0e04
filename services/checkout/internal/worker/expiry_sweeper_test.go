package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepExpired(context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestExpirySweeper_RunsUntilCancelled(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "success: sweeps on start and on every tick"},
		{name: "error: failed sweep does not stop the worker", err: errors.New("redis down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &countingSweeper{err: tt.err}
			w := NewExpirySweeper(zap.NewNop(), s, 10*time.Millisecond)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- w.Start(ctx) }()

			require.Eventually(t, func() bool { return s.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
			cancel()

			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(time.Second):
				t.Fatal("sweeper did not stop")
			}
		})
	}
}
