package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Manager управляет graceful shutdown сервиса.
// Зарегистрированные функции выполняются в обратном порядке регистрации:
// то, что поднято последним (HTTP, consumers), останавливается первым.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	hooks []hook
	done  bool
}

type hook struct {
	name string
	fn   func(context.Context) error
}

// New создаёт Manager с таймаутом на каждую функцию
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{timeout: timeout, logger: logger}
}

// Add регистрирует shutdown функцию
func (m *Manager) Add(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Wait блокируется до SIGINT/SIGTERM и затем выполняет Shutdown
func (m *Manager) Wait() {
	m.WaitContext(context.Background())
}

// WaitContext блокируется до сигнала или отмены ctx и затем выполняет Shutdown
func (m *Manager) WaitContext(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		m.logger.Info("Received shutdown signal, starting graceful shutdown", zap.String("signal", sig.String()))
	case <-ctx.Done():
		m.logger.Info("Context cancelled, starting graceful shutdown")
	}

	m.Shutdown()
}

// Shutdown выполняет зарегистрированные функции один раз.
// Ошибка одной функции не мешает выполнению остальных.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	hooks := make([]hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		start := time.Now()
		err := h.fn(ctx)
		cancel()

		if err != nil {
			m.logger.Error("Shutdown function failed",
				zap.String("name", h.name),
				zap.Error(err),
				zap.Duration("duration", time.Since(start)))
			continue
		}
		m.logger.Info("Shutdown function completed",
			zap.String("name", h.name),
			zap.Duration("duration", time.Since(start)))
	}

	m.logger.Info("Graceful shutdown completed")
}

// ShutdownHTTPServer возвращает shutdown функцию для http.Server
func ShutdownHTTPServer(srv interface {
	Shutdown(context.Context) error
}) func(context.Context) error {
	return func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}
}

// DisconnectMongo возвращает shutdown функцию для MongoDB клиента
func DisconnectMongo(client interface {
	Disconnect(context.Context) error
}) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Disconnect(ctx)
	}
}

// ClosePool возвращает shutdown функцию для pgxpool
func ClosePool(pool interface {
	Close()
}) func(context.Context) error {
	return func(ctx context.Context) error {
		pool.Close()
		return nil
	}
}

// Close возвращает shutdown функцию для io.Closer (kafka writer/reader, redis client)
func Close(c interface {
	Close() error
}) func(context.Context) error {
	return func(ctx context.Context) error {
		return c.Close()
	}
}
