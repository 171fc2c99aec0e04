// Package batcher буферизует события из подписки и раз в интервал передаёт их обработчику.
//
// Каждый Batcher владеет своим буфером, таймером и состоянием, поэтому в одном
// процессе можно держать несколько независимых подписок. Сообщения подтверждаются
// в транспорте только после того, как батч, в который они попали, обработан.
package batcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultFlushInterval = 5 * time.Second
	defaultDrainTimeout  = 10 * time.Second
	defaultFetchBackoff  = time.Second
)

// Config параметры батчера
type Config[T any] struct {
	// Name имя подписки для логов
	Name       string
	Subscriber Subscriber
	Decode     Decoder[T]
	Handle     Handler[T]
	// Accept принимаемые действия; пустой список - принимать все
	Accept []string
	// FlushInterval период сброса буфера, по умолчанию 5s
	FlushInterval time.Duration
	// DrainTimeout время на финальный сброс при остановке, по умолчанию 10s
	DrainTimeout time.Duration
	// FetchBackoff пауза после ошибки чтения, по умолчанию 1s
	FetchBackoff time.Duration
	Policy       Policy
}

// Batcher буфер событий с периодическим сбросом
type Batcher[T any] struct {
	cfg    Config[T]
	logger *zap.Logger
	accept map[string]struct{}

	state atomic.Int32

	mu     sync.Mutex
	buffer []Item[T]
	acks   []Message
	seen   map[string]struct{}
	sub    Subscription

	flushMu sync.Mutex

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	received   atomic.Uint64
	accepted   atomic.Uint64
	filtered   atomic.Uint64
	malformed  atomic.Uint64
	duplicates atomic.Uint64
	overflowed atomic.Uint64
	handled    atomic.Uint64
	failed     atomic.Uint64
	flushes    atomic.Uint64
}

// New создаёт батчер в состоянии stopped
func New[T any](cfg Config[T], logger *zap.Logger) (*Batcher[T], error) {
	if cfg.Subscriber == nil {
		return nil, errors.New("batcher: subscriber is required")
	}
	if cfg.Decode == nil {
		return nil, errors.New("batcher: decoder is required")
	}
	if cfg.Handle == nil {
		return nil, errors.New("batcher: handler is required")
	}
	if cfg.Policy.MaxBuffer < 0 {
		return nil, fmt.Errorf("batcher: max buffer must be >= 0, got %d", cfg.Policy.MaxBuffer)
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = defaultFetchBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var accept map[string]struct{}
	if len(cfg.Accept) > 0 {
		accept = make(map[string]struct{}, len(cfg.Accept))
		for _, a := range cfg.Accept {
			accept[a] = struct{}{}
		}
	}

	return &Batcher[T]{
		cfg:    cfg,
		logger: logger.With(zap.String("batcher", cfg.Name)),
		accept: accept,
		seen:   make(map[string]struct{}),
	}, nil
}

// State текущее состояние подписки
func (b *Batcher[T]) State() State {
	return State(b.state.Load())
}

// Stats снимок счётчиков
func (b *Batcher[T]) Stats() Stats {
	b.mu.Lock()
	buffered := len(b.buffer)
	b.mu.Unlock()

	return Stats{
		State:      b.State(),
		Received:   b.received.Load(),
		Accepted:   b.accepted.Load(),
		Filtered:   b.filtered.Load(),
		Malformed:  b.malformed.Load(),
		Duplicates: b.duplicates.Load(),
		Overflowed: b.overflowed.Load(),
		Handled:    b.handled.Load(),
		Failed:     b.failed.Load(),
		Flushes:    b.flushes.Load(),
		Buffered:   buffered,
	}
}

// Start подписывается и блокируется до отмены ctx или вызова Stop.
// При остановке выполняет финальный сброс буфера и закрывает подписку.
func (b *Batcher[T]) Start(ctx context.Context) error {
	// смена состояния и публикация cancel/done атомарны для Stop
	b.runMu.Lock()
	if !b.state.CompareAndSwap(int32(StateStopped), int32(StateConnecting)) {
		b.runMu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.cancel, b.done = cancel, done
	b.runMu.Unlock()

	defer close(done)
	defer cancel()
	defer b.state.Store(int32(StateStopped))

	b.logger.Info("subscribing", zap.Duration("flush_interval", b.cfg.FlushInterval))

	sub, err := b.cfg.Subscriber.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("batcher %s subscribe: %w", b.cfg.Name, err)
	}
	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()
	b.state.Store(int32(StateSubscribed))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.receive(ctx, sub)
	}()

	b.state.Store(int32(StateRunning))
	b.logger.Info("batcher running")

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			b.drain()
			if err := sub.Close(); err != nil {
				b.logger.Warn("failed to close subscription", zap.Error(err))
			}
			// неподтверждённый остаток брокер доставит заново после переподписки
			b.mu.Lock()
			if n := len(b.buffer); n > 0 {
				b.logger.Warn("unacknowledged events left for redelivery", zap.Int("count", n))
			}
			b.buffer, b.acks = nil, nil
			b.seen = make(map[string]struct{})
			b.sub = nil
			b.mu.Unlock()
			b.logger.Info("batcher stopped")
			return nil
		case <-ticker.C:
			if err := b.Flush(ctx); err != nil {
				b.logger.Warn("batch flush aborted", zap.Error(err))
			}
		}
	}
}

// Stop останавливает Start и ждёт завершения финального сброса или отмены ctx
func (b *Batcher[T]) Stop(ctx context.Context) error {
	b.runMu.Lock()
	cancel, done := b.cancel, b.done
	b.runMu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush забирает весь текущий буфер и последовательно обрабатывает его.
// Пустой буфер - no-op для обработчика; подтверждения отфильтрованных сообщений всё равно отправляются.
func (b *Batcher[T]) Flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	batch, acks := b.buffer, b.acks
	b.buffer, b.acks = nil, nil
	b.seen = make(map[string]struct{})
	sub := b.sub
	b.mu.Unlock()

	commitUpTo := len(acks)
	failed := 0
	var abortErr error

	for i, item := range batch {
		err := b.cfg.Handle(ctx, item)
		if err == nil {
			b.handled.Add(1)
			continue
		}

		failed++
		b.failed.Add(1)
		b.report(Failure{Stage: StageHandle, EventID: item.ID, Err: err, Message: acks[item.seq]})

		if !b.cfg.Policy.ContinueOnError {
			commitUpTo = item.seq
			for _, rest := range batch[i+1:] {
				b.report(Failure{Stage: StageSkipped, EventID: rest.ID, Err: ErrAborted, Message: acks[rest.seq]})
			}
			b.requeue(batch[i:], acks[commitUpTo:], commitUpTo)
			abortErr = fmt.Errorf("%w: event %s: %v", ErrAborted, item.ID, err)
			break
		}
	}

	if len(batch) > 0 {
		b.flushes.Add(1)
		b.logger.Debug("batch flushed", zap.Int("size", len(batch)), zap.Int("failed", failed))
		if b.cfg.Policy.OnFlush != nil {
			b.cfg.Policy.OnFlush(len(batch), failed)
		}
	}

	if sub != nil && commitUpTo > 0 {
		if err := sub.Commit(ctx, acks[:commitUpTo]...); err != nil {
			b.report(Failure{Stage: StageCommit, Err: err})
		}
	}

	return abortErr
}

// requeue возвращает хвост прерванного батча в голову буфера.
// Подтверждения хвоста идут перед подтверждениями, пришедшими во время сброса,
// поэтому следующий commit не может перешагнуть упавшее событие.
func (b *Batcher[T]) requeue(items []Item[T], acks []Message, base int) {
	b.mu.Lock()

	shift := len(acks)
	merged := make([]Message, 0, shift+len(b.acks))
	merged = append(merged, acks...)
	merged = append(merged, b.acks...)

	buffer := make([]Item[T], 0, len(items)+len(b.buffer))
	seen := make(map[string]struct{}, len(items)+len(b.buffer))
	for _, item := range items {
		item.seq -= base
		buffer = append(buffer, item)
		seen[item.ID] = struct{}{}
	}

	var failures []Failure
	for _, item := range b.buffer {
		item.seq += shift
		if _, dup := seen[item.ID]; dup {
			failures = append(failures, Failure{Stage: StageDuplicate, EventID: item.ID, Err: ErrDuplicate, Message: merged[item.seq]})
			continue
		}
		seen[item.ID] = struct{}{}
		buffer = append(buffer, item)
	}

	if limit := b.cfg.Policy.MaxBuffer; limit > 0 {
		for len(buffer) > limit {
			oldest := buffer[0]
			buffer = buffer[1:]
			delete(seen, oldest.ID)
			failures = append(failures, Failure{Stage: StageOverflow, EventID: oldest.ID, Err: ErrBufferFull, Message: merged[oldest.seq]})
		}
	}

	b.buffer, b.acks, b.seen = buffer, merged, seen
	b.mu.Unlock()

	for _, f := range failures {
		if f.Stage == StageDuplicate {
			b.duplicates.Add(1)
		} else {
			b.overflowed.Add(1)
		}
		b.report(f)
	}
}

func (b *Batcher[T]) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.DrainTimeout)
	defer cancel()
	if err := b.Flush(ctx); err != nil {
		b.logger.Warn("final flush aborted", zap.Error(err))
	}
}

func (b *Batcher[T]) receive(ctx context.Context, sub Subscription) {
	for {
		msg, err := sub.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.report(Failure{Stage: StageFetch, Err: err})
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.cfg.FetchBackoff):
			}
			continue
		}
		b.enqueue(msg)
	}
}

func (b *Batcher[T]) enqueue(msg Message) {
	defer b.received.Add(1)

	decoded, err := b.cfg.Decode(msg)
	if err != nil {
		b.malformed.Add(1)
		b.appendAck(msg)
		b.report(Failure{Stage: StageDecode, Err: err, Message: msg})
		return
	}

	if b.accept != nil {
		if _, ok := b.accept[decoded.Action]; !ok {
			b.filtered.Add(1)
			b.appendAck(msg)
			return
		}
	}

	var failures []Failure

	b.mu.Lock()
	seq := len(b.acks)
	b.acks = append(b.acks, msg)
	if _, dup := b.seen[decoded.ID]; dup {
		b.mu.Unlock()
		b.duplicates.Add(1)
		b.report(Failure{Stage: StageDuplicate, EventID: decoded.ID, Err: ErrDuplicate, Message: msg})
		return
	}
	if limit := b.cfg.Policy.MaxBuffer; limit > 0 && len(b.buffer) >= limit {
		oldest := b.buffer[0]
		b.buffer = b.buffer[1:]
		delete(b.seen, oldest.ID)
		failures = append(failures, Failure{Stage: StageOverflow, EventID: oldest.ID, Err: ErrBufferFull, Message: b.acks[oldest.seq]})
	}
	b.seen[decoded.ID] = struct{}{}
	b.buffer = append(b.buffer, Item[T]{
		ID:         decoded.ID,
		Action:     decoded.Action,
		Value:      decoded.Value,
		EnqueuedAt: time.Now(),
		seq:        seq,
	})
	b.mu.Unlock()

	b.accepted.Add(1)
	for _, f := range failures {
		b.overflowed.Add(1)
		b.report(f)
	}
}

func (b *Batcher[T]) appendAck(msg Message) {
	b.mu.Lock()
	b.acks = append(b.acks, msg)
	b.mu.Unlock()
}

func (b *Batcher[T]) report(f Failure) {
	fields := []zap.Field{
		zap.String("stage", string(f.Stage)),
		zap.Error(f.Err),
		zap.String("topic", f.Message.Topic),
		zap.Int("partition", f.Message.Partition),
		zap.Int64("offset", f.Message.Offset),
	}
	if f.EventID != "" {
		fields = append(fields, zap.String("event_id", f.EventID))
	}

	switch f.Stage {
	case StageDuplicate, StageSkipped:
		b.logger.Debug("event dropped", fields...)
	default:
		b.logger.Warn("event dropped", fields...)
	}

	if b.cfg.Policy.OnFailure != nil {
		b.cfg.Policy.OnFailure(f)
	}
}
