package batcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message сырое сообщение из подписки.
// Topic/Partition/Offset нужны транспорту для подтверждения (commit).
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
}

// Subscriber открывает подписку на топик
type Subscriber interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription активная подписка.
// Fetch блокируется до следующего сообщения или отмены ctx.
type Subscription interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msgs ...Message) error
	Close() error
}

// Decoded результат разбора сообщения
type Decoded[T any] struct {
	// ID идентификатор события, по нему убираются дубликаты внутри батча
	ID string
	// Action действие, сверяется с набором принимаемых действий
	Action string
	Value  T
}

// Decoder разбирает сообщение. Ошибка означает poison message: оно отбрасывается.
type Decoder[T any] func(msg Message) (Decoded[T], error)

// Item элемент буфера
type Item[T any] struct {
	ID         string
	Action     string
	Value      T
	EnqueuedAt time.Time

	seq int
}

// Handler обрабатывает одно событие батча.
// Вызывается последовательно для всех событий батча вне блокировки буфера.
type Handler[T any] func(ctx context.Context, item Item[T]) error

// State состояние подписки
type State int32

const (
	StateStopped State = iota
	StateConnecting
	StateSubscribed
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stage этап, на котором событие было отброшено или не обработано
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageDecode    Stage = "decode"
	StageDuplicate Stage = "duplicate"
	StageOverflow  Stage = "overflow"
	StageHandle    Stage = "handle"
	StageSkipped   Stage = "skipped" // отложено до следующего сброса
	StageCommit    Stage = "commit"
)

// Failure описание отброшенного или необработанного события
type Failure struct {
	Stage   Stage
	EventID string
	Err     error
	Message Message
}

var (
	// ErrDuplicate событие с таким ID уже есть в текущем буфере
	ErrDuplicate = errors.New("duplicate event in batch")
	// ErrBufferFull буфер переполнен, вытеснено самое старое событие
	ErrBufferFull = errors.New("buffer full, oldest event dropped")
	// ErrAborted батч прерван после ошибки при ContinueOnError=false
	ErrAborted = errors.New("batch aborted after handler error")
	// ErrAlreadyStarted повторный Start для работающего батчера
	ErrAlreadyStarted = errors.New("batcher already started")
)

// Policy политика обработки ошибок и ограничений
type Policy struct {
	// ContinueOnError продолжать батч после ошибки обработчика.
	// При false батч прерывается, оставшиеся события сообщаются как StageSkipped,
	// подтверждаются только сообщения до упавшего события, а упавшее событие
	// и хвост батча возвращаются в голову буфера и повторяются следующим сбросом.
	ContinueOnError bool
	// MaxBuffer верхняя граница буфера; 0 - без ограничения.
	// При переполнении вытесняется самое старое событие.
	MaxBuffer int
	// OnFailure получает каждое отброшенное или упавшее событие
	OnFailure func(Failure)
	// OnFlush вызывается один раз на непустой батч с его размером и числом ошибок
	OnFlush func(size, failed int)
}

// DefaultPolicy best-effort политика для аналитики
func DefaultPolicy() Policy {
	return Policy{ContinueOnError: true}
}

// Stats счётчики батчера
type Stats struct {
	State      State
	Received   uint64
	Accepted   uint64
	Filtered   uint64
	Malformed  uint64
	Duplicates uint64
	Overflowed uint64
	Handled    uint64
	Failed     uint64
	Flushes    uint64
	Buffered   int
}
