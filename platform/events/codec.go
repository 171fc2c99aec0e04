package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// envelope формат события на шине
type envelope struct {
	EventID      string          `json:"event_id"`
	EventType    Type            `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Payload      json.RawMessage `json:"payload"`
}

// ParseError ошибка разбора входящего события
type ParseError struct {
	Field   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse event: %s: %s", e.Field, e.Message)
}

// Validate проверяет обязательные поля payload.
// Возвращает *ParseError, как и Decode для того же payload.
func Validate(p Payload) error {
	if p == nil {
		return &ParseError{Field: "payload", Message: "payload is required"}
	}
	return p.validate()
}

// Encode сериализует событие в JSON-конверт
func Encode(e Event) ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("encode event %s: payload is nil", e.ID)
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode event %s payload: %w", e.ID, err)
	}
	return json.Marshal(envelope{
		EventID:      e.ID,
		EventType:    e.Payload.Type(),
		EventVersion: Version,
		OccurredAt:   e.OccurredAt,
		Payload:      payload,
	})
}

// Decode разбирает JSON-конверт. Любая проблема формата возвращается как *ParseError.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, &ParseError{Field: "envelope", Message: err.Error()}
	}
	if env.EventID == "" {
		return Event{}, &ParseError{Field: "event_id", Message: "event_id is required"}
	}
	if env.EventVersion > Version {
		return Event{}, &ParseError{Field: "event_version", Message: fmt.Sprintf("unsupported version %d", env.EventVersion)}
	}
	if len(env.Payload) == 0 {
		return Event{}, &ParseError{Field: "payload", Message: "payload is required"}
	}

	var (
		p   Payload
		err error
	)
	switch env.EventType {
	case TypePaymentCompleted:
		p, err = decodePayload[PaymentCompleted](env.Payload)
	case TypePaymentFailed:
		p, err = decodePayload[PaymentFailed](env.Payload)
	case TypeRefundCompleted:
		p, err = decodePayload[RefundCompleted](env.Payload)
	case TypePayoutInitiated:
		p, err = decodePayload[PayoutInitiated](env.Payload)
	case TypePayoutCompleted:
		p, err = decodePayload[PayoutCompleted](env.Payload)
	case TypeUserBehavior:
		p, err = decodePayload[UserBehavior](env.Payload)
	case TypeNotification:
		p, err = decodePayload[Notification](env.Payload)
	default:
		return Event{}, &ParseError{Field: "event_type", Message: fmt.Sprintf("unknown event type %q", env.EventType)}
	}
	if err != nil {
		return Event{}, err
	}

	return Event{ID: env.EventID, OccurredAt: env.OccurredAt, Payload: p}, nil
}

func decodePayload[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ParseError{Field: "payload", Message: err.Error()}
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}
