package kafka

import (
	"github.com/shestoi/nextbuy/platform/batcher"
	"github.com/shestoi/nextbuy/platform/events"
)

// DecodeBehavior разбирает сообщение топика поведения.
// Событие другого типа считается poison message и отбрасывается батчером.
func DecodeBehavior(msg batcher.Message) (batcher.Decoded[events.Event], error) {
	ev, err := events.Decode(msg.Value)
	if err != nil {
		return batcher.Decoded[events.Event]{}, err
	}

	behavior, ok := ev.Payload.(events.UserBehavior)
	if !ok {
		return batcher.Decoded[events.Event]{}, &events.ParseError{
			Field:   "event_type",
			Message: "expected " + string(events.TypeUserBehavior) + ", got " + string(ev.Type()),
		}
	}

	return batcher.Decoded[events.Event]{
		ID:     ev.ID,
		Action: behavior.Action,
		Value:  ev,
	}, nil
}
