package kafka

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shestoi/nextbuy/platform/batcher"
	"github.com/shestoi/nextbuy/platform/events"
)

func TestDecodeBehavior(t *testing.T) {
	behavior := events.New(events.UserBehavior{UserID: "user-1", Action: events.ActionAddToCart, ShopID: "shop-a"})
	behaviorRaw, err := events.Encode(behavior)
	require.NoError(t, err)

	notification := events.New(events.Notification{Title: "t", ReceiverID: "user-1"})
	notificationRaw, err := events.Encode(notification)
	require.NoError(t, err)

	t.Run("success: behavior event", func(t *testing.T) {
		decoded, err := DecodeBehavior(batcher.Message{Value: behaviorRaw})
		require.NoError(t, err)
		assert.Equal(t, behavior.ID, decoded.ID)
		assert.Equal(t, events.ActionAddToCart, decoded.Action)
		payload, ok := decoded.Value.Payload.(events.UserBehavior)
		require.True(t, ok)
		assert.Equal(t, "user-1", payload.UserID)
		assert.Equal(t, "shop-a", payload.ShopID)
	})

	t.Run("error: other event type", func(t *testing.T) {
		_, err := DecodeBehavior(batcher.Message{Value: notificationRaw})
		var parseErr *events.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, "event_type", parseErr.Field)
	})

	t.Run("error: garbage", func(t *testing.T) {
		_, err := DecodeBehavior(batcher.Message{Value: []byte("{not json")})
		var parseErr *events.ParseError
		assert.True(t, errors.As(err, &parseErr))
	})
}
