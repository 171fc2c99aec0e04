package events

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_KeepsVariant(t *testing.T) {
	in := New(PaymentCompleted{
		SessionID:   "sess-1",
		BuyerID:     "buyer-1",
		Amount:      decimal.RequireFromString("90.00"),
		Currency:    "usd",
		PlatformFee: decimal.RequireFromString("4.50"),
		Intents: []IntentShare{
			{SellerID: "shop-a", IntentID: "pi_1", Amount: decimal.RequireFromString("54.00")},
			{SellerID: "shop-b", IntentID: "pi_2", Amount: decimal.RequireFromString("36.00")},
		},
	})

	data, err := Encode(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_type":"payment.completed"`)
	assert.Contains(t, string(data), `"event_version":1`)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.True(t, in.OccurredAt.Equal(out.OccurredAt))

	completed, ok := out.Payload.(PaymentCompleted)
	require.True(t, ok)
	assert.Equal(t, "sess-1", completed.SessionID)
	assert.Equal(t, "sess-1", out.Key())
	require.Len(t, completed.Intents, 2)
	assert.True(t, completed.Intents[0].Amount.Equal(decimal.RequireFromString("54")))
}

func TestDecode_PayoutEmbedsCommonFields(t *testing.T) {
	data, err := Encode(New(PayoutCompleted{Payout{SellerID: "shop-a", AccountID: "acct_1", PayoutID: "po_1"}}))
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	payout, ok := out.Payload.(PayoutCompleted)
	require.True(t, ok)
	assert.Equal(t, "po_1", payout.PayoutID)
	assert.Equal(t, "acct_1", out.Key())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantField string
	}{
		{name: "error: not json", data: `{not json`, wantField: "envelope"},
		{name: "error: missing event id", data: `{"event_type":"user.behavior","payload":{}}`, wantField: "event_id"},
		{name: "error: unknown type", data: `{"event_id":"e1","event_type":"order.paid","payload":{}}`, wantField: "event_type"},
		{name: "error: future version", data: `{"event_id":"e1","event_type":"user.behavior","event_version":2,"payload":{}}`, wantField: "event_version"},
		{name: "error: missing payload", data: `{"event_id":"e1","event_type":"user.behavior"}`, wantField: "payload"},
		{name: "error: payload of wrong shape", data: `{"event_id":"e1","event_type":"user.behavior","payload":[1,2]}`, wantField: "payload"},
		{name: "error: behavior without action", data: `{"event_id":"e1","event_type":"user.behavior","payload":{"user_id":"u1"}}`, wantField: "payload.action"},
		{name: "error: notification without receiver", data: `{"event_id":"e1","event_type":"notification.created","payload":{"title":"t"}}`, wantField: "payload.receiver_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantField, perr.Field)
		})
	}
}

func TestEncode_NilPayload(t *testing.T) {
	_, err := Encode(Event{ID: "e1"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	var perr *ParseError

	err := Validate(UserBehavior{UserID: "u1"})
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "payload.action", perr.Field)

	require.ErrorAs(t, Validate(nil), &perr)
	assert.Equal(t, "payload", perr.Field)

	assert.NoError(t, Validate(UserBehavior{UserID: "u1", Action: ActionProductView}))
}
