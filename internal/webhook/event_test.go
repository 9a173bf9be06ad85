package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventPaymentCaptured(t *testing.T) {
	body := []byte(`{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"id": "pay_1",
				"order_id": "order_1",
				"amount": 299900,
				"currency": "INR",
				"method": "upi",
				"notes": {
					"email": "a@b.com",
					"firstName": "A",
					"subtotal": "2999",
					"coupons": [{"code": "SAVE10", "type": "percent", "value": 10}]
				}
			}
		}
	}`)

	ev, err := ParseEvent(body)
	require.NoError(t, err)

	assert.Equal(t, EventPaymentCaptured, ev.Type)
	require.NotNil(t, ev.Payload.Payment)
	p := ev.Payload.Payment
	assert.Equal(t, "pay_1", p.ID)
	assert.Equal(t, "order_1", p.OrderID)
	assert.Equal(t, int64(299900), p.Amount)
	assert.Equal(t, "INR", p.Currency)
	assert.Equal(t, "A", p.Notes.FirstName)
	assert.Equal(t, "a@b.com", p.Notes.Email)
	assert.Equal(t, Amount(2999), p.Notes.Subtotal)
	require.Len(t, p.Notes.Coupons, 1)
	assert.Equal(t, "SAVE10", p.Notes.Coupons[0].Code)
}

func TestParseEventRejectsMissingType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"payload":{}}`))
	require.Error(t, err)
}

func TestParseEventRejectsBadJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{"event":`))
	require.Error(t, err)
}

func TestCouponsAcceptStringEncodedArray(t *testing.T) {
	// older storefront builds sent the coupon list JSON-encoded as a string
	var notes Notes
	body := []byte(`{"coupons": "[{\"code\":\"SAVE10\"},{\"code\":\"FREESHIP\"}]"}`)
	require.NoError(t, json.Unmarshal(body, &notes))
	require.Len(t, notes.Coupons, 2)
	assert.Equal(t, "SAVE10", notes.Coupons[0].Code)
	assert.Equal(t, "FREESHIP", notes.Coupons[1].Code)
}

func TestCouponsAcceptEmptyAndNull(t *testing.T) {
	var notes Notes
	require.NoError(t, json.Unmarshal([]byte(`{"coupons": null}`), &notes))
	assert.Empty(t, notes.Coupons)

	notes = Notes{}
	require.NoError(t, json.Unmarshal([]byte(`{"coupons": ""}`), &notes))
	assert.Empty(t, notes.Coupons)
}

func TestAmountAcceptsNumberAndString(t *testing.T) {
	var notes Notes
	require.NoError(t, json.Unmarshal([]byte(`{"subtotal": 2999, "shipping": "49.50", "discount": ""}`), &notes))
	assert.Equal(t, Amount(2999), notes.Subtotal)
	assert.Equal(t, Amount(49.5), notes.Shipping)
	assert.Equal(t, Amount(0), notes.Discount)
}

func TestDedupKey(t *testing.T) {
	ev := &Event{Type: EventPaymentCaptured, Payload: Payload{Payment: &Payment{ID: "pay_1"}}}
	assert.Equal(t, "payment.captured:pay_1", ev.DedupKey())

	ev = &Event{Type: EventOrderPaid, Payload: Payload{Order: &OrderEntity{ID: "order_1"}}}
	assert.Equal(t, "order.paid:order_1", ev.DedupKey())

	ev = &Event{Type: "something.else"}
	assert.Equal(t, "", ev.DedupKey())
}
