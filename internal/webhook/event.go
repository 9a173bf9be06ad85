package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Supported provider event types. Anything else is acknowledged and ignored
// so the provider does not retry events we intentionally skip.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

// Event is the webhook envelope: an event type plus a payload carrying either
// a payment or an order entity.
type Event struct {
	Type    string  `json:"event"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	Payment *Payment     `json:"payment,omitempty"`
	Order   *OrderEntity `json:"order,omitempty"`
}

// Payment is the provider's payment entity. Amount is in minor units (paise).
type Payment struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Email       string `json:"email"`
	Contact     string `json:"contact"`
	ErrorCode   string `json:"error_code"`
	ErrorReason string `json:"error_description"`
	Notes       Notes  `json:"notes"`
}

// OrderEntity is the provider's order entity, present on order.* events.
type OrderEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// Notes is checkout metadata attached to the payment at order creation.
// The storefront writes customer, product, pricing, shipping and coupon
// details here; it is the only source the webhook has for building an order.
type Notes struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Subtotal    Amount  `json:"subtotal"`
	Shipping    Amount  `json:"shipping"`
	Discount    Amount  `json:"discount"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	PostalCode  string  `json:"pincode"`
	Country     string  `json:"country"`
	Coupons     Coupons `json:"coupons"`
}

// Amount accepts both JSON numbers and numeric strings; note values are
// strings when set through the storefront checkout form.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" || s == `""` {
		*a = 0
		return nil
	}
	if s[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		s = strings.TrimSpace(raw)
		if s == "" {
			*a = 0
			return nil
		}
	}
	var f float64
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*a = Amount(f)
	return nil
}

// NoteCoupon mirrors domain.AppliedCoupon on the wire.
type NoteCoupon struct {
	Code              string  `json:"code"`
	Name              string  `json:"name,omitempty"`
	Type              string  `json:"type,omitempty"`
	Value             float64 `json:"value,omitempty"`
	IsAffiliateCoupon bool    `json:"isAffiliateCoupon,omitempty"`
	AffiliateCode     string  `json:"affiliateCode,omitempty"`
}

// Coupons accepts both a JSON array and a JSON-encoded string of an array;
// the storefront has sent both over time.
type Coupons []NoteCoupon

func (c *Coupons) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*c = nil
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*c = nil
			return nil
		}
		var list []NoteCoupon
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return fmt.Errorf("coupons note is not a valid JSON array: %w", err)
		}
		*c = list
		return nil
	}
	var list []NoteCoupon
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*c = list
	return nil
}

// ParseEvent decodes the webhook envelope from raw bytes.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("invalid event envelope: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event envelope missing event type")
	}
	return &ev, nil
}

// DedupKey identifies a logical delivery for the processed-event ledger.
// Provider deliveries carry no stable event id on every payload, so the key
// is derived from the event type and the entity id it refers to.
func (e *Event) DedupKey() string {
	switch {
	case e.Payload.Payment != nil && e.Payload.Payment.ID != "":
		return e.Type + ":" + e.Payload.Payment.ID
	case e.Payload.Order != nil && e.Payload.Order.ID != "":
		return e.Type + ":" + e.Payload.Order.ID
	default:
		return ""
	}
}
