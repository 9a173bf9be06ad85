package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order represents one purchase captured from a payment event
type Order struct {
	ID                uuid.UUID
	OrderNumber       string // human-readable, e.g. "ATRL-1042"
	RazorpayOrderID   string
	RazorpayPaymentID string
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	Source            OrderSource
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     *string
	ProductID         *string
	ProductName       *string
	Subtotal          float64
	Shipping          float64
	Discount          float64
	Total             float64
	Currency          string
	ShippingAddress   map[string]interface{} // JSONB
	PaymentMethod     *string
	FailureReason     *string
	Coupons           []AppliedCoupon        // JSONB
	CouponResults     map[string]CouponResult // JSONB; tracker outcomes keyed by code
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AppliedCoupon is one coupon referenced by an order
type AppliedCoupon struct {
	Code             string  `json:"code"`
	Name             string  `json:"name,omitempty"`
	Type             string  `json:"type,omitempty"` // "flat" or "percent"
	Value            float64 `json:"value,omitempty"`
	IsAffiliateCoupon bool   `json:"isAffiliateCoupon,omitempty"`
	AffiliateCode    string  `json:"affiliateCode,omitempty"`
}

// Coupon represents a discount code. The code is stored uppercased; lookups
// normalize the same way so matching is case-insensitive.
type Coupon struct {
	ID         uuid.UUID
	Code       string
	Type       string
	Value      float64
	IsActive   bool
	UsageCount int
	UsageLimit *int
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WebhookEvent is the processed-event ledger row. DedupKey is unique per
// logical delivery so redeliveries are detected before any handler runs.
type WebhookEvent struct {
	ID              uuid.UUID
	DedupKey        string
	EventType       string
	PayloadJSON     []byte
	SignatureValid  bool
	ProcessedAt     *time.Time
	ProcessingError *string
	CreatedAt       time.Time
}

// CouponResult is the per-code outcome of a coupon usage increment
type CouponResult struct {
	Code    string `json:"code"`
	Status  string `json:"status"` // "incremented" or "failed"
	Message string `json:"message,omitempty"`
}
