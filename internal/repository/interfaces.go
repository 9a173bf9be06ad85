package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/energyforreal/attral-orders/internal/domain"
)

// OrderCursor is a keyset-pagination position in the order scan,
// ordered by (created_at, id)
type OrderCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// OrderRepository defines order data access methods
type OrderRepository interface {
	// Create inserts a new order. Returns *errors.ErrConflict when an order
	// with the same provider order id already exists.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*domain.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, razorpayPaymentID string, paidAt time.Time) error
	MarkPaymentFailed(ctx context.Context, id uuid.UUID, reason string) error
	UpdateCouponResults(ctx context.Context, id uuid.UUID, results []domain.CouponResult) error
	// ListPage returns up to limit orders after the cursor (nil for the first
	// page) plus the cursor for the next page, nil when the scan is complete.
	ListPage(ctx context.Context, after *OrderCursor, limit int) ([]*domain.Order, *OrderCursor, error)
	// NextOrderNumber reserves the next human-readable order number,
	// used by the fallback write path.
	NextOrderNumber(ctx context.Context) (string, error)
}

// CouponRepository defines coupon data access methods
type CouponRepository interface {
	// GetByCode looks up a coupon by normalized (uppercase) code.
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	// IncrementUsage atomically bumps the usage counter by one.
	// Returns *errors.ErrNotFound when no coupon has the code.
	IncrementUsage(ctx context.Context, code string) error
	// SetUsageCounts overwrites usage counters in a single transaction.
	// Codes with no matching coupon are skipped; returns the number updated.
	SetUsageCounts(ctx context.Context, counts map[string]int) (int, error)
}

// WebhookEventRepository defines the processed-event ledger
type WebhookEventRepository interface {
	// Record inserts a ledger row. When a row with the same dedup key already
	// exists, the existing row is returned instead and nothing is written.
	Record(ctx context.Context, event *domain.WebhookEvent) (*domain.WebhookEvent, error)
	MarkProcessed(ctx context.Context, dedupKey string) error
	MarkFailed(ctx context.Context, dedupKey, message string) error
}

// Repositories aggregates all repositories
type Repositories struct {
	Order        OrderRepository
	Coupon       CouponRepository
	WebhookEvent WebhookEventRepository
}
