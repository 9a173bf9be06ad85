package domain

// OrderStatus represents the fulfillment lifecycle of an order
type OrderStatus string

const (
	// CONFIRMED - payment captured, order awaiting fulfillment
	OrderStatusConfirmed OrderStatus = "confirmed"
	// PROCESSING - order being prepared by fulfillment
	OrderStatusProcessing OrderStatus = "processing"
	// SHIPPED - order handed to the carrier
	OrderStatusShipped OrderStatus = "shipped"
	// DELIVERED - order delivered to the customer
	OrderStatusDelivered OrderStatus = "delivered"
	// CANCELLED - order cancelled before fulfillment
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentStatus represents the payment lifecycle, driven by provider webhook events
type PaymentStatus string

const (
	// PENDING - order created, payment not yet confirmed
	PaymentStatusPending PaymentStatus = "pending"
	// CAPTURED - provider reported payment.captured
	PaymentStatusCaptured PaymentStatus = "captured"
	// FAILED - provider reported payment.failed
	PaymentStatusFailed PaymentStatus = "failed"
	// REFUNDED - payment refunded after capture
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsValid checks if the payment status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending,
		PaymentStatusCaptured,
		PaymentStatusFailed,
		PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// OrderSource records which write path produced the order row
type OrderSource string

const (
	// OrderSourcePrimary - created through the order-manager endpoint
	OrderSourcePrimary OrderSource = "primary"
	// OrderSourceFallback - written directly by the webhook after a primary failure
	OrderSourceFallback OrderSource = "fallback"
)
