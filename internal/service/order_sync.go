package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/domain"
	"github.com/energyforreal/attral-orders/internal/ordermanager"
	"github.com/energyforreal/attral-orders/internal/repository"
	"github.com/energyforreal/attral-orders/internal/webhook"
	"github.com/energyforreal/attral-orders/pkg/errors"
	"github.com/energyforreal/attral-orders/pkg/metrics"
)

// PrimaryWriter is the order-manager client surface the coordinator needs
type PrimaryWriter interface {
	CreateOrder(ctx context.Context, req *ordermanager.CreateOrderRequest) (*ordermanager.CreateOrderResponse, error)
}

// OrderSyncService turns captured-payment events into durable order records.
// The primary path goes through the order-manager endpoint; when that fails
// the order is written directly into the store with a fallback marker, so a
// webhook delivery never loses an order to a slow upstream.
type OrderSyncService struct {
	repos   *repository.Repositories
	primary PrimaryWriter
	coupons *CouponUsageService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewOrderSyncService creates a new order sync coordinator
func NewOrderSyncService(repos *repository.Repositories, primary PrimaryWriter, coupons *CouponUsageService, m *metrics.Metrics, logger *zap.Logger) *OrderSyncService {
	return &OrderSyncService{
		repos:   repos,
		primary: primary,
		coupons: coupons,
		metrics: m,
		logger:  logger,
	}
}

// OnCaptured processes a payment.captured event. Calling it twice for the
// same payment never creates two order records: an existing order for the
// provider order id is acknowledged instead of recreated, and the unique
// index on razorpay_order_id closes the race between concurrent deliveries.
func (s *OrderSyncService) OnCaptured(ctx context.Context, payment *webhook.Payment) error {
	if payment == nil || payment.OrderID == "" {
		return &errors.ErrValidation{Message: "payment.captured payload missing order id"}
	}

	// Redelivery, or the order was already written: confirm payment fields
	existing, err := s.repos.Order.GetByRazorpayOrderID(ctx, payment.OrderID)
	if err == nil {
		return s.acknowledgePayment(ctx, existing, payment)
	}
	if _, ok := err.(*errors.ErrNotFound); !ok {
		return err
	}

	order := buildOrder(payment)

	// Primary path: the order manager owns order creation
	resp, primaryErr := s.primary.CreateOrder(ctx, buildPrimaryRequest(order, payment))
	if primaryErr == nil {
		s.logger.Info("Order created via order manager",
			zap.String("razorpay_order_id", payment.OrderID),
			zap.String("order_number", resp.OrderNumber),
		)
		// The manager may have matched a pre-existing order; make sure its
		// payment fields reflect the capture
		if created, err := s.repos.Order.GetByRazorpayOrderID(ctx, payment.OrderID); err == nil {
			if err := s.acknowledgePayment(ctx, created, payment); err != nil {
				return err
			}
			s.trackCoupons(ctx, created)
		}
		return nil
	}

	// Fallback path: write the order directly so it is not lost
	s.logger.Warn("Primary order write failed, falling back to direct write",
		zap.String("razorpay_order_id", payment.OrderID),
		zap.Error(primaryErr),
	)

	number, err := s.repos.Order.NextOrderNumber(ctx)
	if err != nil {
		return err
	}
	order.OrderNumber = number
	order.Source = domain.OrderSourceFallback

	if err := s.repos.Order.Create(ctx, order); err != nil {
		if _, ok := err.(*errors.ErrConflict); ok {
			// Lost the race to another writer; acknowledge theirs
			winner, getErr := s.repos.Order.GetByRazorpayOrderID(ctx, payment.OrderID)
			if getErr != nil {
				return getErr
			}
			return s.acknowledgePayment(ctx, winner, payment)
		}
		return err
	}

	s.metrics.FallbackWrites.Inc()
	s.logger.Info("Order created via fallback write",
		zap.String("razorpay_order_id", payment.OrderID),
		zap.String("order_number", order.OrderNumber),
	)

	s.trackCoupons(ctx, order)

	return nil
}

// trackCoupons bumps usage counters for a freshly created order record,
// whichever path wrote it. An order that already carries coupon results was
// tracked by an earlier delivery and is skipped, so redeliveries cannot
// double-count. Per-code failures are recorded on the order, never bubbled
// up to the webhook response.
func (s *OrderSyncService) trackCoupons(ctx context.Context, order *domain.Order) {
	if s.coupons == nil || len(order.Coupons) == 0 || len(order.CouponResults) > 0 {
		return
	}
	result := s.coupons.OnOrderCreated(ctx, order)
	s.logger.Info("Coupon usage tracked",
		zap.String("order_number", order.OrderNumber),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
	)
}

// OnFailed marks the matching order's payment as failed. A failed payment
// with no prior order attempt is not actionable and is skipped.
func (s *OrderSyncService) OnFailed(ctx context.Context, payment *webhook.Payment) error {
	if payment == nil || payment.OrderID == "" {
		return &errors.ErrValidation{Message: "payment.failed payload missing order id"}
	}

	order, err := s.repos.Order.GetByRazorpayOrderID(ctx, payment.OrderID)
	if err != nil {
		if _, ok := err.(*errors.ErrNotFound); ok {
			s.logger.Info("payment.failed for unknown order, nothing to update",
				zap.String("razorpay_order_id", payment.OrderID))
			return nil
		}
		return err
	}

	// Never downgrade a captured payment to failed on late delivery
	if order.PaymentStatus == domain.PaymentStatusCaptured {
		s.logger.Info("payment.failed arrived after capture, ignoring",
			zap.String("razorpay_order_id", payment.OrderID))
		return nil
	}

	reason := strings.TrimSpace(payment.ErrorReason)
	if reason == "" {
		reason = payment.ErrorCode
	}
	if reason == "" {
		reason = "payment failed"
	}

	return s.repos.Order.MarkPaymentFailed(ctx, order.ID, reason)
}

func (s *OrderSyncService) acknowledgePayment(ctx context.Context, order *domain.Order, payment *webhook.Payment) error {
	if order.PaymentStatus == domain.PaymentStatusCaptured && order.RazorpayPaymentID == payment.ID {
		return nil
	}
	return s.repos.Order.MarkPaid(ctx, order.ID, payment.ID, time.Now())
}

// buildOrder maps the payment entity and its checkout notes to the canonical
// order record. Provider amounts are in minor units; the store keeps major
// units, so 299900 paise becomes 2999.
func buildOrder(p *webhook.Payment) *domain.Order {
	notes := p.Notes

	name := strings.TrimSpace(notes.FirstName + " " + notes.LastName)
	email := strings.TrimSpace(notes.Email)
	if email == "" {
		email = strings.TrimSpace(p.Email)
	}

	order := &domain.Order{
		RazorpayOrderID:   p.OrderID,
		RazorpayPaymentID: p.ID,
		Status:            domain.OrderStatusConfirmed,
		PaymentStatus:     domain.PaymentStatusCaptured,
		Source:            domain.OrderSourcePrimary,
		CustomerName:      name,
		CustomerEmail:     email,
		Subtotal:          float64(notes.Subtotal),
		Shipping:          float64(notes.Shipping),
		Discount:          float64(notes.Discount),
		Total:             float64(p.Amount) / 100,
		Currency:          p.Currency,
	}

	phone := strings.TrimSpace(notes.Phone)
	if phone == "" {
		phone = strings.TrimSpace(p.Contact)
	}
	if phone != "" {
		order.CustomerPhone = &phone
	}
	if notes.ProductID != "" {
		pid := notes.ProductID
		order.ProductID = &pid
	}
	if notes.ProductName != "" {
		pname := notes.ProductName
		order.ProductName = &pname
	}
	if p.Method != "" {
		method := p.Method
		order.PaymentMethod = &method
	}

	order.ShippingAddress = map[string]interface{}{
		"street":      notes.Address,
		"city":        notes.City,
		"state":       notes.State,
		"postal_code": notes.PostalCode,
		"country":     notes.Country,
	}

	for _, c := range notes.Coupons {
		code := normalizeCouponCode(c.Code)
		if code == "" {
			continue
		}
		order.Coupons = append(order.Coupons, domain.AppliedCoupon{
			Code:              code,
			Name:              c.Name,
			Type:              c.Type,
			Value:             c.Value,
			IsAffiliateCoupon: c.IsAffiliateCoupon,
			AffiliateCode:     c.AffiliateCode,
		})
	}

	now := time.Now()
	order.PaidAt = &now

	return order
}

func buildPrimaryRequest(order *domain.Order, p *webhook.Payment) *ordermanager.CreateOrderRequest {
	coupons := make([]map[string]interface{}, 0, len(order.Coupons))
	for _, c := range order.Coupons {
		coupons = append(coupons, map[string]interface{}{
			"code":              c.Code,
			"name":              c.Name,
			"type":              c.Type,
			"value":             c.Value,
			"isAffiliateCoupon": c.IsAffiliateCoupon,
			"affiliateCode":     c.AffiliateCode,
		})
	}

	req := &ordermanager.CreateOrderRequest{
		RazorpayOrderID:   order.RazorpayOrderID,
		RazorpayPaymentID: order.RazorpayPaymentID,
		Customer: map[string]interface{}{
			"name":  order.CustomerName,
			"email": order.CustomerEmail,
		},
		Product: map[string]interface{}{},
		Pricing: map[string]interface{}{
			"subtotal": order.Subtotal,
			"shipping": order.Shipping,
			"discount": order.Discount,
			"total":    order.Total,
			"currency": order.Currency,
		},
		Shipping: order.ShippingAddress,
		Payment: map[string]interface{}{
			"status": string(order.PaymentStatus),
		},
		Coupons: coupons,
		Source:  "webhook",
	}

	if order.CustomerPhone != nil {
		req.Customer["phone"] = *order.CustomerPhone
	}
	if order.ProductID != nil {
		req.Product["id"] = *order.ProductID
	}
	if order.ProductName != nil {
		req.Product["name"] = *order.ProductName
	}
	if order.PaymentMethod != nil {
		req.Payment["method"] = *order.PaymentMethod
	}

	return req
}
