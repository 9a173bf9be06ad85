package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/domain"
	"github.com/energyforreal/attral-orders/internal/repository"
	"github.com/energyforreal/attral-orders/pkg/errors"
)

const uniqueViolation = "23505"

type orderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `
	id, order_number, razorpay_order_id, razorpay_payment_id, status, payment_status, source,
	customer_name, customer_email, customer_phone, product_id, product_name,
	subtotal, shipping, discount, total, currency, shipping_address, payment_method,
	failure_reason, coupons, coupon_results, paid_at, created_at, updated_at
`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	shippingAddressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return err
	}
	couponsJSON, err := json.Marshal(order.Coupons)
	if err != nil {
		return err
	}
	couponResultsJSON, err := json.Marshal(order.CouponResults)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.RazorpayOrderID,
		order.RazorpayPaymentID,
		order.Status,
		order.PaymentStatus,
		order.Source,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.ProductID,
		order.ProductName,
		order.Subtotal,
		order.Shipping,
		order.Discount,
		order.Total,
		order.Currency,
		shippingAddressJSON,
		order.PaymentMethod,
		order.FailureReason,
		couponsJSON,
		couponResultsJSON,
		order.PaidAt,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
		return &errors.ErrConflict{Message: "order already exists for razorpay order " + order.RazorpayOrderID}
	}
	if err != nil {
		r.logger.Error("Failed to create order", zap.Error(err))
		return err
	}

	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get order by id", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE razorpay_order_id = $1`

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, query, razorpayOrderID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: razorpayOrderID}
	}
	if err != nil {
		r.logger.Error("Failed to get order by razorpay order id", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) MarkPaid(ctx context.Context, id uuid.UUID, razorpayPaymentID string, paidAt time.Time) error {
	query := `
		UPDATE orders
		SET payment_status = $2, razorpay_payment_id = $3, paid_at = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, domain.PaymentStatusCaptured, razorpayPaymentID, paidAt)
	if err != nil {
		r.logger.Error("Failed to mark order paid", zap.Error(err))
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return nil
}

func (r *orderRepository) MarkPaymentFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE orders
		SET payment_status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, domain.PaymentStatusFailed, reason)
	if err != nil {
		r.logger.Error("Failed to mark order payment failed", zap.Error(err))
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return nil
}

func (r *orderRepository) UpdateCouponResults(ctx context.Context, id uuid.UUID, results []domain.CouponResult) error {
	keyed := make(map[string]domain.CouponResult, len(results))
	for _, res := range results {
		keyed[res.Code] = res
	}
	resultsJSON, err := json.Marshal(keyed)
	if err != nil {
		return err
	}

	query := `UPDATE orders SET coupon_results = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, resultsJSON)
	if err != nil {
		r.logger.Error("Failed to update coupon results", zap.Error(err))
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return nil
}

func (r *orderRepository) ListPage(ctx context.Context, after *repository.OrderCursor, limit int) ([]*domain.Order, *repository.OrderCursor, error) {
	var rows *sql.Rows
	var err error

	if after == nil {
		query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at, id LIMIT $1`
		rows, err = r.db.QueryContext(ctx, query, limit)
	} else {
		query := `
			SELECT ` + orderColumns + `
			FROM orders
			WHERE (created_at, id) > ($1, $2)
			ORDER BY created_at, id
			LIMIT $3
		`
		rows, err = r.db.QueryContext(ctx, query, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		r.logger.Error("Failed to list orders page", zap.Error(err))
		return nil, nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			r.logger.Error("Failed to scan order row", zap.Error(err))
			return nil, nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	// A short page means the scan is complete
	if len(orders) < limit {
		return orders, nil, nil
	}
	last := orders[len(orders)-1]
	return orders, &repository.OrderCursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

func (r *orderRepository) NextOrderNumber(ctx context.Context) (string, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&n); err != nil {
		r.logger.Error("Failed to reserve order number", zap.Error(err))
		return "", err
	}
	return fmt.Sprintf("ATRL-%04d", n), nil
}

// scanTarget is satisfied by both *sql.Row and *sql.Rows
type scanTarget interface {
	Scan(dest ...interface{}) error
}

func (r *orderRepository) scanOrder(row scanTarget) (*domain.Order, error) {
	var order domain.Order
	var razorpayPaymentID sql.NullString
	var customerPhone sql.NullString
	var productID sql.NullString
	var productName sql.NullString
	var shippingAddressJSON []byte
	var paymentMethod sql.NullString
	var failureReason sql.NullString
	var couponsJSON []byte
	var couponResultsJSON []byte
	var paidAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.RazorpayOrderID,
		&razorpayPaymentID,
		&order.Status,
		&order.PaymentStatus,
		&order.Source,
		&order.CustomerName,
		&order.CustomerEmail,
		&customerPhone,
		&productID,
		&productName,
		&order.Subtotal,
		&order.Shipping,
		&order.Discount,
		&order.Total,
		&order.Currency,
		&shippingAddressJSON,
		&paymentMethod,
		&failureReason,
		&couponsJSON,
		&couponResultsJSON,
		&paidAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if razorpayPaymentID.Valid {
		order.RazorpayPaymentID = razorpayPaymentID.String
	}
	if customerPhone.Valid {
		order.CustomerPhone = &customerPhone.String
	}
	if productID.Valid {
		order.ProductID = &productID.String
	}
	if productName.Valid {
		order.ProductName = &productName.String
	}
	if paymentMethod.Valid {
		order.PaymentMethod = &paymentMethod.String
	}
	if failureReason.Valid {
		order.FailureReason = &failureReason.String
	}
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	if len(shippingAddressJSON) > 0 {
		if err := json.Unmarshal(shippingAddressJSON, &order.ShippingAddress); err != nil {
			return nil, err
		}
	}
	if len(couponsJSON) > 0 {
		if err := json.Unmarshal(couponsJSON, &order.Coupons); err != nil {
			return nil, err
		}
	}
	if len(couponResultsJSON) > 0 {
		if err := json.Unmarshal(couponResultsJSON, &order.CouponResults); err != nil {
			return nil, err
		}
	}

	return &order, nil
}
