package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/energyforreal/attral-orders/internal/domain"
	"github.com/energyforreal/attral-orders/internal/ordermanager"
	"github.com/energyforreal/attral-orders/internal/repository"
	"github.com/energyforreal/attral-orders/pkg/errors"
)

// In-memory repositories shared by the service tests.

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	seq       int64
	createErr error
	listErr   error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*domain.Order), seq: 1000}
}

func (f *fakeOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, o := range f.orders {
		if o.RazorpayOrderID == order.RazorpayOrderID {
			return &errors.ErrConflict{Message: "order already exists for razorpay order " + order.RazorpayOrderID}
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
}

func (f *fakeOrderRepo) GetByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.RazorpayOrderID == razorpayOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: razorpayOrderID}
}

func (f *fakeOrderRepo) MarkPaid(ctx context.Context, id uuid.UUID, razorpayPaymentID string, paidAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	o.PaymentStatus = domain.PaymentStatusCaptured
	o.RazorpayPaymentID = razorpayPaymentID
	o.PaidAt = &paidAt
	return nil
}

func (f *fakeOrderRepo) MarkPaymentFailed(ctx context.Context, id uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	o.PaymentStatus = domain.PaymentStatusFailed
	o.FailureReason = &reason
	return nil
}

func (f *fakeOrderRepo) UpdateCouponResults(ctx context.Context, id uuid.UUID, results []domain.CouponResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	encoded := make(map[string]domain.CouponResult, len(results))
	for _, r := range results {
		encoded[r.Code] = r
	}
	o.CouponResults = encoded
	return nil
}

func (f *fakeOrderRepo) ListPage(ctx context.Context, after *repository.OrderCursor, limit int) ([]*domain.Order, *repository.OrderCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, nil, f.listErr
	}

	all := make([]*domain.Order, 0, len(f.orders))
	for _, o := range f.orders {
		cp := *o
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	start := 0
	if after != nil {
		for i, o := range all {
			if o.CreatedAt.Equal(after.CreatedAt) && o.ID == after.ID {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]
	if len(page) < limit {
		return page, nil, nil
	}
	last := page[len(page)-1]
	return page, &repository.OrderCursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

func (f *fakeOrderRepo) NextOrderNumber(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("ATRL-%04d", f.seq), nil
}

func (f *fakeOrderRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]*domain.Coupon
	setErr  error
}

func newFakeCouponRepo(codes ...string) *fakeCouponRepo {
	f := &fakeCouponRepo{coupons: make(map[string]*domain.Coupon)}
	for _, code := range codes {
		f.coupons[code] = &domain.Coupon{
			ID:       uuid.New(),
			Code:     code,
			Type:     "flat",
			IsActive: true,
		}
	}
	return f
}

func (f *fakeCouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.coupons[code]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, &errors.ErrNotFound{Resource: "coupon", ID: code}
}

func (f *fakeCouponRepo) IncrementUsage(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[code]
	if !ok {
		return &errors.ErrNotFound{Resource: "coupon", ID: code}
	}
	c.UsageCount++
	return nil
}

func (f *fakeCouponRepo) SetUsageCounts(ctx context.Context, counts map[string]int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return 0, f.setErr
	}
	updated := 0
	for code, count := range counts {
		if c, ok := f.coupons[code]; ok {
			c.UsageCount = count
			updated++
		}
	}
	return updated, nil
}

func (f *fakeCouponRepo) usage(code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.coupons[code]; ok {
		return c.UsageCount
	}
	return -1
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]*domain.WebhookEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[string]*domain.WebhookEvent)}
}

func (f *fakeEventRepo) Record(ctx context.Context, event *domain.WebhookEvent) (*domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.events[event.DedupKey]; ok {
		cp := *existing
		return &cp, nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	cp := *event
	f.events[event.DedupKey] = &cp
	return nil, nil
}

func (f *fakeEventRepo) MarkProcessed(ctx context.Context, dedupKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[dedupKey]
	if !ok {
		return &errors.ErrNotFound{Resource: "webhook event", ID: dedupKey}
	}
	now := time.Now()
	e.ProcessedAt = &now
	e.ProcessingError = nil
	return nil
}

func (f *fakeEventRepo) MarkFailed(ctx context.Context, dedupKey, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[dedupKey]
	if !ok {
		return &errors.ErrNotFound{Resource: "webhook event", ID: dedupKey}
	}
	e.ProcessingError = &message
	return nil
}

func newFakeRepos(orders *fakeOrderRepo, coupons *fakeCouponRepo) *repository.Repositories {
	return &repository.Repositories{
		Order:        orders,
		Coupon:       coupons,
		WebhookEvent: newFakeEventRepo(),
	}
}

// fakePrimary stands in for the order-manager endpoint
type fakePrimary struct {
	mu       sync.Mutex
	calls    int
	err      error
	response *ordermanager.CreateOrderResponse
	onCreate func(req *ordermanager.CreateOrderRequest)
}

func (f *fakePrimary) CreateOrder(ctx context.Context, req *ordermanager.CreateOrderRequest) (*ordermanager.CreateOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.onCreate != nil {
		f.onCreate(req)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &ordermanager.CreateOrderResponse{Success: true, OrderNumber: "ATRL-9001"}, nil
}

func (f *fakePrimary) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
