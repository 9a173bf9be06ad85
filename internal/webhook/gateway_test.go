package webhook

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/domain"
	"github.com/energyforreal/attral-orders/pkg/errors"
	"github.com/energyforreal/attral-orders/pkg/metrics"
)

const testSecret = "whsec_test"

type memoryLedger struct {
	mu     sync.Mutex
	events map[string]*domain.WebhookEvent
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{events: make(map[string]*domain.WebhookEvent)}
}

func (m *memoryLedger) Record(ctx context.Context, event *domain.WebhookEvent) (*domain.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.events[event.DedupKey]; ok {
		cp := *existing
		return &cp, nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	cp := *event
	m.events[event.DedupKey] = &cp
	return nil, nil
}

func (m *memoryLedger) MarkProcessed(ctx context.Context, dedupKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[dedupKey]
	if !ok {
		return &errors.ErrNotFound{Resource: "webhook event", ID: dedupKey}
	}
	now := time.Now()
	e.ProcessedAt = &now
	return nil
}

func (m *memoryLedger) MarkFailed(ctx context.Context, dedupKey, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[dedupKey]
	if !ok {
		return &errors.ErrNotFound{Resource: "webhook event", ID: dedupKey}
	}
	e.ProcessingError = &message
	return nil
}

type recordingHandler struct {
	captured []string
	failed   []string
	err      error
}

func (h *recordingHandler) OnCaptured(ctx context.Context, p *Payment) error {
	if h.err != nil {
		return h.err
	}
	h.captured = append(h.captured, p.ID)
	return nil
}

func (h *recordingHandler) OnFailed(ctx context.Context, p *Payment) error {
	if h.err != nil {
		return h.err
	}
	h.failed = append(h.failed, p.ID)
	return nil
}

func newTestGateway(handler *recordingHandler) (*Gateway, *memoryLedger) {
	ledger := newMemoryLedger()
	return NewGateway(testSecret, ledger, handler, metrics.NewNop(), zap.NewNop()), ledger
}

func capturedBody(paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"id":%q,"order_id":"order_1","amount":299900,"currency":"INR","notes":{"email":"a@b.com","firstName":"A"}}}}`,
		paymentID,
	))
}

func TestGatewayDispatchesCaptured(t *testing.T) {
	handler := &recordingHandler{}
	gw, _ := newTestGateway(handler)

	body := capturedBody("pay_1")
	resp := gw.Handle(context.Background(), body, Sign(body, testSecret))

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "ok", resp.Body["status"])
	assert.Equal(t, true, resp.Body["processed"])
	assert.Equal(t, "payment.captured", resp.Body["event"])
	assert.Equal(t, []string{"pay_1"}, handler.captured)
}

func TestGatewayRejectsBadSignature(t *testing.T) {
	handler := &recordingHandler{}
	gw, ledger := newTestGateway(handler)

	body := capturedBody("pay_1")
	resp := gw.Handle(context.Background(), body, "0000deadbeef")

	assert.Equal(t, 401, resp.Status)
	assert.Empty(t, handler.captured, "no processing may happen on a failed signature")

	// the rejected delivery is kept as an audit row
	found := false
	for key, e := range ledger.events {
		if !e.SignatureValid {
			assert.Contains(t, key, "unverified:")
			found = true
		}
	}
	assert.True(t, found)
}

func TestGatewayRejectsMissingSignature(t *testing.T) {
	handler := &recordingHandler{}
	gw, _ := newTestGateway(handler)

	body := capturedBody("pay_1")
	resp := gw.Handle(context.Background(), body, "")

	assert.Equal(t, 401, resp.Status)
	assert.Empty(t, handler.captured)
}

func TestGatewayAcksUnknownEvents(t *testing.T) {
	handler := &recordingHandler{}
	gw, _ := newTestGateway(handler)

	body := []byte(`{"event":"refund.processed","payload":{"payment":{"id":"pay_7"}}}`)
	resp := gw.Handle(context.Background(), body, Sign(body, testSecret))

	// 200, not an error: the provider must not retry ignored events
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "refund.processed", resp.Body["event"])
	assert.Empty(t, handler.captured)
	assert.Empty(t, handler.failed)
}

func TestGatewayOrderPaidIsNoop(t *testing.T) {
	handler := &recordingHandler{}
	gw, _ := newTestGateway(handler)

	body := []byte(`{"event":"order.paid","payload":{"order":{"id":"order_1","status":"paid"}}}`)
	resp := gw.Handle(context.Background(), body, Sign(body, testSecret))

	assert.Equal(t, 200, resp.Status)
	assert.Empty(t, handler.captured)
	assert.Empty(t, handler.failed)
}

func TestGatewayReturns500OnHandlerError(t *testing.T) {
	handler := &recordingHandler{err: assert.AnError}
	gw, ledger := newTestGateway(handler)

	body := capturedBody("pay_1")
	resp := gw.Handle(context.Background(), body, Sign(body, testSecret))

	assert.Equal(t, 500, resp.Status)
	assert.NotEmpty(t, resp.Body["error"])

	e, ok := ledger.events["payment.captured:pay_1"]
	require.True(t, ok)
	require.NotNil(t, e.ProcessingError)
	assert.Nil(t, e.ProcessedAt)
}

func TestGatewayShortCircuitsProcessedDuplicates(t *testing.T) {
	handler := &recordingHandler{}
	gw, _ := newTestGateway(handler)

	body := capturedBody("pay_1")
	sig := Sign(body, testSecret)

	first := gw.Handle(context.Background(), body, sig)
	second := gw.Handle(context.Background(), body, sig)

	assert.Equal(t, 200, first.Status)
	assert.Equal(t, 200, second.Status)
	assert.Equal(t, []string{"pay_1"}, handler.captured, "handler must run exactly once")
}

func TestGatewayRetriesAfterFailure(t *testing.T) {
	// a delivery that failed processing must be retryable: the ledger row
	// exists but is not marked processed
	handler := &recordingHandler{err: assert.AnError}
	gw, _ := newTestGateway(handler)

	body := capturedBody("pay_1")
	sig := Sign(body, testSecret)

	resp := gw.Handle(context.Background(), body, sig)
	assert.Equal(t, 500, resp.Status)

	handler.err = nil
	resp = gw.Handle(context.Background(), body, sig)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []string{"pay_1"}, handler.captured)
}

func TestGatewayRejectsMalformedEnvelope(t *testing.T) {
	handler := &recordingHandler{}
	gw, _ := newTestGateway(handler)

	body := []byte(`{"event":`)
	resp := gw.Handle(context.Background(), body, Sign(body, testSecret))

	assert.Equal(t, 400, resp.Status)
}
