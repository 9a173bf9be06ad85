package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/domain"
	"github.com/energyforreal/attral-orders/internal/repository"
	"github.com/energyforreal/attral-orders/pkg/metrics"
)

// PaymentHandler receives dispatched payment events
type PaymentHandler interface {
	OnCaptured(ctx context.Context, payment *Payment) error
	OnFailed(ctx context.Context, payment *Payment) error
}

// Response is what the HTTP layer writes back to the provider
type Response struct {
	Status int
	Body   map[string]interface{}
}

// Gateway authenticates webhook deliveries, records them in the
// processed-event ledger, and dispatches by event type. It is independent of
// any web framework so it can be exercised without an HTTP server.
type Gateway struct {
	secret  string
	events  repository.WebhookEventRepository
	handler PaymentHandler
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewGateway creates a webhook gateway
func NewGateway(secret string, events repository.WebhookEventRepository, handler PaymentHandler, m *metrics.Metrics, logger *zap.Logger) *Gateway {
	return &Gateway{
		secret:  secret,
		events:  events,
		handler: handler,
		metrics: m,
		logger:  logger,
	}
}

// Handle processes one delivery: raw body plus the signature header value.
// A handler error returns 500 so the provider retries; retries are safe
// because processing is idempotent end to end.
func (g *Gateway) Handle(ctx context.Context, body []byte, signature string) Response {
	if !VerifySignature(body, signature, g.secret) {
		g.metrics.WebhookEvents.WithLabelValues("unknown", "unauthorized").Inc()
		g.logger.Warn("Webhook signature verification failed", zap.Int("body_bytes", len(body)))
		g.auditUnverified(ctx, body)
		return Response{Status: 401, Body: map[string]interface{}{"error": "invalid webhook signature"}}
	}

	event, err := ParseEvent(body)
	if err != nil {
		g.metrics.WebhookEvents.WithLabelValues("unknown", "malformed").Inc()
		g.logger.Warn("Webhook envelope parse failed", zap.Error(err))
		return Response{Status: 400, Body: map[string]interface{}{"error": "invalid JSON", "details": err.Error()}}
	}

	ok := Response{Status: 200, Body: map[string]interface{}{
		"status":    "ok",
		"processed": true,
		"event":     event.Type,
	}}

	// Ledger check: a delivery that already processed successfully is
	// acknowledged without touching the handlers again
	dedupKey := event.DedupKey()
	if dedupKey != "" {
		existing, err := g.events.Record(ctx, &domain.WebhookEvent{
			DedupKey:       dedupKey,
			EventType:      event.Type,
			PayloadJSON:    body,
			SignatureValid: true,
		})
		if err != nil {
			g.logger.Warn("Webhook event ledger write failed", zap.String("dedup_key", dedupKey), zap.Error(err))
		}
		if existing != nil && existing.ProcessedAt != nil {
			g.metrics.WebhookEvents.WithLabelValues(event.Type, "duplicate").Inc()
			g.logger.Info("Duplicate webhook delivery acknowledged",
				zap.String("event", event.Type),
				zap.String("dedup_key", dedupKey),
			)
			return ok
		}
	}

	switch event.Type {
	case EventPaymentCaptured:
		if event.Payload.Payment == nil {
			return Response{Status: 400, Body: map[string]interface{}{"error": "payment.captured payload missing payment entity"}}
		}
		if err := g.handler.OnCaptured(ctx, event.Payload.Payment); err != nil {
			return g.fail(ctx, event, dedupKey, err)
		}

	case EventPaymentFailed:
		if event.Payload.Payment == nil {
			return Response{Status: 400, Body: map[string]interface{}{"error": "payment.failed payload missing payment entity"}}
		}
		if err := g.handler.OnFailed(ctx, event.Payload.Payment); err != nil {
			return g.fail(ctx, event, dedupKey, err)
		}

	case EventOrderPaid:
		// Processing already happens on payment.captured
		g.logger.Info("order.paid acknowledged, handled on payment.captured",
			zap.String("dedup_key", dedupKey))

	default:
		// Intentionally ignored event types must not trigger provider retries
		g.metrics.WebhookEvents.WithLabelValues(event.Type, "ignored").Inc()
		g.logger.Info("Ignoring unsupported webhook event", zap.String("event", event.Type))
		g.markProcessed(ctx, dedupKey)
		return ok
	}

	g.metrics.WebhookEvents.WithLabelValues(event.Type, "ok").Inc()
	g.markProcessed(ctx, dedupKey)
	return ok
}

func (g *Gateway) fail(ctx context.Context, event *Event, dedupKey string, err error) Response {
	g.metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
	g.logger.Error("Webhook event processing failed",
		zap.String("event", event.Type),
		zap.String("dedup_key", dedupKey),
		zap.Error(err),
	)
	if dedupKey != "" {
		if markErr := g.events.MarkFailed(ctx, dedupKey, err.Error()); markErr != nil {
			g.logger.Warn("Failed to record processing error", zap.String("dedup_key", dedupKey), zap.Error(markErr))
		}
	}
	return Response{Status: 500, Body: map[string]interface{}{"error": err.Error()}}
}

func (g *Gateway) markProcessed(ctx context.Context, dedupKey string) {
	if dedupKey == "" {
		return
	}
	if err := g.events.MarkProcessed(ctx, dedupKey); err != nil {
		g.logger.Warn("Failed to mark webhook event processed", zap.String("dedup_key", dedupKey), zap.Error(err))
	}
}

// auditUnverified keeps a trail of rejected deliveries for operators. Best
// effort: a ledger failure must not change the 401.
func (g *Gateway) auditUnverified(ctx context.Context, body []byte) {
	sum := sha256.Sum256(body)
	_, err := g.events.Record(ctx, &domain.WebhookEvent{
		DedupKey:       "unverified:" + hex.EncodeToString(sum[:8]),
		EventType:      "unverified",
		PayloadJSON:    body,
		SignatureValid: false,
	})
	if err != nil {
		g.logger.Warn("Failed to audit unverified delivery", zap.Error(err))
	}
}
