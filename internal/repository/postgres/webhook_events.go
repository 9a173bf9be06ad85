package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/domain"
	"github.com/energyforreal/attral-orders/pkg/errors"
)

type webhookEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates a new webhook event ledger repository
func NewWebhookEventRepository(db *sql.DB, logger *zap.Logger) *webhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts a ledger row for a delivery. The dedup key is unique, so a
// redelivery hits the unique index and the existing row is returned instead.
func (r *webhookEventRepository) Record(ctx context.Context, event *domain.WebhookEvent) (*domain.WebhookEvent, error) {
	query := `
		INSERT INTO webhook_events (id, dedup_key, event_type, payload, signature_valid, processed_at, processing_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.DedupKey,
		event.EventType,
		event.PayloadJSON,
		event.SignatureValid,
		event.ProcessedAt,
		event.ProcessingError,
		event.CreatedAt,
	)

	if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
		existing, getErr := r.getByDedupKey(ctx, event.DedupKey)
		if getErr != nil {
			return nil, getErr
		}
		return existing, nil
	}
	if err != nil {
		r.logger.Error("Failed to record webhook event", zap.Error(err))
		return nil, err
	}

	return nil, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, dedupKey string) error {
	query := `
		UPDATE webhook_events
		SET processed_at = NOW(), processing_error = NULL
		WHERE dedup_key = $1
	`

	result, err := r.db.ExecContext(ctx, query, dedupKey)
	if err != nil {
		r.logger.Error("Failed to mark webhook event processed", zap.Error(err))
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return &errors.ErrNotFound{Resource: "webhook event", ID: dedupKey}
	}
	return nil
}

func (r *webhookEventRepository) MarkFailed(ctx context.Context, dedupKey, message string) error {
	query := `
		UPDATE webhook_events
		SET processing_error = $2
		WHERE dedup_key = $1
	`

	result, err := r.db.ExecContext(ctx, query, dedupKey, message)
	if err != nil {
		r.logger.Error("Failed to mark webhook event failed", zap.Error(err))
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return &errors.ErrNotFound{Resource: "webhook event", ID: dedupKey}
	}
	return nil
}

func (r *webhookEventRepository) getByDedupKey(ctx context.Context, dedupKey string) (*domain.WebhookEvent, error) {
	query := `
		SELECT id, dedup_key, event_type, payload, signature_valid, processed_at, processing_error, created_at
		FROM webhook_events
		WHERE dedup_key = $1
	`

	var event domain.WebhookEvent
	var processedAt sql.NullTime
	var processingError sql.NullString

	err := r.db.QueryRowContext(ctx, query, dedupKey).Scan(
		&event.ID,
		&event.DedupKey,
		&event.EventType,
		&event.PayloadJSON,
		&event.SignatureValid,
		&processedAt,
		&processingError,
		&event.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "webhook event", ID: dedupKey}
	}
	if err != nil {
		r.logger.Error("Failed to get webhook event", zap.Error(err))
		return nil, err
	}

	if processedAt.Valid {
		t := processedAt.Time
		event.ProcessedAt = &t
	}
	if processingError.Valid {
		event.ProcessingError = &processingError.String
	}

	return &event, nil
}
