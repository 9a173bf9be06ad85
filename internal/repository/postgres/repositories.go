package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/repository"
)

// NewRepositories creates all repositories backed by the given database
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Order:        NewOrderRepository(db, logger),
		Coupon:       NewCouponRepository(db, logger),
		WebhookEvent: NewWebhookEventRepository(db, logger),
	}
}
