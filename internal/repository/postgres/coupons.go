package postgres

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/domain"
	"github.com/energyforreal/attral-orders/pkg/errors"
)

type couponRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCouponRepository creates a new coupon repository
func NewCouponRepository(db *sql.DB, logger *zap.Logger) *couponRepository {
	return &couponRepository{
		db:     db,
		logger: logger,
	}
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `
		SELECT id, code, type, value, is_active, usage_count, usage_limit, expires_at, created_at, updated_at
		FROM coupons
		WHERE code = $1
	`

	code = strings.ToUpper(strings.TrimSpace(code))

	var coupon domain.Coupon
	var usageLimit sql.NullInt64
	var expiresAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&coupon.ID,
		&coupon.Code,
		&coupon.Type,
		&coupon.Value,
		&coupon.IsActive,
		&coupon.UsageCount,
		&usageLimit,
		&expiresAt,
		&coupon.CreatedAt,
		&coupon.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "coupon", ID: code}
	}
	if err != nil {
		r.logger.Error("Failed to get coupon by code", zap.String("code", code), zap.Error(err))
		return nil, err
	}

	if usageLimit.Valid {
		n := int(usageLimit.Int64)
		coupon.UsageLimit = &n
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		coupon.ExpiresAt = &t
	}

	return &coupon, nil
}

// IncrementUsage bumps the usage counter in a single UPDATE so concurrent
// increments cannot lose updates.
func (r *couponRepository) IncrementUsage(ctx context.Context, code string) error {
	query := `
		UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE code = $1
	`

	code = strings.ToUpper(strings.TrimSpace(code))

	result, err := r.db.ExecContext(ctx, query, code)
	if err != nil {
		r.logger.Error("Failed to increment coupon usage", zap.String("code", code), zap.Error(err))
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return &errors.ErrNotFound{Resource: "coupon", ID: code}
	}
	return nil
}

// SetUsageCounts overwrites counters from an authoritative recount. All
// updates commit in one transaction; codes with no coupon row are skipped.
func (r *couponRepository) SetUsageCounts(ctx context.Context, counts map[string]int) (int, error) {
	if len(counts) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `
		UPDATE coupons
		SET usage_count = $2, updated_at = NOW()
		WHERE code = $1
	`

	updated := 0
	for code, count := range counts {
		code = strings.ToUpper(strings.TrimSpace(code))
		result, err := tx.ExecContext(ctx, query, code, count)
		if err != nil {
			r.logger.Error("Failed to set coupon usage count", zap.String("code", code), zap.Error(err))
			return 0, err
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}
