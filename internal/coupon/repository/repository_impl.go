package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/kadkita/kadkita/internal/coupon/domain"
	"github.com/kadkita/kadkita/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByCode(ctx context.Context, conn *gorm.DB, code string) (*domain.Coupon, error) {
	var item domain.Coupon
	err := conn.WithContext(ctx).Raw(
		`SELECT id, code, discount_type, discount_value, max_uses, current_uses,
			expires_at, is_active, affiliate_id, created_at, updated_at
		 FROM coupons
		 WHERE LOWER(code) = LOWER(?)
		 LIMIT 1`,
		strings.TrimSpace(code),
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Coupon, error) {
	var item domain.Coupon
	err := conn.WithContext(ctx).Raw(
		`SELECT id, code, discount_type, discount_value, max_uses, current_uses,
			expires_at, is_active, affiliate_id, created_at, updated_at
		 FROM coupons
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByAffiliate(ctx context.Context, conn *gorm.DB, affiliateID snowflake.ID) ([]domain.Coupon, error) {
	var items []domain.Coupon
	err := conn.WithContext(ctx).Raw(
		`SELECT id, code, discount_type, discount_value, max_uses, current_uses,
			expires_at, is_active, affiliate_id, created_at, updated_at
		 FROM coupons
		 WHERE affiliate_id = ?
		 ORDER BY created_at ASC`,
		affiliateID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, coupon *domain.Coupon) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO coupons (
			id, code, discount_type, discount_value, max_uses, current_uses,
			expires_at, is_active, affiliate_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		coupon.ID,
		coupon.Code,
		coupon.DiscountType,
		coupon.DiscountValue,
		coupon.MaxUses,
		coupon.CurrentUses,
		coupon.ExpiresAt,
		coupon.IsActive,
		coupon.AffiliateID,
		coupon.CreatedAt,
		coupon.UpdatedAt,
	).Error
	if err != nil && db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateCode
	}
	return err
}

// IncrementUsage bumps current_uses in the database, never in memory, so
// concurrent settlements cannot lose counts.
func (r *repo) IncrementUsage(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE coupons
		 SET current_uses = current_uses + 1, updated_at = ?
		 WHERE id = ?`,
		time.Now().UTC(),
		id,
	).Error
}

// RaiseUsageCeiling only ever raises; a coupon already unlimited or above the
// target is left alone.
func (r *repo) RaiseUsageCeiling(ctx context.Context, conn *gorm.DB, affiliateID snowflake.ID, to int) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE coupons
		 SET max_uses = ?, updated_at = ?
		 WHERE affiliate_id = ? AND max_uses IS NOT NULL AND max_uses < ?`,
		to,
		time.Now().UTC(),
		affiliateID,
		to,
	).Error
}

func (r *repo) ClearUsageCeiling(ctx context.Context, conn *gorm.DB, affiliateID snowflake.ID) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE coupons
		 SET max_uses = NULL, updated_at = ?
		 WHERE affiliate_id = ?`,
		time.Now().UTC(),
		affiliateID,
	).Error
}

func (r *repo) SetActiveByAffiliate(ctx context.Context, conn *gorm.DB, affiliateID snowflake.ID, active bool) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE coupons
		 SET is_active = ?, updated_at = ?
		 WHERE affiliate_id = ?`,
		active,
		time.Now().UTC(),
		affiliateID,
	).Error
}
