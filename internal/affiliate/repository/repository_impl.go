package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kadkita/kadkita/internal/affiliate/domain"
	"github.com/kadkita/kadkita/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const affiliateColumns = `id, user_id, business_name, business_type, referral_code,
	status, commission_rate, total_earnings, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Affiliate, error) {
	var item domain.Affiliate
	err := conn.WithContext(ctx).Raw(
		`SELECT `+affiliateColumns+`
		 FROM affiliates
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

func (r *repo) FindByUserID(ctx context.Context, conn *gorm.DB, userID string) (*domain.Affiliate, error) {
	var item domain.Affiliate
	err := conn.WithContext(ctx).Raw(
		`SELECT `+affiliateColumns+`
		 FROM affiliates
		 WHERE user_id = ?
		 LIMIT 1`,
		strings.TrimSpace(userID),
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByReferralCode(ctx context.Context, conn *gorm.DB, code string) (*domain.Affiliate, error) {
	var item domain.Affiliate
	err := conn.WithContext(ctx).Raw(
		`SELECT `+affiliateColumns+`
		 FROM affiliates
		 WHERE LOWER(referral_code) = LOWER(?)
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

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, affiliate *domain.Affiliate) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO affiliates (
			id, user_id, business_name, business_type, referral_code,
			status, commission_rate, total_earnings, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		affiliate.ID,
		affiliate.UserID,
		affiliate.BusinessName,
		affiliate.BusinessType,
		affiliate.ReferralCode,
		affiliate.Status,
		affiliate.CommissionRate,
		affiliate.TotalEarnings,
		affiliate.CreatedAt,
		affiliate.UpdatedAt,
	).Error
	if err != nil && db.IsDuplicateKeyErr(err) {
		return domain.ErrAlreadyApplied
	}
	return err
}

func (r *repo) UpdateStatus(ctx context.Context, conn *gorm.DB, id snowflake.ID, status string) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE affiliates
		 SET status = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) UpdateCommissionRate(ctx context.Context, conn *gorm.DB, id snowflake.ID, rate decimal.Decimal) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE affiliates
		 SET commission_rate = ?, updated_at = ?
		 WHERE id = ?`,
		rate,
		time.Now().UTC(),
		id,
	).Error
}

// AddEarningsTotal accumulates in SQL so concurrent settlements never clobber
// each other's totals.
func (r *repo) AddEarningsTotal(ctx context.Context, conn *gorm.DB, id snowflake.ID, amount decimal.Decimal) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE affiliates
		 SET total_earnings = total_earnings + ?, updated_at = ?
		 WHERE id = ?`,
		amount,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) InsertEarning(ctx context.Context, conn *gorm.DB, earning *domain.Earning) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`INSERT INTO affiliate_earnings (
			id, affiliate_id, order_id, amount, rate_percent, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (affiliate_id, order_id) DO NOTHING`,
		earning.ID,
		earning.AffiliateID,
		earning.OrderID,
		earning.Amount,
		earning.RatePercent,
		earning.Status,
		earning.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) CountEarnings(ctx context.Context, conn *gorm.DB, affiliateID snowflake.ID) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM affiliate_earnings WHERE affiliate_id = ?`,
		affiliateID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ListEarnings(ctx context.Context, conn *gorm.DB, affiliateID snowflake.ID, limit int, afterID snowflake.ID) ([]domain.Earning, error) {
	var items []domain.Earning
	query := `SELECT id, affiliate_id, order_id, amount, rate_percent, status, created_at
		 FROM affiliate_earnings
		 WHERE affiliate_id = ?`
	args := []interface{}{affiliateID}
	if afterID != 0 {
		query += ` AND id < ?`
		args = append(args, afterID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	err := conn.WithContext(ctx).Raw(query, args...).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
