package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponInactive    = errors.New("coupon inactive or expired")
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	ErrDuplicateCode     = errors.New("coupon code already exists")
	ErrInvalidCoupon     = errors.New("invalid coupon")
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon applies a discount at checkout. Affiliate-owned coupons carry the
// owning affiliate so settled orders can be attributed.
type Coupon struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	Code          string          `json:"code" gorm:"type:text;not null;uniqueIndex"`
	DiscountType  string          `json:"discount_type" gorm:"type:text;not null"`
	DiscountValue decimal.Decimal `json:"discount_value" gorm:"type:numeric(12,2);not null"`
	MaxUses       *int            `json:"max_uses"`
	CurrentUses   int             `json:"current_uses" gorm:"not null;default:0"`
	ExpiresAt     *time.Time      `json:"expires_at"`
	IsActive      bool            `json:"is_active" gorm:"not null;default:true"`
	AffiliateID   *snowflake.ID   `json:"affiliate_id" gorm:"index"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`
}

func (Coupon) TableName() string { return "coupons" }

// Exhausted reports whether the usage ceiling has been reached.
func (c *Coupon) Exhausted() bool {
	return c.MaxUses != nil && c.CurrentUses >= *c.MaxUses
}

// Redeemable reports whether the coupon is active and unexpired at t.
func (c *Coupon) Redeemable(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(t) {
		return false
	}
	return true
}

type Repository interface {
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Coupon, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Coupon, error)
	FindByAffiliate(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) ([]Coupon, error)
	Insert(ctx context.Context, db *gorm.DB, coupon *Coupon) error
	IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	RaiseUsageCeiling(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, to int) error
	ClearUsageCeiling(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) error
	SetActiveByAffiliate(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, active bool) error
}

type Service interface {
	FindOrProvision(ctx context.Context, code string) (*Coupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Coupon, error)
	Create(ctx context.Context, coupon *Coupon) (*Coupon, error)
	Validate(ctx context.Context, code string) (*Coupon, error)
}
