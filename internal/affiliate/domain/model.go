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
	ErrAffiliateNotFound = errors.New("affiliate not found")
	ErrAlreadyApplied    = errors.New("affiliate application already exists")
	ErrNotPending        = errors.New("affiliate application is not pending")
	ErrInvalidAffiliate  = errors.New("invalid affiliate")
)

const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusRejected = "rejected"
)

// Affiliate is a partner who earns commission on settled referral orders.
type Affiliate struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID         string          `json:"user_id" gorm:"type:text;not null;uniqueIndex"`
	BusinessName   string          `json:"business_name" gorm:"type:text"`
	BusinessType   string          `json:"business_type" gorm:"type:text"`
	ReferralCode   string          `json:"referral_code" gorm:"type:text;not null;uniqueIndex"`
	Status         string          `json:"status" gorm:"type:text;not null"`
	CommissionRate decimal.Decimal `json:"commission_rate" gorm:"type:numeric(5,2);not null"`
	TotalEarnings  decimal.Decimal `json:"total_earnings" gorm:"type:numeric(12,2);not null"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null"`
}

func (Affiliate) TableName() string { return "affiliates" }

func (a *Affiliate) Active() bool { return a.Status == StatusActive }

// Earning records one commission per settled order. The (affiliate_id,
// order_id) pair is unique so replayed settlements cannot double-pay.
type Earning struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	AffiliateID snowflake.ID    `json:"affiliate_id" gorm:"not null;index"`
	OrderID     snowflake.ID    `json:"order_id" gorm:"not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	RatePercent decimal.Decimal `json:"rate_percent" gorm:"type:numeric(5,2);not null"`
	Status      string          `json:"status" gorm:"type:text;not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
}

func (Earning) TableName() string { return "affiliate_earnings" }

const EarningStatusPending = "pending"

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Affiliate, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Affiliate, error)
	FindByReferralCode(ctx context.Context, db *gorm.DB, code string) (*Affiliate, error)
	Insert(ctx context.Context, db *gorm.DB, affiliate *Affiliate) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status string) error
	UpdateCommissionRate(ctx context.Context, db *gorm.DB, id snowflake.ID, rate decimal.Decimal) error
	AddEarningsTotal(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal) error
	InsertEarning(ctx context.Context, db *gorm.DB, earning *Earning) (bool, error)
	CountEarnings(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) (int64, error)
	ListEarnings(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, limit int, afterID snowflake.ID) ([]Earning, error)
}

type Service interface {
	Apply(ctx context.Context, userID, businessName, businessType string) (*Affiliate, error)
	Get(ctx context.Context, userID string) (*Affiliate, error)
	Approve(ctx context.Context, id snowflake.ID) (*Affiliate, error)
	Reject(ctx context.Context, id snowflake.ID) (*Affiliate, error)
	RecordCommission(ctx context.Context, tx *gorm.DB, affiliateID snowflake.ID, orderID snowflake.ID, orderTotal decimal.Decimal) (bool, error)
	ListEarnings(ctx context.Context, userID string, limit int, pageToken string) ([]Earning, string, error)
}
