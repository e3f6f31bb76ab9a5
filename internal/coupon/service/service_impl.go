package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/kadkita/kadkita/internal/affiliate/domain"
	"github.com/kadkita/kadkita/internal/config"
	coupondomain "github.com/kadkita/kadkita/internal/coupon/domain"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          coupondomain.Repository
	AffiliateRepo affiliatedomain.Repository
	Policy        *config.AffiliatePolicyHolder
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          coupondomain.Repository
	affiliateRepo affiliatedomain.Repository
	policy        *config.AffiliatePolicyHolder
}

func NewService(p Params) coupondomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("coupon.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		affiliateRepo: p.AffiliateRepo,
		policy:        p.Policy,
	}
}

// FindOrProvision resolves a code to a coupon. When no coupon exists but the
// code matches an active affiliate referral code, a percentage coupon is
// provisioned on the fly so older referral links keep working.
func (s *Service) FindOrProvision(ctx context.Context, code string) (*coupondomain.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, coupondomain.ErrCouponNotFound
	}

	found, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if found != nil {
		return found, nil
	}

	aff, err := s.affiliateRepo.FindByReferralCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if aff == nil || !aff.Active() {
		return nil, coupondomain.ErrCouponNotFound
	}

	now := time.Now().UTC()
	provisioned := &coupondomain.Coupon{
		ID:            s.genID.Generate(),
		Code:          aff.ReferralCode,
		DiscountType:  coupondomain.DiscountTypePercentage,
		DiscountValue: decimal.NewFromFloat(s.policy.Get().FallbackDiscountPct),
		IsActive:      true,
		AffiliateID:   &aff.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, provisioned); err != nil {
		if err == coupondomain.ErrDuplicateCode {
			// Lost the provisioning race; the winner's row is authoritative.
			return s.repo.FindByCode(ctx, s.db, code)
		}
		return nil, err
	}

	s.log.Info("provisioned referral coupon",
		zap.String("code", provisioned.Code),
		zap.Int64("affiliate_id", aff.ID.Int64()),
	)
	return provisioned, nil
}

// Redeem re-reads the coupon inside the settlement transaction, enforces the
// usage ceiling and bumps the counter atomically. Returns the coupon so the
// caller can attribute the sale to its affiliate.
func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*coupondomain.Coupon, error) {
	item, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, coupondomain.ErrCouponNotFound
	}
	if !item.Redeemable(time.Now().UTC()) {
		return nil, coupondomain.ErrCouponInactive
	}
	if item.Exhausted() {
		return nil, coupondomain.ErrUsageLimitReached
	}
	if err := s.repo.IncrementUsage(ctx, tx, id); err != nil {
		return nil, err
	}
	item.CurrentUses++
	return item, nil
}

func (s *Service) Create(ctx context.Context, coupon *coupondomain.Coupon) (*coupondomain.Coupon, error) {
	if coupon == nil {
		return nil, coupondomain.ErrInvalidCoupon
	}
	coupon.Code = strings.TrimSpace(coupon.Code)
	if coupon.Code == "" {
		return nil, coupondomain.ErrInvalidCoupon
	}
	switch coupon.DiscountType {
	case coupondomain.DiscountTypePercentage:
		if coupon.DiscountValue.LessThanOrEqual(decimal.Zero) || coupon.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
			return nil, coupondomain.ErrInvalidCoupon
		}
	case coupondomain.DiscountTypeFixed:
		if coupon.DiscountValue.LessThanOrEqual(decimal.Zero) {
			return nil, coupondomain.ErrInvalidCoupon
		}
	default:
		return nil, coupondomain.ErrInvalidCoupon
	}
	if coupon.MaxUses != nil && *coupon.MaxUses <= 0 {
		return nil, coupondomain.ErrInvalidCoupon
	}

	now := time.Now().UTC()
	coupon.ID = s.genID.Generate()
	coupon.CurrentUses = 0
	coupon.IsActive = true
	coupon.CreatedAt = now
	coupon.UpdatedAt = now

	if err := s.repo.Insert(ctx, s.db, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

// Validate resolves a code and reports whether it is currently redeemable.
func (s *Service) Validate(ctx context.Context, code string) (*coupondomain.Coupon, error) {
	item, err := s.FindOrProvision(ctx, code)
	if err != nil {
		return nil, err
	}
	if !item.Redeemable(time.Now().UTC()) {
		return nil, coupondomain.ErrCouponInactive
	}
	if item.Exhausted() {
		return nil, coupondomain.ErrUsageLimitReached
	}
	return item, nil
}
