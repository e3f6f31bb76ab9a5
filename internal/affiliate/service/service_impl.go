package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/kadkita/kadkita/internal/affiliate/domain"
	"github.com/kadkita/kadkita/internal/affiliate/tier"
	"github.com/kadkita/kadkita/internal/config"
	coupondomain "github.com/kadkita/kadkita/internal/coupon/domain"
	obsmetrics "github.com/kadkita/kadkita/internal/observability/metrics"
	"github.com/kadkita/kadkita/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       affiliatedomain.Repository
	CouponRepo coupondomain.Repository
	Policy     *config.AffiliatePolicyHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       affiliatedomain.Repository
	couponRepo coupondomain.Repository
	policy     *config.AffiliatePolicyHolder
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) affiliatedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("affiliate.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		couponRepo: p.CouponRepo,
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Apply(ctx context.Context, userID, businessName, businessType string) (*affiliatedomain.Affiliate, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, affiliatedomain.ErrInvalidAffiliate
	}

	existing, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, affiliatedomain.ErrAlreadyApplied
	}

	now := time.Now().UTC()
	id := s.genID.Generate()
	item := &affiliatedomain.Affiliate{
		ID:             id,
		UserID:         userID,
		BusinessName:   strings.TrimSpace(businessName),
		BusinessType:   strings.TrimSpace(businessType),
		ReferralCode:   referralCode(id),
		Status:         affiliatedomain.StatusPending,
		CommissionRate: decimal.NewFromFloat(s.policy.Get().DefaultRatePercent),
		TotalEarnings:  decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, item); err != nil {
		return nil, err
	}

	s.log.Info("affiliate applied",
		zap.Int64("affiliate_id", id.Int64()),
		zap.String("referral_code", item.ReferralCode),
	)
	return item, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*affiliatedomain.Affiliate, error) {
	item, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, affiliatedomain.ErrAffiliateNotFound
	}
	return item, nil
}

// Approve activates the application and provisions the affiliate's referral
// coupon so the code is redeemable immediately.
func (s *Service) Approve(ctx context.Context, id snowflake.ID) (*affiliatedomain.Affiliate, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, affiliatedomain.ErrAffiliateNotFound
	}
	if item.Status != affiliatedomain.StatusPending {
		return nil, affiliatedomain.ErrNotPending
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateStatus(ctx, tx, id, affiliatedomain.StatusActive); err != nil {
			return err
		}

		now := time.Now().UTC()
		coupon := &coupondomain.Coupon{
			ID:            s.genID.Generate(),
			Code:          item.ReferralCode,
			DiscountType:  coupondomain.DiscountTypePercentage,
			DiscountValue: decimal.NewFromFloat(s.policy.Get().FallbackDiscountPct),
			IsActive:      true,
			AffiliateID:   &item.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.couponRepo.Insert(ctx, tx, coupon); err != nil {
			if err == coupondomain.ErrDuplicateCode {
				return s.couponRepo.SetActiveByAffiliate(ctx, tx, item.ID, true)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	item.Status = affiliatedomain.StatusActive
	s.log.Info("affiliate approved", zap.Int64("affiliate_id", id.Int64()))
	return item, nil
}

// Reject closes the application and deactivates any coupons already
// provisioned for the referral code.
func (s *Service) Reject(ctx context.Context, id snowflake.ID) (*affiliatedomain.Affiliate, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, affiliatedomain.ErrAffiliateNotFound
	}
	if item.Status != affiliatedomain.StatusPending {
		return nil, affiliatedomain.ErrNotPending
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateStatus(ctx, tx, id, affiliatedomain.StatusRejected); err != nil {
			return err
		}
		return s.couponRepo.SetActiveByAffiliate(ctx, tx, id, false)
	})
	if err != nil {
		return nil, err
	}

	item.Status = affiliatedomain.StatusRejected
	s.log.Info("affiliate rejected", zap.Int64("affiliate_id", id.Int64()))
	return item, nil
}

// RecordCommission books one commission for a settled order inside the
// caller's transaction. It is idempotent per (affiliate, order): a replayed
// settlement books nothing and triggers no tier re-evaluation. Returns whether
// a new earning was recorded.
func (s *Service) RecordCommission(ctx context.Context, tx *gorm.DB, affiliateID snowflake.ID, orderID snowflake.ID, orderTotal decimal.Decimal) (bool, error) {
	item, err := s.repo.FindByID(ctx, tx, affiliateID)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, affiliatedomain.ErrAffiliateNotFound
	}
	if !item.Active() {
		return false, nil
	}

	amount := orderTotal.Mul(item.CommissionRate).Div(decimal.NewFromInt(100)).Round(2)
	earning := &affiliatedomain.Earning{
		ID:          s.genID.Generate(),
		AffiliateID: affiliateID,
		OrderID:     orderID,
		Amount:      amount,
		RatePercent: item.CommissionRate,
		Status:      affiliatedomain.EarningStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	inserted, err := s.repo.InsertEarning(ctx, tx, earning)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}

	if err := s.repo.AddEarningsTotal(ctx, tx, affiliateID, amount); err != nil {
		return false, err
	}

	if err := s.evaluateTier(ctx, tx, item); err != nil {
		return false, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordCommission(ctx)
	}
	return true, nil
}

func (s *Service) evaluateTier(ctx context.Context, tx *gorm.DB, item *affiliatedomain.Affiliate) error {
	count, err := s.repo.CountEarnings(ctx, tx, item.ID)
	if err != nil {
		return err
	}

	change := tier.Evaluate(s.policy.Get(), count, item.CommissionRate)
	if change == nil {
		return nil
	}

	if err := s.repo.UpdateCommissionRate(ctx, tx, item.ID, change.RatePercent); err != nil {
		return err
	}
	if change.RemoveUsageCeiling {
		if err := s.couponRepo.ClearUsageCeiling(ctx, tx, item.ID); err != nil {
			return err
		}
	} else if change.MaxUses != nil {
		if err := s.couponRepo.RaiseUsageCeiling(ctx, tx, item.ID, *change.MaxUses); err != nil {
			return err
		}
	}

	s.log.Info("affiliate tier upgraded",
		zap.Int64("affiliate_id", item.ID.Int64()),
		zap.Int64("sales_count", count),
		zap.String("new_rate", change.RatePercent.String()),
	)
	return nil
}

func (s *Service) ListEarnings(ctx context.Context, userID string, limit int, pageToken string) ([]affiliatedomain.Earning, string, error) {
	item, err := s.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	if limit <= 0 || limit > 250 {
		limit = 10
	}

	var afterID snowflake.ID
	if strings.TrimSpace(pageToken) != "" {
		cursor, err := pagination.DecodeCursor(pageToken)
		if err != nil {
			return nil, "", err
		}
		parsed, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, "", err
		}
		afterID = snowflake.ID(parsed)
	}

	items, err := s.repo.ListEarnings(ctx, s.db, item.ID, limit+1, afterID)
	if err != nil {
		return nil, "", err
	}

	nextToken := ""
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		nextToken, err = pagination.EncodeCursor(pagination.Cursor{
			ID: strconv.FormatInt(last.ID.Int64(), 10),
		})
		if err != nil {
			return nil, "", err
		}
	}
	return items, nextToken, nil
}

func referralCode(id snowflake.ID) string {
	return "KAD" + strings.ToUpper(strconv.FormatInt(id.Int64(), 36))
}
