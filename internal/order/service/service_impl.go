package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/kadkita/kadkita/internal/affiliate/domain"
	"github.com/kadkita/kadkita/internal/billplz"
	billplzdomain "github.com/kadkita/kadkita/internal/billplz/domain"
	"github.com/kadkita/kadkita/internal/config"
	coupondomain "github.com/kadkita/kadkita/internal/coupon/domain"
	invitationdomain "github.com/kadkita/kadkita/internal/invitation/domain"
	obslogger "github.com/kadkita/kadkita/internal/observability/logger"
	obsmetrics "github.com/kadkita/kadkita/internal/observability/metrics"
	orderdomain "github.com/kadkita/kadkita/internal/order/domain"
	"github.com/kadkita/kadkita/internal/pricing"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Config      config.Config
	Repo        orderdomain.Repository
	Pricing     *pricing.Resolver
	Coupons     coupondomain.Service
	Affiliates  affiliatedomain.Service
	Invitations invitationdomain.Repository
	Gateway     billplzdomain.Client
	Verifier    *billplz.Verifier
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	cfg         config.Config
	repo        orderdomain.Repository
	pricing     *pricing.Resolver
	coupons     coupondomain.Service
	affiliates  affiliatedomain.Service
	invitations invitationdomain.Repository
	gateway     billplzdomain.Client
	verifier    *billplz.Verifier
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) orderdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		cfg:         p.Config,
		repo:        p.Repo,
		pricing:     p.Pricing,
		coupons:     p.Coupons,
		affiliates:  p.Affiliates,
		invitations: p.Invitations,
		gateway:     p.Gateway,
		verifier:    p.Verifier,
		obsMetrics:  p.ObsMetrics,
	}
}

// CreateCheckout resolves the price, persists a pending order and opens a
// hosted payment session. Fully discounted orders settle immediately and
// never touch the provider.
func (s *Service) CreateCheckout(ctx context.Context, req orderdomain.CheckoutRequest) (*orderdomain.CheckoutResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || strings.TrimSpace(req.PlanID) == "" {
		return nil, orderdomain.ErrInvalidRequest
	}

	quote, err := s.pricing.Resolve(ctx, req.PlanID, req.CouponCode)
	if err != nil {
		return nil, err
	}

	if req.InvitationID != nil {
		inv, err := s.invitations.FindByID(ctx, s.db, *req.InvitationID)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			return nil, invitationdomain.ErrInvitationNotFound
		}
		if inv.UserID != req.UserID {
			return nil, invitationdomain.ErrNotOwner
		}
	}

	now := time.Now().UTC()
	order := &orderdomain.Order{
		ID:           s.genID.Generate(),
		UserID:       req.UserID,
		InvitationID: req.InvitationID,
		Amount:       quote.Total,
		Status:       orderdomain.StatusPending,
		PlanTier:     quote.Plan.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if quote.Coupon != nil {
		order.CouponID = &quote.Coupon.ID
	}

	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordCheckout(ctx, order.PlanTier, quote.Free())
	}

	if quote.Free() {
		if err := s.CompleteOrder(ctx, order.ID, orderdomain.PaymentMethodCoupon); err != nil {
			return nil, err
		}
		return &orderdomain.CheckoutResult{
			OrderID:     order.ID,
			CheckoutURL: s.successURL(order.ID),
			Amount:      order.Amount,
			Free:        true,
		}, nil
	}

	bill, err := s.gateway.CreateBill(ctx, billplzdomain.CreateBillRequest{
		Email:       req.Email,
		Name:        req.Name,
		Mobile:      req.Phone,
		Amount:      order.Amount,
		Description: fmt.Sprintf("Kad Kita %s plan", quote.Plan.Name),
		Reference1:  order.ID.String(),
		CallbackURL: s.callbackURL(),
		RedirectURL: s.redirectURL(req.RedirectURL, order.ID),
	})
	if err != nil {
		// The order stays pending so a retried checkout or manual
		// reconciliation can still pick it up.
		return nil, err
	}

	if err := s.repo.SetProviderPaymentID(ctx, s.db, order.ID, bill.ID); err != nil {
		return nil, err
	}

	return &orderdomain.CheckoutResult{
		OrderID:     order.ID,
		CheckoutURL: bill.URL,
		Amount:      order.Amount,
	}, nil
}

// CompleteOrder settles a pending order exactly once. All side effects,
// including the coupon increment, commission booking and the invitation
// upgrade, commit in one transaction with the status transition.
func (s *Service) CompleteOrder(ctx context.Context, id snowflake.ID, paymentMethod string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrOrderNotFound
		}

		settled, err := s.repo.MarkCompleted(ctx, tx, id, paymentMethod)
		if err != nil {
			return err
		}
		if !settled {
			if order.Status == orderdomain.StatusCompleted {
				return orderdomain.ErrAlreadySettled
			}
			return fmt.Errorf("order %s cannot settle from status %s", id, order.Status)
		}

		if order.CouponID != nil {
			coupon, err := s.coupons.Redeem(ctx, tx, *order.CouponID)
			if err != nil {
				return err
			}
			if coupon.AffiliateID != nil {
				if _, err := s.affiliates.RecordCommission(ctx, tx, *coupon.AffiliateID, order.ID, order.Amount); err != nil {
					return err
				}
			}
		}

		if order.InvitationID != nil {
			if err := s.invitations.MarkPaid(ctx, tx, *order.InvitationID, order.PlanTier); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordSettlement(ctx, paymentMethod)
	}
	obslogger.FromContext(ctx).Info("order settled",
		zap.Int64("order_id", id.Int64()),
		zap.String("payment_method", paymentMethod),
	)
	return nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*orderdomain.Order, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	return item, nil
}

func (s *Service) successURL(id snowflake.ID) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/checkout/success?order_id=" + id.String()
}

func (s *Service) callbackURL() string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/api/payments/webhooks/billplz"
}

func (s *Service) redirectURL(requested string, id snowflake.ID) string {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		return requested
	}
	return s.successURL(id)
}
