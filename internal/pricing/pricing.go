// Package pricing computes the charge amount for a checkout. Resolution is
// read-only with respect to coupon usage: a coupon is consumed at settlement,
// never at quote time, so an abandoned checkout burns nothing.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	coupondomain "github.com/kadkita/kadkita/internal/coupon/domain"
	plandomain "github.com/kadkita/kadkita/internal/plan/domain"
)

// Quote is a resolved checkout price.
type Quote struct {
	Plan     *plandomain.Plan
	Coupon   *coupondomain.Coupon
	Base     decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Free reports whether the quote requires no payment.
func (q *Quote) Free() bool { return q.Total.LessThanOrEqual(decimal.Zero) }

type Params struct {
	fx.In

	Log     *zap.Logger
	Catalog plandomain.Catalog
	Coupons coupondomain.Service
}

type Resolver struct {
	log     *zap.Logger
	catalog plandomain.Catalog
	coupons coupondomain.Service
}

func NewResolver(p Params) *Resolver {
	return &Resolver{
		log:     p.Log.Named("pricing.resolver"),
		catalog: p.Catalog,
		coupons: p.Coupons,
	}
}

// Resolve maps a plan to its base price and applies the coupon when one is
// given and applicable. An unusable coupon code is not an error here; the
// quote simply carries no discount.
func (r *Resolver) Resolve(ctx context.Context, planID, couponCode string) (*Quote, error) {
	item, err := r.catalog.Get(ctx, planID)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		Plan:     item,
		Base:     item.BasePrice,
		Discount: decimal.Zero,
		Total:    item.BasePrice,
	}
	if couponCode == "" {
		return quote, nil
	}

	coupon, err := r.coupons.FindOrProvision(ctx, couponCode)
	if err != nil {
		if err == coupondomain.ErrCouponNotFound {
			return quote, nil
		}
		return nil, err
	}
	if !coupon.Redeemable(time.Now().UTC()) || coupon.Exhausted() {
		r.log.Debug("coupon not applicable at quote time", zap.String("code", coupon.Code))
		return quote, nil
	}

	quote.Coupon = coupon
	quote.Discount = discountFor(item.BasePrice, coupon)
	quote.Total = item.BasePrice.Sub(quote.Discount).Round(2)
	return quote, nil
}

func discountFor(base decimal.Decimal, coupon *coupondomain.Coupon) decimal.Decimal {
	switch coupon.DiscountType {
	case coupondomain.DiscountTypePercentage:
		return base.Mul(coupon.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	case coupondomain.DiscountTypeFixed:
		if coupon.DiscountValue.GreaterThan(base) {
			return base
		}
		return coupon.DiscountValue
	default:
		return decimal.Zero
	}
}

var Module = fx.Module("pricing.resolver",
	fx.Provide(NewResolver),
)
