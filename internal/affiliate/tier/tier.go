// Package tier evaluates the affiliate commission ladder. Evaluation is a
// pure function of the policy, the lifetime settled-sale count and the
// affiliate's current rate, so it can run inside a settlement transaction.
package tier

import (
	"github.com/shopspring/decimal"

	"github.com/kadkita/kadkita/internal/config"
)

// Change describes a tier upgrade to apply. RemoveUsageCeiling and MaxUses
// are mutually exclusive.
type Change struct {
	RatePercent        decimal.Decimal
	MaxUses            *int
	RemoveUsageCeiling bool
}

// Evaluate returns the upgrade owed for the given sale count, or nil when no
// upgrade applies. Rates only ever move up; a policy edit that lowers a tier
// never downgrades an affiliate already above it.
func Evaluate(policy config.AffiliatePolicyConfig, salesCount int64, currentRate decimal.Decimal) *Change {
	var best *config.AffiliateTier
	for i := range policy.Tiers {
		t := &policy.Tiers[i]
		if salesCount < t.MinSales {
			continue
		}
		if best == nil || t.RatePercent > best.RatePercent {
			best = t
		}
	}
	if best == nil {
		return nil
	}

	rate := decimal.NewFromFloat(best.RatePercent)
	if rate.LessThanOrEqual(currentRate) {
		return nil
	}

	change := &Change{RatePercent: rate}
	if best.UnlimitedCoupon {
		change.RemoveUsageCeiling = true
	} else if best.CouponMaxUses != nil {
		v := *best.CouponMaxUses
		change.MaxUses = &v
	}
	return change
}
