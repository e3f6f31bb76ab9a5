package tier_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kadkita/kadkita/internal/affiliate/tier"
	"github.com/kadkita/kadkita/internal/config"
)

func TestEvaluateBelowFirstThreshold(t *testing.T) {
	policy := config.DefaultAffiliatePolicyConfig()

	for _, count := range []int64{0, 1, 9} {
		change := tier.Evaluate(policy, count, decimal.NewFromInt(20))
		if change != nil {
			t.Fatalf("expected no change at %d sales, got %+v", count, change)
		}
	}
}

func TestEvaluateMidTier(t *testing.T) {
	policy := config.DefaultAffiliatePolicyConfig()

	change := tier.Evaluate(policy, 10, decimal.NewFromInt(20))
	if change == nil {
		t.Fatal("expected upgrade at 10 sales")
	}
	if !change.RatePercent.Equal(decimal.NewFromInt(22)) {
		t.Fatalf("expected rate 22, got %s", change.RatePercent)
	}
	if change.RemoveUsageCeiling {
		t.Fatal("mid tier must not lift the ceiling entirely")
	}
	if change.MaxUses == nil || *change.MaxUses != 25 {
		t.Fatalf("expected ceiling raise to 25, got %+v", change.MaxUses)
	}
}

func TestEvaluateTopTier(t *testing.T) {
	policy := config.DefaultAffiliatePolicyConfig()

	change := tier.Evaluate(policy, 25, decimal.NewFromInt(22))
	if change == nil {
		t.Fatal("expected upgrade at 25 sales")
	}
	if !change.RatePercent.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected rate 25, got %s", change.RatePercent)
	}
	if !change.RemoveUsageCeiling {
		t.Fatal("top tier must lift the usage ceiling")
	}
}

func TestEvaluateOnlyHighestTierApplies(t *testing.T) {
	policy := config.DefaultAffiliatePolicyConfig()

	change := tier.Evaluate(policy, 40, decimal.NewFromInt(20))
	if change == nil {
		t.Fatal("expected upgrade")
	}
	if !change.RatePercent.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected top tier rate, got %s", change.RatePercent)
	}
}

func TestEvaluateNeverDowngrades(t *testing.T) {
	policy := config.DefaultAffiliatePolicyConfig()

	// Rate already at or above every tier the count qualifies for.
	if change := tier.Evaluate(policy, 12, decimal.NewFromInt(22)); change != nil {
		t.Fatalf("expected no change when rate already matches tier, got %+v", change)
	}
	if change := tier.Evaluate(policy, 30, decimal.NewFromInt(25)); change != nil {
		t.Fatalf("expected no change when rate already at top, got %+v", change)
	}

	// A policy edit that lowers the ladder must not pull rates back down.
	lowered := config.AffiliatePolicyConfig{
		DefaultRatePercent:  20,
		FallbackDiscountPct: 10,
		Tiers: []config.AffiliateTier{
			{MinSales: 10, RatePercent: 15},
		},
	}
	if change := tier.Evaluate(lowered, 50, decimal.NewFromInt(25)); change != nil {
		t.Fatalf("expected no downgrade, got %+v", change)
	}
}
