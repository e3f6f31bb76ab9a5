package pricing_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	affiliaterepo "github.com/kadkita/kadkita/internal/affiliate/repository"
	"github.com/kadkita/kadkita/internal/config"
	coupondomain "github.com/kadkita/kadkita/internal/coupon/domain"
	couponrepo "github.com/kadkita/kadkita/internal/coupon/repository"
	couponservice "github.com/kadkita/kadkita/internal/coupon/service"
	plandomain "github.com/kadkita/kadkita/internal/plan/domain"
	planservice "github.com/kadkita/kadkita/internal/plan/service"
	"github.com/kadkita/kadkita/internal/pricing"
)

var schema = []string{
	`CREATE TABLE affiliates (
		id INTEGER PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		business_name TEXT NOT NULL DEFAULT '',
		business_type TEXT NOT NULL DEFAULT '',
		referral_code TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		commission_rate NUMERIC NOT NULL,
		total_earnings NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE coupons (
		id INTEGER PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		discount_type TEXT NOT NULL,
		discount_value NUMERIC NOT NULL,
		max_uses INTEGER,
		current_uses INTEGER NOT NULL DEFAULT 0,
		expires_at DATETIME,
		is_active BOOLEAN NOT NULL,
		affiliate_id INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

func newResolver(t *testing.T) (*pricing.Resolver, coupondomain.Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:pricing_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	genID, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	policy, err := config.NewAffiliatePolicyHolder()
	if err != nil {
		t.Fatalf("policy holder: %v", err)
	}
	coupons := couponservice.NewService(couponservice.Params{
		DB:            conn,
		Log:           zap.NewNop(),
		GenID:         genID,
		Repo:          couponrepo.Provide(),
		AffiliateRepo: affiliaterepo.Provide(),
		Policy:        policy,
	})
	resolver := pricing.NewResolver(pricing.Params{
		Log:     zap.NewNop(),
		Catalog: planservice.NewCatalog(planservice.Params{Log: zap.NewNop()}),
		Coupons: coupons,
	})
	return resolver, coupons
}

func TestResolveWithoutCoupon(t *testing.T) {
	resolver, _ := newResolver(t)

	quote, err := resolver.Resolve(context.Background(), "premium", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !quote.Total.Equal(decimal.NewFromInt(49)) {
		t.Fatalf("expected total 49, got %s", quote.Total)
	}
	if quote.Coupon != nil {
		t.Fatal("expected no coupon on the quote")
	}
	if quote.Free() {
		t.Fatal("expected a payable quote")
	}
}

func TestResolveUnknownPlan(t *testing.T) {
	resolver, _ := newResolver(t)

	_, err := resolver.Resolve(context.Background(), "platinum", "")
	if !errors.Is(err, plandomain.ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestResolvePercentageDiscount(t *testing.T) {
	resolver, coupons := newResolver(t)
	ctx := context.Background()

	if _, err := coupons.Create(ctx, &coupondomain.Coupon{
		Code:          "SAVE10",
		DiscountType:  coupondomain.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
	}); err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	quote, err := resolver.Resolve(ctx, "premium", "SAVE10")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !quote.Discount.Equal(decimal.RequireFromString("4.90")) {
		t.Fatalf("expected discount 4.90, got %s", quote.Discount)
	}
	if !quote.Total.Equal(decimal.RequireFromString("44.10")) {
		t.Fatalf("expected total 44.10, got %s", quote.Total)
	}
}

func TestResolveFixedDiscount(t *testing.T) {
	resolver, coupons := newResolver(t)
	ctx := context.Background()

	if _, err := coupons.Create(ctx, &coupondomain.Coupon{
		Code:          "RM20OFF",
		DiscountType:  coupondomain.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(20),
	}); err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	quote, err := resolver.Resolve(ctx, "basic", "RM20OFF")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !quote.Total.Equal(decimal.RequireFromString("9.00")) {
		t.Fatalf("expected total 9.00, got %s", quote.Total)
	}
}

func TestResolveFixedDiscountClampsAtZero(t *testing.T) {
	resolver, coupons := newResolver(t)
	ctx := context.Background()

	if _, err := coupons.Create(ctx, &coupondomain.Coupon{
		Code:          "BIGOFF",
		DiscountType:  coupondomain.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(50),
	}); err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	quote, err := resolver.Resolve(ctx, "basic", "BIGOFF")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !quote.Total.IsZero() {
		t.Fatalf("expected total 0, got %s", quote.Total)
	}
	if !quote.Free() {
		t.Fatal("expected a free quote")
	}
}

func TestResolveUnusableCouponIsNotAnError(t *testing.T) {
	resolver, coupons := newResolver(t)
	ctx := context.Background()

	// Unknown code.
	quote, err := resolver.Resolve(ctx, "basic", "NOSUCHCODE")
	if err != nil {
		t.Fatalf("resolve with unknown code: %v", err)
	}
	if !quote.Total.Equal(decimal.NewFromInt(29)) {
		t.Fatalf("expected base price, got %s", quote.Total)
	}

	// Expired coupon.
	past := time.Now().UTC().Add(-time.Hour)
	if _, err := coupons.Create(ctx, &coupondomain.Coupon{
		Code:          "EXPIRED",
		DiscountType:  coupondomain.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		ExpiresAt:     &past,
	}); err != nil {
		t.Fatalf("create coupon: %v", err)
	}
	quote, err = resolver.Resolve(ctx, "basic", "EXPIRED")
	if err != nil {
		t.Fatalf("resolve with expired coupon: %v", err)
	}
	if !quote.Discount.IsZero() {
		t.Fatalf("expected no discount, got %s", quote.Discount)
	}
	if quote.Coupon != nil {
		t.Fatal("expected unusable coupon left off the quote")
	}
}
