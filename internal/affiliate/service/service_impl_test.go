package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	affiliatedomain "github.com/kadkita/kadkita/internal/affiliate/domain"
	affiliaterepo "github.com/kadkita/kadkita/internal/affiliate/repository"
	"github.com/kadkita/kadkita/internal/affiliate/service"
	"github.com/kadkita/kadkita/internal/config"
	coupondomain "github.com/kadkita/kadkita/internal/coupon/domain"
	couponrepo "github.com/kadkita/kadkita/internal/coupon/repository"
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
	`CREATE TABLE affiliate_earnings (
		id INTEGER PRIMARY KEY,
		affiliate_id INTEGER NOT NULL,
		order_id INTEGER NOT NULL,
		amount NUMERIC NOT NULL,
		rate_percent NUMERIC NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (affiliate_id, order_id)
	)`,
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:affiliate_svc_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

func newAffiliateService(t *testing.T, conn *gorm.DB) (affiliatedomain.Service, *snowflake.Node) {
	t.Helper()
	genID, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	policy, err := config.NewAffiliatePolicyHolder()
	if err != nil {
		t.Fatalf("policy holder: %v", err)
	}
	svc := service.NewService(service.Params{
		DB:         conn,
		Log:        zap.NewNop(),
		GenID:      genID,
		Repo:       affiliaterepo.Provide(),
		CouponRepo: couponrepo.Provide(),
		Policy:     policy,
	})
	return svc, genID
}

func approvedAffiliate(t *testing.T, svc affiliatedomain.Service, userID string) *affiliatedomain.Affiliate {
	t.Helper()
	ctx := context.Background()
	item, err := svc.Apply(ctx, userID, "Studio Aisyah", "photography")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	item, err = svc.Approve(ctx, item.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return item
}

func affiliateByID(t *testing.T, conn *gorm.DB, id snowflake.ID) *affiliatedomain.Affiliate {
	t.Helper()
	item, err := affiliaterepo.Provide().FindByID(context.Background(), conn, id)
	if err != nil {
		t.Fatalf("reload affiliate: %v", err)
	}
	if item == nil {
		t.Fatalf("affiliate %s vanished", id)
	}
	return item
}

func referralCoupon(t *testing.T, conn *gorm.DB, affiliateID snowflake.ID) *coupondomain.Coupon {
	t.Helper()
	items, err := couponrepo.Provide().FindByAffiliate(context.Background(), conn, affiliateID)
	if err != nil {
		t.Fatalf("list coupons: %v", err)
	}
	if len(items) == 0 {
		t.Fatalf("expected a referral coupon for affiliate %s", affiliateID)
	}
	return &items[0]
}

func TestApply(t *testing.T) {
	conn := setupTestDB(t)
	svc, _ := newAffiliateService(t, conn)
	ctx := context.Background()

	item, err := svc.Apply(ctx, "user-1", "Studio Aisyah", "photography")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if item.Status != affiliatedomain.StatusPending {
		t.Fatalf("expected pending application, got %s", item.Status)
	}
	if !strings.HasPrefix(item.ReferralCode, "KAD") {
		t.Fatalf("expected KAD-prefixed referral code, got %q", item.ReferralCode)
	}
	if !item.CommissionRate.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected default rate 20, got %s", item.CommissionRate)
	}

	if _, err := svc.Apply(ctx, "user-1", "Studio Aisyah", "photography"); !errors.Is(err, affiliatedomain.ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied, got %v", err)
	}
}

func TestApproveProvisionsReferralCoupon(t *testing.T) {
	conn := setupTestDB(t)
	svc, _ := newAffiliateService(t, conn)
	ctx := context.Background()

	item := approvedAffiliate(t, svc, "user-2")
	if item.Status != affiliatedomain.StatusActive {
		t.Fatalf("expected active affiliate, got %s", item.Status)
	}

	coupon := referralCoupon(t, conn, item.ID)
	if coupon.Code != item.ReferralCode {
		t.Fatalf("expected coupon code %q, got %q", item.ReferralCode, coupon.Code)
	}
	if !coupon.IsActive {
		t.Fatal("expected referral coupon active after approval")
	}
	if coupon.DiscountType != coupondomain.DiscountTypePercentage {
		t.Fatalf("expected percentage coupon, got %s", coupon.DiscountType)
	}

	if _, err := svc.Approve(ctx, item.ID); !errors.Is(err, affiliatedomain.ErrNotPending) {
		t.Fatalf("expected ErrNotPending on second approval, got %v", err)
	}
}

func TestRejectDeactivatesCoupons(t *testing.T) {
	conn := setupTestDB(t)
	svc, genID := newAffiliateService(t, conn)
	ctx := context.Background()

	item, err := svc.Apply(ctx, "user-3", "Kedai Kurma", "retail")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	// A coupon provisioned before moderation must go dark on rejection.
	now := time.Now().UTC()
	pre := &coupondomain.Coupon{
		ID:            genID.Generate(),
		Code:          item.ReferralCode,
		DiscountType:  coupondomain.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		IsActive:      true,
		AffiliateID:   &item.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := couponrepo.Provide().Insert(ctx, conn, pre); err != nil {
		t.Fatalf("insert coupon: %v", err)
	}

	rejected, err := svc.Reject(ctx, item.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != affiliatedomain.StatusRejected {
		t.Fatalf("expected rejected status, got %s", rejected.Status)
	}

	coupon := referralCoupon(t, conn, item.ID)
	if coupon.IsActive {
		t.Fatal("expected referral coupon deactivated after rejection")
	}
}

func TestRecordCommissionIdempotentPerOrder(t *testing.T) {
	conn := setupTestDB(t)
	svc, genID := newAffiliateService(t, conn)
	ctx := context.Background()

	item := approvedAffiliate(t, svc, "user-4")
	orderID := genID.Generate()
	total := decimal.RequireFromString("49.00")

	recorded, err := svc.RecordCommission(ctx, conn, item.ID, orderID, total)
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}
	if !recorded {
		t.Fatal("expected first commission to be recorded")
	}

	reloaded := affiliateByID(t, conn, item.ID)
	want := decimal.RequireFromString("9.80")
	if !reloaded.TotalEarnings.Equal(want) {
		t.Fatalf("expected total earnings %s, got %s", want, reloaded.TotalEarnings)
	}

	recorded, err = svc.RecordCommission(ctx, conn, item.ID, orderID, total)
	if err != nil {
		t.Fatalf("replayed commission: %v", err)
	}
	if recorded {
		t.Fatal("expected replay to record nothing")
	}

	reloaded = affiliateByID(t, conn, item.ID)
	if !reloaded.TotalEarnings.Equal(want) {
		t.Fatalf("expected total earnings unchanged at %s, got %s", want, reloaded.TotalEarnings)
	}
}

func TestRecordCommissionSkipsInactiveAffiliate(t *testing.T) {
	conn := setupTestDB(t)
	svc, genID := newAffiliateService(t, conn)
	ctx := context.Background()

	item, err := svc.Apply(ctx, "user-5", "", "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	recorded, err := svc.RecordCommission(ctx, conn, item.ID, genID.Generate(), decimal.NewFromInt(49))
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}
	if recorded {
		t.Fatal("expected no commission for a pending affiliate")
	}
}

func TestRecordCommissionZeroAmountOrder(t *testing.T) {
	conn := setupTestDB(t)
	svc, genID := newAffiliateService(t, conn)
	ctx := context.Background()

	item := approvedAffiliate(t, svc, "user-9")

	// Fully discounted orders still count toward the tier ladder.
	recorded, err := svc.RecordCommission(ctx, conn, item.ID, genID.Generate(), decimal.Zero)
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}
	if !recorded {
		t.Fatal("expected a zero-amount earning recorded")
	}

	var count int64
	if err := conn.Raw(`SELECT COUNT(*) FROM affiliate_earnings WHERE affiliate_id = ?`, item.ID).Scan(&count).Error; err != nil {
		t.Fatalf("count earnings: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one earning row, got %d", count)
	}
	if got := affiliateByID(t, conn, item.ID).TotalEarnings; !got.IsZero() {
		t.Fatalf("expected total earnings 0, got %s", got)
	}
}

func TestTierUpgradeAtTenthSale(t *testing.T) {
	conn := setupTestDB(t)
	svc, genID := newAffiliateService(t, conn)
	ctx := context.Background()

	item := approvedAffiliate(t, svc, "user-6")

	// Start the referral coupon with a low ceiling so the raise is visible.
	if err := conn.Exec(`UPDATE coupons SET max_uses = 5 WHERE affiliate_id = ?`, item.ID).Error; err != nil {
		t.Fatalf("seed ceiling: %v", err)
	}

	total := decimal.NewFromInt(49)
	for i := 0; i < 9; i++ {
		if _, err := svc.RecordCommission(ctx, conn, item.ID, genID.Generate(), total); err != nil {
			t.Fatalf("commission %d: %v", i+1, err)
		}
	}
	if got := affiliateByID(t, conn, item.ID).CommissionRate; !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected rate 20 before the tenth sale, got %s", got)
	}

	if _, err := svc.RecordCommission(ctx, conn, item.ID, genID.Generate(), total); err != nil {
		t.Fatalf("tenth commission: %v", err)
	}

	if got := affiliateByID(t, conn, item.ID).CommissionRate; !got.Equal(decimal.NewFromInt(22)) {
		t.Fatalf("expected rate 22 after the tenth sale, got %s", got)
	}
	coupon := referralCoupon(t, conn, item.ID)
	if coupon.MaxUses == nil || *coupon.MaxUses != 25 {
		t.Fatalf("expected coupon ceiling raised to 25, got %+v", coupon.MaxUses)
	}
}

func TestTierUpgradeAtTwentyFifthSale(t *testing.T) {
	conn := setupTestDB(t)
	svc, genID := newAffiliateService(t, conn)
	ctx := context.Background()

	item := approvedAffiliate(t, svc, "user-7")
	if err := conn.Exec(`UPDATE coupons SET max_uses = 5 WHERE affiliate_id = ?`, item.ID).Error; err != nil {
		t.Fatalf("seed ceiling: %v", err)
	}

	total := decimal.NewFromInt(49)
	for i := 0; i < 25; i++ {
		if _, err := svc.RecordCommission(ctx, conn, item.ID, genID.Generate(), total); err != nil {
			t.Fatalf("commission %d: %v", i+1, err)
		}
	}

	if got := affiliateByID(t, conn, item.ID).CommissionRate; !got.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected rate 25 after the 25th sale, got %s", got)
	}
	coupon := referralCoupon(t, conn, item.ID)
	if coupon.MaxUses != nil {
		t.Fatalf("expected unlimited coupon at the top tier, got ceiling %d", *coupon.MaxUses)
	}
}

func TestListEarningsPagination(t *testing.T) {
	conn := setupTestDB(t)
	svc, genID := newAffiliateService(t, conn)
	ctx := context.Background()

	item := approvedAffiliate(t, svc, "user-8")
	for i := 0; i < 12; i++ {
		if _, err := svc.RecordCommission(ctx, conn, item.ID, genID.Generate(), decimal.NewFromInt(49)); err != nil {
			t.Fatalf("commission %d: %v", i+1, err)
		}
	}

	first, token, err := svc.ListEarnings(ctx, "user-8", 5, "")
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("expected 5 earnings, got %d", len(first))
	}
	if token == "" {
		t.Fatal("expected a next page token")
	}

	second, token, err := svc.ListEarnings(ctx, "user-8", 5, token)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second) != 5 {
		t.Fatalf("expected 5 earnings on page two, got %d", len(second))
	}
	if second[0].ID >= first[len(first)-1].ID {
		t.Fatal("expected page two to continue past page one")
	}

	third, token, err := svc.ListEarnings(ctx, "user-8", 5, token)
	if err != nil {
		t.Fatalf("third page: %v", err)
	}
	if len(third) != 2 {
		t.Fatalf("expected 2 earnings on page three, got %d", len(third))
	}
	if token != "" {
		t.Fatalf("expected no further pages, got token %q", token)
	}
}
