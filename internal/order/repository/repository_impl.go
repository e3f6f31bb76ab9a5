package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/kadkita/kadkita/internal/order/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const orderColumns = `id, user_id, invitation_id, amount, status, plan_tier,
	coupon_id, provider_payment_id, payment_method, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, order *domain.Order) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, user_id, invitation_id, amount, status, plan_tier,
			coupon_id, provider_payment_id, payment_method, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.UserID,
		order.InvitationID,
		order.Amount,
		order.Status,
		order.PlanTier,
		order.CouponID,
		order.ProviderPaymentID,
		order.PaymentMethod,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var item domain.Order
	err := conn.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByProviderPaymentID(ctx context.Context, conn *gorm.DB, billID string) (*domain.Order, error) {
	billID = strings.TrimSpace(billID)
	if billID == "" {
		return nil, nil
	}
	var item domain.Order
	err := conn.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE provider_payment_id = ?
		 LIMIT 1`,
		billID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) SetProviderPaymentID(ctx context.Context, conn *gorm.DB, id snowflake.ID, billID string) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE orders
		 SET provider_payment_id = ?, updated_at = ?
		 WHERE id = ?`,
		billID,
		time.Now().UTC(),
		id,
	).Error
}

// MarkCompleted transitions pending to completed. The status predicate in the
// WHERE clause is the settlement idempotency guard: a replayed webhook
// matches zero rows and settles nothing.
func (r *repo) MarkCompleted(ctx context.Context, conn *gorm.DB, id snowflake.ID, paymentMethod string) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, payment_method = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusCompleted,
		paymentMethod,
		time.Now().UTC(),
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusFailed,
		time.Now().UTC(),
		id,
		domain.StatusPending,
	).Error
}

func (r *repo) InsertCallback(ctx context.Context, conn *gorm.DB, record *domain.CallbackRecord) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO payment_callbacks (
			id, order_id, bill_id, payload, signature_ok, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OrderID,
		record.BillID,
		record.Payload,
		record.SignatureOK,
		record.ReceivedAt,
		record.ProcessedAt,
	).Error
}

func (r *repo) MarkCallbackProcessed(ctx context.Context, conn *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE payment_callbacks
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}
