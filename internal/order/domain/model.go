package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	billplzdomain "github.com/kadkita/kadkita/internal/billplz/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrAlreadySettled = errors.New("order already settled")
	ErrInvalidRequest = errors.New("invalid checkout request")
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// PaymentMethodCoupon labels free orders settled without a provider session.
const PaymentMethodCoupon = "Coupon"

// Order is one purchase attempt. Amount is the resolved charge in MYR; the
// provider only ever sees its minor-unit conversion.
type Order struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID            string          `json:"user_id" gorm:"type:text;not null;index"`
	InvitationID      *snowflake.ID   `json:"invitation_id"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Status            string          `json:"status" gorm:"type:text;not null"`
	PlanTier          string          `json:"plan_tier" gorm:"type:text;not null"`
	CouponID          *snowflake.ID   `json:"coupon_id"`
	ProviderPaymentID *string         `json:"provider_payment_id" gorm:"type:text;index"`
	PaymentMethod     *string         `json:"payment_method" gorm:"type:text"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// CallbackRecord logs every webhook delivery for offline diagnosis, including
// rejected and replayed ones.
type CallbackRecord struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrderID     *snowflake.ID  `json:"order_id" gorm:"index"`
	BillID      string         `json:"bill_id" gorm:"type:text;not null"`
	Payload     datatypes.JSON `json:"payload" gorm:"not null"`
	SignatureOK bool           `json:"signature_ok" gorm:"not null"`
	ReceivedAt  time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt *time.Time     `json:"processed_at"`
}

func (CallbackRecord) TableName() string { return "payment_callbacks" }

// CheckoutRequest starts a purchase.
type CheckoutRequest struct {
	UserID       string
	PlanID       string
	InvitationID *snowflake.ID
	CouponCode   string
	Email        string
	Name         string
	Phone        string
	RedirectURL  string
}

// CheckoutResult points the buyer at the next step.
type CheckoutResult struct {
	OrderID     snowflake.ID    `json:"order_id"`
	CheckoutURL string          `json:"checkout_url"`
	Amount      decimal.Decimal `json:"amount"`
	Free        bool            `json:"free"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByProviderPaymentID(ctx context.Context, db *gorm.DB, billID string) (*Order, error)
	SetProviderPaymentID(ctx context.Context, db *gorm.DB, id snowflake.ID, billID string) error
	MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentMethod string) (bool, error)
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	InsertCallback(ctx context.Context, db *gorm.DB, record *CallbackRecord) error
	MarkCallbackProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}

type Service interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	CompleteOrder(ctx context.Context, id snowflake.ID, paymentMethod string) error
	HandleCallback(ctx context.Context, payload *CallbackPayload, headerSignature string) error
	Get(ctx context.Context, id snowflake.ID) (*Order, error)
}

// CallbackPayload aliases the provider payload so handler code does not
// import the billplz package directly.
type CallbackPayload = billplzdomain.CallbackPayload
