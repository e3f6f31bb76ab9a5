package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured    = errors.New("billplz credentials not configured")
	ErrGatewayRejected  = errors.New("billplz rejected the request")
	ErrMissingSignature = errors.New("callback signature missing")
	ErrInvalidSignature = errors.New("callback signature mismatch")
)

// CreateBillRequest opens a hosted payment page for one order.
type CreateBillRequest struct {
	Email       string
	Name        string
	Mobile      string
	Amount      decimal.Decimal
	Description string
	Reference1  string
	CallbackURL string
	RedirectURL string
}

// Bill is the provider's view of a payment session.
type Bill struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Paid   bool   `json:"paid"`
	State  string `json:"state"`
	Amount int64  `json:"amount"`
}

type Client interface {
	CreateBill(ctx context.Context, req CreateBillRequest) (*Bill, error)
	Configured() bool
}

// CallbackPayload is the flattened field set of a payment callback. Raw keeps
// every delivered pair for signature canonicalization.
type CallbackPayload struct {
	BillID     string
	Paid       bool
	State      string
	Amount     string
	PaidAt     string
	Reference1 string
	XSignature string
	Raw        map[string]string
}
