package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownPlan = errors.New("unknown plan")
)

// Plan is a sellable invitation tier with a fixed base price in MYR.
type Plan struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Currency    string          `json:"currency"`
	GuestLimit  int             `json:"guest_limit"`
	Themes      int             `json:"themes"`
}

const (
	TierBasic   = "basic"
	TierPremium = "premium"
	TierLuxe    = "luxe"
)

type Catalog interface {
	Get(ctx context.Context, planID string) (*Plan, error)
	List(ctx context.Context) []Plan
}
