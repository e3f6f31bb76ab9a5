package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	plandomain "github.com/kadkita/kadkita/internal/plan/domain"
)

type Params struct {
	fx.In

	Log *zap.Logger
}

// Catalog is the static plan catalog. Prices are authoritative here; the
// client-submitted amount is never trusted.
type Catalog struct {
	log   *zap.Logger
	plans map[string]plandomain.Plan
	order []string
}

func NewCatalog(p Params) plandomain.Catalog {
	plans := defaultPlans()
	index := make(map[string]plandomain.Plan, len(plans))
	order := make([]string, 0, len(plans))
	for _, item := range plans {
		index[item.ID] = item
		order = append(order, item.ID)
	}
	return &Catalog{
		log:   p.Log.Named("plan.catalog"),
		plans: index,
		order: order,
	}
}

func (c *Catalog) Get(ctx context.Context, planID string) (*plandomain.Plan, error) {
	planID = strings.ToLower(strings.TrimSpace(planID))
	item, ok := c.plans[planID]
	if !ok {
		return nil, plandomain.ErrUnknownPlan
	}
	return &item, nil
}

func (c *Catalog) List(ctx context.Context) []plandomain.Plan {
	items := make([]plandomain.Plan, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, c.plans[id])
	}
	return items
}

func defaultPlans() []plandomain.Plan {
	return []plandomain.Plan{
		{
			ID:          plandomain.TierBasic,
			Name:        "Basic",
			Description: "Single theme digital invitation",
			BasePrice:   decimal.NewFromInt(29),
			Currency:    "MYR",
			GuestLimit:  150,
			Themes:      1,
		},
		{
			ID:          plandomain.TierPremium,
			Name:        "Premium",
			Description: "Full theme catalog with RSVP tracking",
			BasePrice:   decimal.NewFromInt(49),
			Currency:    "MYR",
			GuestLimit:  500,
			Themes:      12,
		},
		{
			ID:          plandomain.TierLuxe,
			Name:        "Luxe",
			Description: "Custom design with unlimited guests",
			BasePrice:   decimal.NewFromInt(79),
			Currency:    "MYR",
			GuestLimit:  0,
			Themes:      30,
		},
	}
}
