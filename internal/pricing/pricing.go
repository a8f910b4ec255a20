package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

const (
	Day       = 24 * time.Hour
	TrialSpan = 24 * time.Hour
)

// Catalog maps plan ids to their duration, price and display name.
type Catalog struct {
	plans map[types.PlanType]types.Plan
}

// PlanOverride replaces the duration or price of a plan from configuration.
type PlanOverride struct {
	Type  types.PlanType
	Days  int
	Price string
	Name  string
}

func DefaultCatalog() *Catalog {
	return &Catalog{plans: map[types.PlanType]types.Plan{
		types.PlanTrial:      {Type: types.PlanTrial, Name: "Free trial (24 hours)", Duration: TrialSpan, Price: decimal.Zero},
		types.PlanMonthly:    {Type: types.PlanMonthly, Name: "Monthly", Duration: 30 * Day, Price: decimal.NewFromInt(10)},
		types.PlanQuarterly:  {Type: types.PlanQuarterly, Name: "Quarterly", Duration: 90 * Day, Price: decimal.NewFromInt(25)},
		types.PlanSemiAnnual: {Type: types.PlanSemiAnnual, Name: "Semi-annual", Duration: 180 * Day, Price: decimal.NewFromInt(45)},
		types.PlanYearly:     {Type: types.PlanYearly, Name: "Yearly", Duration: 365 * Day, Price: decimal.NewFromInt(90)},
	}}
}

// NewCatalog applies overrides on top of the default plans.
func NewCatalog(overrides []PlanOverride) (*Catalog, error) {
	c := DefaultCatalog()
	for _, o := range overrides {
		plan, ok := c.plans[o.Type]
		if !ok {
			return nil, fmt.Errorf("unknown plan %q", o.Type)
		}
		if o.Days < 0 {
			return nil, fmt.Errorf("plan %s: days must be >= 0", o.Type)
		}
		if o.Days > 0 {
			if o.Type == types.PlanTrial {
				return nil, fmt.Errorf("plan %s: trial duration is fixed", o.Type)
			}
			plan.Duration = time.Duration(o.Days) * Day
		}
		if o.Price != "" {
			price, err := decimal.NewFromString(o.Price)
			if err != nil {
				return nil, fmt.Errorf("plan %s: invalid price %q: %w", o.Type, o.Price, err)
			}
			if price.IsNegative() {
				return nil, fmt.Errorf("plan %s: price must be >= 0", o.Type)
			}
			if o.Type == types.PlanTrial && !price.IsZero() {
				return nil, fmt.Errorf("plan %s: trial is free", o.Type)
			}
			plan.Price = price
		}
		if o.Name != "" {
			plan.Name = o.Name
		}
		c.plans[o.Type] = plan
	}
	return c, nil
}

func (c *Catalog) Lookup(p types.PlanType) (types.Plan, bool) {
	plan, ok := c.plans[p]
	return plan, ok
}

// LookupPaid only resolves plans that can be bought.
func (c *Catalog) LookupPaid(p types.PlanType) (types.Plan, bool) {
	if !p.IsPaid() {
		return types.Plan{}, false
	}
	return c.Lookup(p)
}

func (c *Catalog) Trial() types.Plan {
	return c.plans[types.PlanTrial]
}

func (c *Catalog) Paid() []types.Plan {
	out := make([]types.Plan, 0, len(types.PaidPlans))
	for _, p := range types.PaidPlans {
		if plan, ok := c.plans[p]; ok {
			out = append(out, plan)
		}
	}
	return out
}

// FormatPrice renders an amount the way the bot shows prices.
func FormatPrice(d decimal.Decimal) string {
	if d.IsZero() {
		return "Free"
	}
	if d.Equal(d.Truncate(0)) {
		return "$" + d.StringFixed(0)
	}
	return "$" + d.StringFixed(2)
}
