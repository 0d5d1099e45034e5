package billing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPlan         = errors.New("invalid plan")
	ErrInvalidBillingCycle = errors.New("invalid billing cycle")
)

type PlanID string

const (
	// PlanBasic is the free tier. It never reaches the server.
	PlanBasic    PlanID = "basic"
	PlanStarter  PlanID = "starter"
	PlanAdvanced PlanID = "advanced"
	PlanPro      PlanID = "pro"
)

type BillingCycle string

const (
	Monthly BillingCycle = "monthly"
	Annual  BillingCycle = "annual"
)

func (c BillingCycle) Valid() bool {
	return c == Monthly || c == Annual
}

// Interval is the provider's recurring interval for the cycle.
func (c BillingCycle) Interval() string {
	if c == Annual {
		return "year"
	}
	return "month"
}

const Currency = "usd"

// Plan is one paid tier. Amounts are in cents.
type Plan struct {
	ID      PlanID `json:"id"`
	Name    string `json:"name"`
	Monthly int64  `json:"monthly"`
	Annual  int64  `json:"annual"`
}

func (p Plan) Amount(c BillingCycle) int64 {
	if c == Annual {
		return p.Annual
	}
	return p.Monthly
}

func (p Plan) ProductName() string {
	return p.Name + " Plan"
}

var plans = []Plan{
	{ID: PlanStarter, Name: "Starter", Monthly: 10000, Annual: 100000},
	{ID: PlanAdvanced, Name: "Advanced", Monthly: 20000, Annual: 200000},
	{ID: PlanPro, Name: "Pro", Monthly: 30000, Annual: 300000},
}

// Plans returns the paid catalogue in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

func LookupPlan(id PlanID) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Resolve validates a plan/billing-cycle pair and returns the plan and its
// amount in cents.
func Resolve(planID, billingCycle string) (Plan, BillingCycle, int64, error) {
	if strings.TrimSpace(planID) == "" {
		return Plan{}, "", 0, fmt.Errorf("%w: planId is required", ErrInvalidPlan)
	}
	plan, ok := LookupPlan(PlanID(planID))
	if !ok {
		return Plan{}, "", 0, fmt.Errorf("%w: %q", ErrInvalidPlan, planID)
	}
	cycle := BillingCycle(billingCycle)
	if billingCycle == "" {
		return Plan{}, "", 0, fmt.Errorf("%w: billingCycle is required", ErrInvalidBillingCycle)
	}
	if !cycle.Valid() {
		return Plan{}, "", 0, fmt.Errorf("%w: %q", ErrInvalidBillingCycle, billingCycle)
	}
	return plan, cycle, plan.Amount(cycle), nil
}
