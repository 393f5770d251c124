package simulation

import (
	"time"

	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

// Ledger maintains the append-only subscription history semantics: it mints
// monotonically increasing subscription IDs, closes and opens records on plan
// changes, and prices the deltas. It does not own the master subscription
// list; the simulator appends the records it returns.
type Ledger struct {
	cfg    *config.SimulationConfig
	nextID int
}

// NewLedger builds a ledger over the plan catalog.
func NewLedger(cfg *config.SimulationConfig) *Ledger {
	return &Ledger{cfg: cfg, nextID: 1}
}

// GenerateInitialSubscriptions opens one Basic subscription per customer,
// dated at signup.
func (l *Ledger) GenerateInitialSubscriptions(customers []*models.Customer) []*models.Subscription {
	subs := make([]*models.Subscription, 0, len(customers))
	for _, c := range customers {
		subs = append(subs, l.newSubscription(c.ID, "Basic", c.SignupDate))
	}
	return subs
}

// CreatePlanChange closes the given open subscription at date and returns it
// alongside a freshly minted open subscription for the new plan. The old
// record keeps its identity; only its end date and status change.
func (l *Ledger) CreatePlanChange(customerID int, current *models.Subscription, newPlan string, date time.Time) (*models.Subscription, *models.Subscription) {
	closed := l.CancelSubscription(current, date)
	opened := l.newSubscription(customerID, newPlan, date)
	return closed, opened
}

// CancelSubscription closes a subscription without opening a replacement.
// Used on churn.
func (l *Ledger) CancelSubscription(sub *models.Subscription, date time.Time) *models.Subscription {
	end := date
	sub.EndDate = &end
	sub.Status = models.SubscriptionStatusCancelled
	return sub
}

// MRRImpact is the signed monthly price delta of a plan change. Positive
// deltas bill as upgrades, negative ones refund the absolute value.
func (l *Ledger) MRRImpact(oldPlan, newPlan string) float64 {
	return l.planPrice(newPlan) - l.planPrice(oldPlan)
}

func (l *Ledger) newSubscription(customerID int, planName string, start time.Time) *models.Subscription {
	sub := &models.Subscription{
		ID:           l.nextID,
		CustomerID:   customerID,
		PlanID:       l.planID(planName),
		PlanName:     planName,
		StartDate:    start,
		MonthlyPrice: l.planPrice(planName),
		Status:       models.SubscriptionStatusActive,
		BillingCycle: models.BillingCycleMonthly,
	}
	l.nextID++
	return sub
}

// Plan lookups fail softly: an unknown plan name yields id 0 and price 0
// rather than an error, tolerating malformed input at the cost of silently
// degraded records.
func (l *Ledger) planID(name string) int {
	if p := l.cfg.PlanByName(name); p != nil {
		return p.ID
	}
	return 0
}

func (l *Ledger) planPrice(name string) float64 {
	if p := l.cfg.PlanByName(name); p != nil {
		return p.MonthlyPrice
	}
	return 0
}
