package models

import "time"

// Subscription statuses.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// BillingCycleMonthly is the only billing cycle the simulation emits.
const BillingCycleMonthly = "monthly"

// Subscription is one versioned plan assignment in a customer's history.
// Records are append-only: a plan change stamps EndDate and flips Status to
// cancelled on the old record, then appends a new open one. At most one
// subscription per customer has EndDate == nil at any time.
type Subscription struct {
	ID           int        `json:"id" db:"id"`
	CustomerID   int        `json:"customer_id" db:"customer_id"`
	PlanID       int        `json:"plan_id" db:"plan_id"`
	PlanName     string     `json:"plan_name" db:"plan_name"`
	StartDate    time.Time  `json:"start_date" db:"start_date"`
	EndDate      *time.Time `json:"end_date" db:"end_date"`
	MonthlyPrice float64    `json:"monthly_price" db:"monthly_price"`
	Status       string     `json:"status" db:"status"`
	BillingCycle string     `json:"billing_cycle" db:"billing_cycle"`
}

// Open reports whether the subscription is the customer's current one.
func (s *Subscription) Open() bool {
	return s.EndDate == nil
}

// CoversDate reports whether the subscription was in effect on the given date.
func (s *Subscription) CoversDate(date time.Time) bool {
	if s.StartDate.After(date) {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(date)
}
