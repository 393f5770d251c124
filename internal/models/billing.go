package models

import "time"

// Billing transaction types.
const (
	BillingTypeSubscription = "subscription"
	BillingTypeUpgrade      = "upgrade"
	BillingTypeDowngrade    = "downgrade"
	BillingTypeRefund       = "refund"
)

// Billing transaction statuses.
const (
	BillingStatusSuccess = "success"
	BillingStatusFailed  = "failed"
	BillingStatusPending = "pending"
)

// BillingTransaction is one entry in the append-only billing log: one
// subscription charge per active customer per simulated month, plus zero or
// one upgrade/refund entry when a plan change occurs that month.
type BillingTransaction struct {
	CustomerID      int       `json:"customer_id" db:"customer_id"`
	TransactionDate time.Time `json:"transaction_date" db:"transaction_date"`
	Amount          float64   `json:"amount" db:"amount"`
	Type            string    `json:"type" db:"type"`
	Status          string    `json:"status" db:"status"`
}
