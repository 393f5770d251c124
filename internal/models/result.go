package models

// SimulationResult bundles the four record collections a run produces. The
// customer slice carries final status/plan written back by the simulator.
type SimulationResult struct {
	Customers           []*Customer           `json:"customers"`
	Subscriptions       []*Subscription       `json:"subscriptions"`
	UsageEvents         []*UsageEvent         `json:"usage_events"`
	BillingTransactions []*BillingTransaction `json:"billing_transactions"`
}

// SimulationSummary aggregates headline statistics over a SimulationResult.
type SimulationSummary struct {
	TotalCustomers           int            `json:"total_customers"`
	ChurnedCustomers         int            `json:"churned_customers"`
	RetentionRate            float64        `json:"retention_rate"`
	TotalRevenue             float64        `json:"total_revenue"`
	TotalUsageEvents         int            `json:"total_usage_events"`
	TotalBillingTransactions int            `json:"total_billing_transactions"`
	PlanDistribution         map[string]int `json:"plan_distribution"`
	FinalMRR                 float64        `json:"final_mrr"`
}
