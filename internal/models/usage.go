package models

import "time"

// UsageSnapshot is the monthly usage a customer produced, used both for the
// emitted weekly events and as trend input to later upgrade/churn decisions.
// UsagePercentage is the fraction of the plan's API-call limit consumed; it is
// floored at zero but allowed above 1.0 (capped at 1.5) so bursts past quota
// stay detectable.
type UsageSnapshot struct {
	APICalls           int     `json:"api_calls"`
	DataPointsIngested int     `json:"data_points_ingested"`
	QueriesExecuted    int     `json:"queries_executed"`
	ProjectsActive     int     `json:"projects_active"`
	UsagePercentage    float64 `json:"usage_percentage"`
}

// UsageEvent is one weekly slice of a monthly usage snapshot. Four are emitted
// per active customer per simulated month.
type UsageEvent struct {
	CustomerID         int       `json:"customer_id" db:"customer_id"`
	Date               time.Time `json:"date" db:"date"`
	APICalls           int       `json:"api_calls" db:"api_calls"`
	DataPointsIngested int       `json:"data_points_ingested" db:"data_points_ingested"`
	QueriesExecuted    int       `json:"queries_executed" db:"queries_executed"`
	ProjectsActive     int       `json:"projects_active" db:"projects_active"`
	FeatureUsed        string    `json:"feature_used" db:"feature_used"`
}
