package models

// Plan is an immutable catalog entry. Plans are loaded once at startup and
// never mutated during a simulation run.
type Plan struct {
	ID                int      `json:"id" db:"plan_id"`
	Name              string   `json:"name" db:"plan_name"`
	MonthlyPrice      float64  `json:"monthly_price" db:"monthly_price"`
	APICallLimit      int      `json:"api_call_limit" db:"api_call_limit"`
	DataRetentionDays int      `json:"data_retention_days" db:"data_retention_days"`
	MaxProjects       int      `json:"max_projects" db:"max_projects"`
	Features          []string `json:"features" db:"features"`
}
