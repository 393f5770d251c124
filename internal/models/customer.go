package models

import "time"

// Customer statuses.
const (
	CustomerStatusActive  = "active"
	CustomerStatusChurned = "churned"
)

// Customer archetype names. Each archetype maps to a behavioral profile in the
// simulation configuration.
const (
	ArchetypeSteadyGrower     = "steady_grower"
	ArchetypeSeasonalBusiness = "seasonal_business"
	ArchetypeEnterprisePilot  = "enterprise_pilot"
	ArchetypePriceSensitive   = "price_sensitive"
	ArchetypeFailedAdoption   = "failed_adoption"
)

// Customer is a generated company. Status and PlanTier are mutated only by the
// timeline simulator when it writes back final states.
type Customer struct {
	ID                 int       `json:"id" db:"customer_id"`
	CompanyName        string    `json:"company_name" db:"company_name"`
	SignupDate         time.Time `json:"signup_date" db:"signup_date"`
	PlanTier           string    `json:"plan_tier" db:"current_plan_tier"`
	Geography          string    `json:"geography" db:"geography"`
	Industry           string    `json:"industry" db:"industry"`
	AcquisitionChannel string    `json:"acquisition_channel" db:"acquisition_channel"`
	Status             string    `json:"status" db:"status"`
	Archetype          string    `json:"archetype" db:"archetype"`
}
