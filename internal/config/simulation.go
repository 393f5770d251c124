package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

// Behavioral parameter keys shared between archetype profiles and the modifier
// tables. Modifier application multiplies a parameter only when the key is
// present on both sides; unknown keys are skipped.
const (
	ParamMonthlyGrowthRate  = "monthly_growth_rate"
	ParamGrowthVariance     = "growth_variance"
	ParamUpgradeThreshold   = "upgrade_threshold"
	ParamBaseChurnRate      = "base_churn_rate"
	ParamSeasonalMultiplier = "seasonal_multiplier"
	ParamEarlyChurnRate     = "early_churn_rate"
	ParamUsageManagement    = "usage_management"
	ParamLowUsageMultiplier = "low_usage_multiplier"
	ParamPaymentSuccessRate = "payment_success_rate"
)

// ArchetypeProfile is the static behavioral parameter bag for one customer
// archetype. Profiles are immutable after load; the behavior engine copies
// them before applying per-month modifiers.
type ArchetypeProfile struct {
	Weight              float64            `toml:"weight"`
	Description         string             `toml:"description"`
	Params              map[string]float64 `toml:"params"`
	SeasonalMultipliers map[string]float64 `toml:"seasonal_multipliers"`
	SeasonalChurnRisk   map[string]float64 `toml:"seasonal_churn_risk"`
}

// Weighted is a sampling option with a relative weight.
type Weighted struct {
	Name   string  `toml:"name"`
	Weight float64 `toml:"weight"`
}

// SimulationConfig holds everything a run needs: the plan catalog, the
// archetype and modifier tables, the population enumerations, and the run
// parameters. It is built once and never mutated afterwards.
type SimulationConfig struct {
	Months    int   `toml:"months"`
	Customers int   `toml:"customers"`
	Seed      int64 `toml:"seed"`

	Plans []models.Plan `toml:"plans"`

	Archetypes        map[string]ArchetypeProfile   `toml:"archetypes"`
	GeoModifiers      map[string]map[string]float64 `toml:"geo_modifiers"`
	IndustryModifiers map[string]map[string]float64 `toml:"industry_modifiers"`

	Geographies         []Weighted `toml:"geographies"`
	Industries          []Weighted `toml:"industries"`
	AcquisitionChannels []Weighted `toml:"acquisition_channels"`
}

// SimulationEpoch is the calendar anchor of month 1. Simulated dates advance
// in fixed 30-day months from here.
var SimulationEpoch = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultSimulation returns the built-in configuration: a 24-month run over
// 1000 customers with the standard three-tier plan catalog and the five
// stock archetypes.
func DefaultSimulation() *SimulationConfig {
	return &SimulationConfig{
		Months:    24,
		Customers: 1000,
		Seed:      42,
		Plans: []models.Plan{
			{
				ID:                1,
				Name:              "Basic",
				MonthlyPrice:      99,
				APICallLimit:      10000,
				DataRetentionDays: 30,
				MaxProjects:       3,
				Features:          []string{"basic_analytics", "dashboard", "api_access"},
			},
			{
				ID:                2,
				Name:              "Pro",
				MonthlyPrice:      299,
				APICallLimit:      50000,
				DataRetentionDays: 90,
				MaxProjects:       10,
				Features:          []string{"basic_analytics", "dashboard", "api_access", "advanced_analytics", "custom_reports"},
			},
			{
				ID:                3,
				Name:              "Enterprise",
				MonthlyPrice:      999,
				APICallLimit:      200000,
				DataRetentionDays: 365,
				MaxProjects:       50,
				Features:          []string{"basic_analytics", "dashboard", "api_access", "advanced_analytics", "custom_reports", "white_label", "priority_support"},
			},
		},
		Archetypes: map[string]ArchetypeProfile{
			models.ArchetypeSteadyGrower: {
				Weight:      0.30,
				Description: "Consistent growth, reliable upgraders",
				Params: map[string]float64{
					ParamMonthlyGrowthRate: 0.15,
					ParamGrowthVariance:    0.8,
					ParamUpgradeThreshold:  0.8,
					ParamBaseChurnRate:     0.01,
					"seasonal_sensitivity": 0.1,
				},
			},
			models.ArchetypeSeasonalBusiness: {
				Weight:      0.25,
				Description: "Usage swings with the calendar; downgrades in slow quarters",
				Params: map[string]float64{
					"base_usage":          1.0,
					ParamUpgradeThreshold: 0.7,
					ParamBaseChurnRate:    0.03,
				},
				SeasonalMultipliers: map[string]float64{
					"Q1": 1.3, "Q2": 0.6, "Q3": 0.7, "Q4": 2.0,
				},
				SeasonalChurnRisk: map[string]float64{
					"Q2": 2.0, "Q3": 1.5,
				},
			},
			models.ArchetypeEnterprisePilot: {
				Weight:      0.15,
				Description: "Binary outcome - huge success or quick churn",
				Params: map[string]float64{
					"trial_period":        3,
					"success_probability": 0.6,
					"rapid_growth_rate":   3.0,
					ParamEarlyChurnRate:   0.15,
				},
			},
			models.ArchetypePriceSensitive: {
				Weight:      0.20,
				Description: "High engagement, low revenue, price-sensitive",
				Params: map[string]float64{
					ParamUsageManagement:              0.85,
					ParamUpgradeThreshold:             0.95,
					ParamBaseChurnRate:                0.02,
					"price_increase_churn_multiplier": 2.0,
				},
			},
			models.ArchetypeFailedAdoption: {
				Weight:      0.10,
				Description: "Low usage from start, quick churn",
				Params: map[string]float64{
					ParamLowUsageMultiplier: 0.2,
					"churn_timeline":        2,
					ParamEarlyChurnRate:     0.25,
					"engagement_decline":    0.5,
				},
			},
		},
		GeoModifiers: map[string]map[string]float64{
			"US": {
				ParamPaymentSuccessRate: 0.97,
				"seasonal_intensity":    1.2,
				"upgrade_propensity":    1.1,
			},
			"EU": {
				ParamPaymentSuccessRate: 0.94,
				"seasonal_intensity":    0.9,
				"upgrade_propensity":    0.95,
				"gdpr_churn_factor":     1.05,
			},
		},
		IndustryModifiers: map[string]map[string]float64{
			"ecommerce": {
				ParamSeasonalMultiplier: 1.5,
				"q4_spike":              2.5,
			},
			"saas_tech": {
				"steady_growth":         1.2,
				"feature_adoption_rate": 1.3,
				"enterprise_propensity": 1.4,
			},
			"financial_services": {
				"data_retention_importance": 2.0,
				"enterprise_propensity":     1.6,
			},
			"marketing_agency": {
				"usage_volatility":      1.6,
				ParamSeasonalMultiplier: 1.2,
				"q1_spike":              1.4,
				"price_sensitivity":     1.3,
				"feature_adoption_rate": 1.2,
			},
			"healthcare": {
				"steady_growth":         1.1,
				ParamSeasonalMultiplier: 0.8,
				"enterprise_propensity": 1.4,
				"churn_resistance":      1.3,
				"feature_adoption_rate": 0.8,
			},
			"manufacturing": {
				"usage_consistency":          1.3,
				ParamSeasonalMultiplier:      0.9,
				"price_sensitivity":          1.4,
				"upgrade_threshold_modifier": 1.2,
				"enterprise_propensity":      0.7,
			},
			"other": {
				ParamSeasonalMultiplier: 1.0,
				"usage_volatility":      1.0,
				"price_sensitivity":     1.0,
				"feature_adoption_rate": 1.0,
				"enterprise_propensity": 1.0,
			},
		},
		Geographies: []Weighted{
			{Name: "US", Weight: 0.6},
			{Name: "EU", Weight: 0.4},
		},
		Industries: []Weighted{
			{Name: "ecommerce", Weight: 0.25},
			{Name: "saas_tech", Weight: 0.20},
			{Name: "financial_services", Weight: 0.15},
			{Name: "marketing_agency", Weight: 0.15},
			{Name: "healthcare", Weight: 0.10},
			{Name: "manufacturing", Weight: 0.10},
			{Name: "other", Weight: 0.05},
		},
		AcquisitionChannels: []Weighted{
			{Name: "organic_search", Weight: 0.30},
			{Name: "paid_ads", Weight: 0.25},
			{Name: "referral", Weight: 0.15},
			{Name: "direct", Weight: 0.15},
			{Name: "partner", Weight: 0.10},
			{Name: "content_marketing", Weight: 0.05},
		},
	}
}

// LoadSimulation loads a TOML configuration file. Fields absent from the file
// keep their built-in defaults.
func LoadSimulation(filename string) (*SimulationConfig, error) {
	cfg := DefaultSimulation()
	if _, err := toml.DecodeFile(filename, cfg); err != nil {
		return nil, fmt.Errorf("failed to load simulation config %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would produce garbage output. Lookup
// misses during a run degrade softly, but a malformed top-level config aborts.
func (c *SimulationConfig) Validate() error {
	if c.Months <= 0 {
		return fmt.Errorf("simulation months must be positive, got %d", c.Months)
	}
	if c.Customers <= 0 {
		return fmt.Errorf("customer count must be positive, got %d", c.Customers)
	}
	if len(c.Plans) == 0 {
		return fmt.Errorf("plan catalog is empty")
	}
	if len(c.Archetypes) == 0 {
		return fmt.Errorf("no customer archetypes configured")
	}
	var totalWeight float64
	for name, a := range c.Archetypes {
		if a.Weight < 0 {
			return fmt.Errorf("archetype %s has negative weight", name)
		}
		totalWeight += a.Weight
	}
	if totalWeight <= 0 {
		return fmt.Errorf("archetype weights sum to zero")
	}
	for _, g := range c.Geographies {
		if _, ok := c.GeoModifiers[g.Name]; !ok {
			return fmt.Errorf("geography %s has no modifier table", g.Name)
		}
	}
	for _, ind := range c.Industries {
		if _, ok := c.IndustryModifiers[ind.Name]; !ok {
			return fmt.Errorf("industry %s has no modifier table", ind.Name)
		}
	}
	return nil
}

// PlanByName returns the catalog entry, or nil when the name is unknown.
func (c *SimulationConfig) PlanByName(name string) *models.Plan {
	for i := range c.Plans {
		if c.Plans[i].Name == name {
			return &c.Plans[i]
		}
	}
	return nil
}

// MonthDate converts a 1-based simulation month to its calendar date.
func MonthDate(month int) time.Time {
	return SimulationEpoch.AddDate(0, 0, month*30)
}

// SignupMonth converts a signup date to its 1-based simulation month index.
func SignupMonth(signup time.Time) int {
	days := int(signup.Sub(SimulationEpoch).Hours() / 24)
	month := days/30 + 1
	if month < 1 {
		month = 1
	}
	return month
}

// Quarter maps a 1-based month (absolute or tenure) to Q1..Q4, wrapping past
// twelve months.
func Quarter(month int) string {
	inYear := ((month - 1) % 12) + 1
	switch {
	case inYear <= 3:
		return "Q1"
	case inYear <= 6:
		return "Q2"
	case inYear <= 9:
		return "Q3"
	default:
		return "Q4"
	}
}
