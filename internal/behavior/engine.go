package behavior

import (
	"fmt"
	"math/rand"

	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

// Behavior is a customer's effective parameter bag for one month: the
// archetype's base values with geographic, industry, seasonal, and tenure
// modifiers folded in. Lookups fall back to the supplied default, so missing
// configuration skips an adjustment instead of failing.
type Behavior struct {
	params            map[string]float64
	seasonalChurnRisk map[string]float64
}

// Get returns the named parameter, or def when absent.
func (b *Behavior) Get(key string, def float64) float64 {
	if v, ok := b.params[key]; ok {
		return v
	}
	return def
}

// Has reports whether the parameter is present.
func (b *Behavior) Has(key string) bool {
	_, ok := b.params[key]
	return ok
}

// Engine computes effective customer behavior and the decisions derived from
// it. It holds only immutable configuration; all randomness comes from the
// *rand.Rand passed into each stochastic call, so callers control seeding and
// replay.
type Engine struct {
	cfg   *config.SimulationConfig
	plans map[string]models.Plan
}

// NewEngine builds an engine over an immutable simulation config. An empty
// plan catalog is a fatal configuration error.
func NewEngine(cfg *config.SimulationConfig) (*Engine, error) {
	if len(cfg.Plans) == 0 {
		return nil, fmt.Errorf("behavior engine requires a non-empty plan catalog")
	}
	plans := make(map[string]models.Plan, len(cfg.Plans))
	for _, p := range cfg.Plans {
		plans[p.Name] = p
	}
	return &Engine{cfg: cfg, plans: plans}, nil
}

// MonthlyBehavior composes the customer's effective parameters for a month.
// Modifiers apply in a fixed order: geographic, industry, seasonal, tenure.
// Later steps may read fields written by earlier ones. The archetype config is
// copied, never mutated.
func (e *Engine) MonthlyBehavior(customer *models.Customer, month int) *Behavior {
	profile := e.cfg.Archetypes[customer.Archetype]

	b := &Behavior{
		params:            make(map[string]float64, len(profile.Params)),
		seasonalChurnRisk: profile.SeasonalChurnRisk,
	}
	for k, v := range profile.Params {
		b.params[k] = v
	}

	applyModifiers(b, e.cfg.GeoModifiers[customer.Geography])
	applyModifiers(b, e.cfg.IndustryModifiers[customer.Industry])

	if customer.Archetype == models.ArchetypeSeasonalBusiness {
		if mult, ok := profile.SeasonalMultipliers[config.Quarter(month)]; ok {
			b.params[config.ParamSeasonalMultiplier] = mult
		}
	}

	// Longer tenure lowers churn, up to a 1.2x loyalty factor.
	loyalty := 1 + float64(month)*0.01
	if loyalty > 1.2 {
		loyalty = 1.2
	}
	if b.Has(config.ParamBaseChurnRate) {
		b.params[config.ParamBaseChurnRate] /= loyalty
	}

	return b
}

// applyModifiers multiplies every parameter present in both the bag and the
// modifier table. Unknown keys on either side are skipped.
func applyModifiers(b *Behavior, mods map[string]float64) {
	for key, mult := range mods {
		if _, ok := b.params[key]; ok {
			b.params[key] *= mult
		}
	}
}

// CalculateUsage derives the customer's usage snapshot for a tenure month.
// previous is last month's snapshot, or nil in the first active month.
func (e *Engine) CalculateUsage(rng *rand.Rand, customer *models.Customer, month int, planName string, previous *models.UsageSnapshot) *models.UsageSnapshot {
	b := e.MonthlyBehavior(customer, month)
	plan := e.plans[planName]

	pct := e.baseUsagePercentage(rng, customer, b)

	if previous != nil {
		variance := b.Get(config.ParamGrowthVariance, 0.05)
		growth := b.Get(config.ParamMonthlyGrowthRate, 0) + uniform(rng, -variance, variance)
		pct *= 1 + growth
	}

	pct *= b.Get(config.ParamSeasonalMultiplier, 1.0)
	pct *= e.industryUsageMultiplier(customer, month)
	if pct < 0 {
		pct = 0
	}

	apiCalls := int(float64(plan.APICallLimit) * pct)
	dataPoints := int(float64(apiCalls) * uniform(rng, 1.5, 3.0))
	queries := int(float64(apiCalls) * 0.1)
	projects := 1 + rng.Intn(3)
	if plan.MaxProjects > 0 && projects > plan.MaxProjects {
		projects = plan.MaxProjects
	}

	usagePct := pct
	if usagePct > 1.5 {
		usagePct = 1.5
	}

	return &models.UsageSnapshot{
		APICalls:           maxInt(0, apiCalls),
		DataPointsIngested: maxInt(0, dataPoints),
		QueriesExecuted:    maxInt(0, queries),
		ProjectsActive:     projects,
		UsagePercentage:    usagePct,
	}
}

// ShouldUpgrade decides whether the month's usage pushes the customer up the
// plan ladder, and to which plan. month is the absolute simulation month.
func (e *Engine) ShouldUpgrade(customer *models.Customer, usage *models.UsageSnapshot, planName string, month int) (bool, string) {
	b := e.MonthlyBehavior(customer, month)
	threshold := b.Get(config.ParamUpgradeThreshold, 0.8)

	switch {
	case customer.Archetype == models.ArchetypePriceSensitive:
		threshold = 0.95
	case customer.Archetype == models.ArchetypeEnterprisePilot && month >= 2:
		threshold = 0.6
	}

	if usage.UsagePercentage >= threshold {
		return true, e.targetUpgradePlan(planName, customer)
	}
	return false, planName
}

// ShouldDowngrade applies the seasonal-business slow-quarter rule: one step
// down the ladder in Q2/Q3 when usage drops below 30% of quota.
func (e *Engine) ShouldDowngrade(customer *models.Customer, usage *models.UsageSnapshot, planName string, month int) (bool, string) {
	if customer.Archetype != models.ArchetypeSeasonalBusiness {
		return false, planName
	}

	quarter := config.Quarter(month)
	if (quarter == "Q2" || quarter == "Q3") && usage.UsagePercentage < 0.3 {
		switch planName {
		case "Enterprise":
			return true, "Pro"
		case "Pro":
			return true, "Basic"
		}
	}
	return false, planName
}

// ChurnRisk scores the probability that the customer churns this tenure month.
// Two or more consecutive payment failures force near-certain churn before any
// archetype logic runs; a single failure triples the base rate. Everything
// except the failure override is capped at 0.5.
func (e *Engine) ChurnRisk(customer *models.Customer, month int, usageHistory []*models.UsageSnapshot, paymentFailures int) float64 {
	if paymentFailures >= 2 {
		return 0.95
	}

	b := e.MonthlyBehavior(customer, month)
	rate := b.Get(config.ParamBaseChurnRate, 0.02)

	switch customer.Archetype {
	case models.ArchetypeFailedAdoption:
		if month <= 2 {
			return b.Get(config.ParamEarlyChurnRate, 0.25)
		}
	case models.ArchetypeEnterprisePilot:
		if month <= 3 && averageUsage(usageHistory) < 0.3 {
			return b.Get(config.ParamEarlyChurnRate, 0.15)
		}
	case models.ArchetypeSeasonalBusiness:
		if mult, ok := b.seasonalChurnRisk[config.Quarter(month)]; ok {
			rate *= mult
		}
	}

	if paymentFailures == 1 {
		rate *= 3
	}

	if rate > 0.5 {
		rate = 0.5
	}
	return rate
}

// PaymentSuccessRate resolves the per-month billing success probability from
// the geographic modifier table, scaled by archetype and capped at 0.99.
func (e *Engine) PaymentSuccessRate(customer *models.Customer) float64 {
	rate := 0.95
	if mods, ok := e.cfg.GeoModifiers[customer.Geography]; ok {
		if r, ok := mods[config.ParamPaymentSuccessRate]; ok {
			rate = r
		}
	}

	switch customer.Archetype {
	case models.ArchetypePriceSensitive:
		rate *= 0.92
	case models.ArchetypeEnterprisePilot:
		rate *= 1.02
	}

	if rate > 0.99 {
		rate = 0.99
	}
	return rate
}

// PlanFeatures returns the feature set of a plan, defaulting to the bare
// minimum for unknown plan names.
func (e *Engine) PlanFeatures(planName string) []string {
	if plan, ok := e.plans[planName]; ok && len(plan.Features) > 0 {
		return plan.Features
	}
	return []string{"basic_analytics"}
}

// targetUpgradePlan walks one step up the plan ladder. Enterprise pilots skip
// straight from Basic to Enterprise.
func (e *Engine) targetUpgradePlan(planName string, customer *models.Customer) string {
	switch planName {
	case "Basic":
		if customer.Archetype == models.ArchetypeEnterprisePilot {
			return "Enterprise"
		}
		return "Pro"
	case "Pro":
		return "Enterprise"
	default:
		return planName
	}
}

func (e *Engine) baseUsagePercentage(rng *rand.Rand, customer *models.Customer, b *Behavior) float64 {
	switch customer.Archetype {
	case models.ArchetypeFailedAdoption:
		return b.Get(config.ParamLowUsageMultiplier, 0.2)
	case models.ArchetypePriceSensitive:
		return b.Get(config.ParamUsageManagement, 0.85)
	default:
		return uniform(rng, 0.4, 0.7)
	}
}

// industryUsageMultiplier returns the industry's seasonal usage factor, with
// quarter-specific spikes for e-commerce (Q4) and marketing agencies (Q1).
func (e *Engine) industryUsageMultiplier(customer *models.Customer, month int) float64 {
	mods := e.cfg.IndustryModifiers[customer.Industry]
	quarter := config.Quarter(month)

	switch customer.Industry {
	case "ecommerce":
		if quarter == "Q4" {
			return lookupOr(mods, "q4_spike", 2.5)
		}
	case "marketing_agency":
		if quarter == "Q1" {
			return lookupOr(mods, "q1_spike", 1.4)
		}
	}
	return lookupOr(mods, config.ParamSeasonalMultiplier, 1.0)
}

func averageUsage(history []*models.UsageSnapshot) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, u := range history {
		sum += u.UsagePercentage
	}
	return sum / float64(len(history))
}

func lookupOr(mods map[string]float64, key string, def float64) float64 {
	if v, ok := mods[key]; ok {
		return v
	}
	return def
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
