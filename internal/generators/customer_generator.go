package generators

import (
	"math/rand"
	"sort"
	"time"

	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

var companyPrefixes = []string{
	"Apex", "Nova", "Prime", "Elite", "Summit", "Vertex", "Zenith", "Alpha",
	"Beta", "Delta", "Gamma", "Meta", "Ultra", "Super", "Mega", "Hyper",
	"Smart", "Quick", "Fast", "Rapid", "Swift", "Agile", "Dynamic", "Global",
	"Digital", "Cyber", "Tech", "Data", "Cloud", "Web", "Mobile", "Auto",
}

var companySuffixes = []string{
	"Solutions", "Systems", "Technologies", "Dynamics", "Innovations",
	"Labs", "Works", "Studio", "Group", "Corp", "Inc", "LLC", "Ltd",
	"Enterprises", "Ventures", "Partners", "Associates", "Consulting",
	"Services", "Analytics", "Intelligence", "Insights", "Data", "Hub",
}

var standaloneNames = []string{"Acme", "Pioneer", "Fusion", "Nexus", "Quantum"}

// Customers sign up during the first six simulated months; January gets a
// new-year bump.
var signupMonthWeights = []float64{1.3, 1.0, 1.0, 1.0, 1.0, 1.0}

// CustomerGenerator produces the initial population that seeds the timeline
// simulator: archetype, geography, industry, and channel assignment plus a
// signup date. A pure sampling step, independent of the simulation core.
type CustomerGenerator struct {
	cfg *config.SimulationConfig

	// Archetype names sorted for a deterministic sampling order.
	archetypeNames   []string
	archetypeWeights []float64
}

// NewCustomerGenerator builds a generator over the configured archetype
// weights and enumerations.
func NewCustomerGenerator(cfg *config.SimulationConfig) *CustomerGenerator {
	names := make([]string, 0, len(cfg.Archetypes))
	for name := range cfg.Archetypes {
		names = append(names, name)
	}
	sort.Strings(names)

	weights := make([]float64, len(names))
	for i, name := range names {
		weights[i] = cfg.Archetypes[name].Weight
	}

	return &CustomerGenerator{cfg: cfg, archetypeNames: names, archetypeWeights: weights}
}

// Generate samples n customers. IDs are assigned 1..n in order.
func (g *CustomerGenerator) Generate(rng *rand.Rand, n int) []*models.Customer {
	customers := make([]*models.Customer, 0, n)
	for i := 0; i < n; i++ {
		customers = append(customers, &models.Customer{
			ID:                 i + 1,
			CompanyName:        g.companyName(rng),
			SignupDate:         g.signupDate(rng),
			PlanTier:           "Basic",
			Geography:          weightedName(rng, g.cfg.Geographies),
			Industry:           weightedName(rng, g.cfg.Industries),
			AcquisitionChannel: weightedName(rng, g.cfg.AcquisitionChannels),
			Status:             models.CustomerStatusActive,
			Archetype:          g.archetypeNames[weightedIndex(rng, g.archetypeWeights)],
		})
	}
	return customers
}

// ArchetypeDistribution compares the generated archetype split against the
// configured weights.
type ArchetypeDistribution struct {
	ExpectedPct float64 `json:"expected_pct"`
	ActualCount int     `json:"actual_count"`
	ActualPct   float64 `json:"actual_pct"`
}

// DistributionReport summarizes how close the sampled population landed to
// the configured archetype weights.
func (g *CustomerGenerator) DistributionReport(customers []*models.Customer) map[string]ArchetypeDistribution {
	counts := make(map[string]int)
	for _, c := range customers {
		counts[c.Archetype]++
	}

	report := make(map[string]ArchetypeDistribution, len(g.archetypeNames))
	total := float64(len(customers))
	for _, name := range g.archetypeNames {
		actual := counts[name]
		report[name] = ArchetypeDistribution{
			ExpectedPct: g.cfg.Archetypes[name].Weight * 100,
			ActualCount: actual,
			ActualPct:   float64(actual) / total * 100,
		}
	}
	return report
}

func (g *CustomerGenerator) signupDate(rng *rand.Rand) time.Time {
	month := weightedIndex(rng, signupMonthWeights) + 1
	dayOffset := (month-1)*30 + rng.Intn(30)
	return config.SimulationEpoch.AddDate(0, 0, dayOffset)
}

func (g *CustomerGenerator) companyName(rng *rand.Rand) string {
	if rng.Float64() < 0.3 {
		pool := append(append([]string{}, companyPrefixes...), standaloneNames...)
		return pool[rng.Intn(len(pool))]
	}
	return companyPrefixes[rng.Intn(len(companyPrefixes))] + " " + companySuffixes[rng.Intn(len(companySuffixes))]
}

func weightedName(rng *rand.Rand, options []config.Weighted) string {
	weights := make([]float64, len(options))
	for i, o := range options {
		weights[i] = o.Weight
	}
	return options[weightedIndex(rng, weights)].Name
}

// weightedIndex samples an index proportionally to the given weights.
func weightedIndex(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}

	target := rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target < 0 {
			return i
		}
	}
	return len(weights) - 1
}
