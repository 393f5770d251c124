package simulation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jwashb22/saas-analytics-pipeline/internal/behavior"
	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/generators"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

type SimulatorTestSuite struct {
	suite.Suite
	cfg *config.SimulationConfig
}

func (suite *SimulatorTestSuite) SetupTest() {
	suite.cfg = config.DefaultSimulation()
	suite.cfg.Customers = 200
	suite.cfg.Months = 18
	suite.cfg.Seed = 42
}

func TestSimulatorTestSuite(t *testing.T) {
	suite.Run(t, new(SimulatorTestSuite))
}

func (suite *SimulatorTestSuite) runSimulation(seed int64) *models.SimulationResult {
	engine, err := behavior.NewEngine(suite.cfg)
	require.NoError(suite.T(), err)

	rng := rand.New(rand.NewSource(seed))
	customers := generators.NewCustomerGenerator(suite.cfg).Generate(rng, suite.cfg.Customers)

	sim := NewSimulator(engine, NewLedger(suite.cfg), suite.cfg, rng)
	return sim.Run(customers)
}

func (suite *SimulatorTestSuite) TestRun_SameSeedReproducesRun() {
	a := suite.runSimulation(42)
	b := suite.runSimulation(42)

	require.Equal(suite.T(), len(a.Customers), len(b.Customers))
	require.Equal(suite.T(), len(a.Subscriptions), len(b.Subscriptions))
	require.Equal(suite.T(), len(a.UsageEvents), len(b.UsageEvents))
	require.Equal(suite.T(), len(a.BillingTransactions), len(b.BillingTransactions))

	for i := range a.Customers {
		assert.Equal(suite.T(), *a.Customers[i], *b.Customers[i])
	}
	for i := range a.Subscriptions {
		assert.Equal(suite.T(), a.Subscriptions[i].PlanName, b.Subscriptions[i].PlanName)
		assert.Equal(suite.T(), a.Subscriptions[i].StartDate, b.Subscriptions[i].StartDate)
	}
	for i := range a.BillingTransactions {
		assert.Equal(suite.T(), *a.BillingTransactions[i], *b.BillingTransactions[i])
	}
}

func (suite *SimulatorTestSuite) TestRun_DifferentSeedsDiverge() {
	a := suite.runSimulation(1)
	b := suite.runSimulation(2)

	// Two seeds producing identical populations is practically impossible.
	identical := len(a.Customers) == len(b.Customers)
	if identical {
		for i := range a.Customers {
			if *a.Customers[i] != *b.Customers[i] {
				identical = false
				break
			}
		}
	}
	assert.False(suite.T(), identical)
}

func (suite *SimulatorTestSuite) TestRun_AtMostOneOpenSubscriptionPerCustomer() {
	result := suite.runSimulation(42)

	open := make(map[int]int)
	for _, sub := range result.Subscriptions {
		if sub.Open() {
			open[sub.CustomerID]++
		}
	}
	for customerID, n := range open {
		assert.LessOrEqual(suite.T(), n, 1, "customer %d has %d open subscriptions", customerID, n)
	}
}

func (suite *SimulatorTestSuite) TestRun_ChurnedCustomersFullyClosed() {
	result := suite.runSimulation(42)

	churned := make(map[int]bool)
	for _, c := range result.Customers {
		if c.Status == models.CustomerStatusChurned {
			churned[c.ID] = true
		}
	}
	require.NotEmpty(suite.T(), churned, "expected some churn over 18 months")

	for _, sub := range result.Subscriptions {
		if churned[sub.CustomerID] {
			assert.False(suite.T(), sub.Open(), "churned customer %d still has an open subscription", sub.CustomerID)
			assert.Equal(suite.T(), models.SubscriptionStatusCancelled, sub.Status)
		}
	}
}

func (suite *SimulatorTestSuite) TestRun_SubscriptionChainsAreContiguous() {
	result := suite.runSimulation(42)

	byCustomer := make(map[int][]*models.Subscription)
	for _, sub := range result.Subscriptions {
		byCustomer[sub.CustomerID] = append(byCustomer[sub.CustomerID], sub)
	}

	for customerID, subs := range byCustomer {
		// Appended in creation order; each closed record hands over to the
		// next one on its end date.
		for i := 0; i < len(subs)-1; i++ {
			require.NotNil(suite.T(), subs[i].EndDate, "customer %d has a non-final open subscription", customerID)
			assert.Equal(suite.T(), *subs[i].EndDate, subs[i+1].StartDate,
				"customer %d has a gap between subscriptions %d and %d", customerID, subs[i].ID, subs[i+1].ID)
		}
	}
}

func (suite *SimulatorTestSuite) TestRun_NoActivityAfterChurn() {
	result := suite.runSimulation(42)

	churnDate := make(map[int]time.Time)
	for _, sub := range result.Subscriptions {
		if sub.Status == models.SubscriptionStatusCancelled && sub.EndDate != nil {
			if cur, ok := churnDate[sub.CustomerID]; !ok || sub.EndDate.After(cur) {
				churnDate[sub.CustomerID] = *sub.EndDate
			}
		}
	}
	churned := make(map[int]bool)
	for _, c := range result.Customers {
		if c.Status == models.CustomerStatusChurned {
			churned[c.ID] = true
		}
	}

	for _, ev := range result.UsageEvents {
		if churned[ev.CustomerID] {
			// Weekly rows of the churn month may run past the churn date;
			// nothing starts in a later month.
			limit := churnDate[ev.CustomerID].AddDate(0, 0, 27)
			assert.False(suite.T(), ev.Date.After(limit),
				"usage event for churned customer %d at %s", ev.CustomerID, ev.Date)
		}
	}
	for _, tx := range result.BillingTransactions {
		if churned[tx.CustomerID] {
			assert.False(suite.T(), tx.TransactionDate.After(churnDate[tx.CustomerID]),
				"billing for churned customer %d at %s", tx.CustomerID, tx.TransactionDate)
		}
	}
}

func (suite *SimulatorTestSuite) TestRecordUsageEvents_WeeklyRowsSumToMonth() {
	engine, err := behavior.NewEngine(suite.cfg)
	require.NoError(suite.T(), err)

	rng := rand.New(rand.NewSource(42))
	sim := NewSimulator(engine, NewLedger(suite.cfg), suite.cfg, rng)

	snapshot := &models.UsageSnapshot{
		APICalls:           10000,
		DataPointsIngested: 25000,
		QueriesExecuted:    1000,
		ProjectsActive:     2,
		UsagePercentage:    1.0,
	}
	monthStart := config.MonthDate(3)

	for i := 0; i < 50; i++ {
		sim.usageEvents = nil
		sim.recordUsageEvents(1, monthStart, snapshot, "Pro")

		require.Len(suite.T(), sim.usageEvents, 4)

		var calls, data, queries int
		for w, ev := range sim.usageEvents {
			assert.Equal(suite.T(), monthStart.AddDate(0, 0, w*7), ev.Date)
			assert.GreaterOrEqual(suite.T(), ev.APICalls, 0)
			assert.Equal(suite.T(), 2, ev.ProjectsActive)
			assert.NotEmpty(suite.T(), ev.FeatureUsed)
			calls += ev.APICalls
			data += ev.DataPointsIngested
			queries += ev.QueriesExecuted
		}

		// Weeks 1-3 draw at most 30% each, so the last week's remainder is
		// always positive and the weekly rows sum exactly to the month.
		assert.Equal(suite.T(), snapshot.APICalls, calls)
		assert.Equal(suite.T(), snapshot.DataPointsIngested, data)
		assert.Equal(suite.T(), snapshot.QueriesExecuted, queries)
	}
}

func (suite *SimulatorTestSuite) TestRun_UsageEventsComeInWeeklyGroupsOfFour() {
	result := suite.runSimulation(42)
	require.NotEmpty(suite.T(), result.UsageEvents)
	assert.Zero(suite.T(), len(result.UsageEvents)%4)
}

func (suite *SimulatorTestSuite) TestRun_NoRecordsBeforeSignup() {
	result := suite.runSimulation(42)

	signup := make(map[int]time.Time)
	for _, c := range result.Customers {
		signup[c.ID] = c.SignupDate
	}

	for _, ev := range result.UsageEvents {
		assert.False(suite.T(), ev.Date.Before(signup[ev.CustomerID]),
			"usage before signup for customer %d", ev.CustomerID)
	}
	for _, tx := range result.BillingTransactions {
		assert.False(suite.T(), tx.TransactionDate.Before(signup[tx.CustomerID]),
			"billing before signup for customer %d", tx.CustomerID)
	}
}

func (suite *SimulatorTestSuite) TestRun_BillingAmountsMatchPlanCatalog() {
	result := suite.runSimulation(42)

	validSubscription := map[float64]bool{99: true, 299: true, 999: true}
	for _, tx := range result.BillingTransactions {
		switch tx.Type {
		case models.BillingTypeSubscription:
			assert.True(suite.T(), validSubscription[tx.Amount], "unexpected subscription amount %v", tx.Amount)
		case models.BillingTypeUpgrade, models.BillingTypeRefund:
			assert.Greater(suite.T(), tx.Amount, 0.0)
		}
	}
}

func (suite *SimulatorTestSuite) TestRun_WritesFinalStateBackToCustomers() {
	result := suite.runSimulation(42)

	plans := map[string]bool{"Basic": true, "Pro": true, "Enterprise": true}
	var sawUpgrade bool
	for _, c := range result.Customers {
		assert.True(suite.T(), plans[c.PlanTier], "customer %d has unknown plan %s", c.ID, c.PlanTier)
		assert.Contains(suite.T(), []string{models.CustomerStatusActive, models.CustomerStatusChurned}, c.Status)
		if c.PlanTier != "Basic" {
			sawUpgrade = true
		}
	}
	assert.True(suite.T(), sawUpgrade, "expected at least one customer off the Basic tier")
}

func (suite *SimulatorTestSuite) TestRun_OnMonthCallback() {
	engine, err := behavior.NewEngine(suite.cfg)
	require.NoError(suite.T(), err)

	rng := rand.New(rand.NewSource(42))
	customers := generators.NewCustomerGenerator(suite.cfg).Generate(rng, suite.cfg.Customers)

	sim := NewSimulator(engine, NewLedger(suite.cfg), suite.cfg, rng)
	var months []int
	sim.OnMonth = func(month, total int) {
		suite.Equal(suite.cfg.Months, total)
		months = append(months, month)
	}
	sim.Run(customers)

	require.Len(suite.T(), months, suite.cfg.Months)
	assert.Equal(suite.T(), 1, months[0])
	assert.Equal(suite.T(), suite.cfg.Months, months[len(months)-1])
}

// newSeededSimulator builds a simulator with a single customer already
// registered, so the risk helpers can be exercised directly.
func (suite *SimulatorTestSuite) newSeededSimulator(c *models.Customer) *Simulator {
	engine, err := behavior.NewEngine(suite.cfg)
	require.NoError(suite.T(), err)

	sim := NewSimulator(engine, NewLedger(suite.cfg), suite.cfg, rand.New(rand.NewSource(42)))
	sim.states[c.ID] = &customerState{
		status:      models.CustomerStatusActive,
		currentPlan: "Basic",
		signupMonth: config.SignupMonth(c.SignupDate),
	}
	return sim
}

func usageHistoryAt(percentages ...float64) []*models.UsageSnapshot {
	history := make([]*models.UsageSnapshot, len(percentages))
	for i, p := range percentages {
		history[i] = &models.UsageSnapshot{UsagePercentage: p}
	}
	return history
}

func (suite *SimulatorTestSuite) TestMonthlyChurnRisk_FailedAdoptionLowUsageStreakDoubles() {
	c := &models.Customer{
		ID:         1,
		Archetype:  models.ArchetypeFailedAdoption,
		Geography:  "US",
		Industry:   "saas_tech",
		Status:     models.CustomerStatusActive,
		SignupDate: config.SimulationEpoch,
	}
	sim := suite.newSeededSimulator(c)
	sim.usageHistory[c.ID] = usageHistoryAt(0.1, 0.1)

	// One low month is not a streak yet: the engine's early churn rate
	// passes through unchanged.
	sim.states[c.ID].consecutiveLowUsage = 1
	assert.InDelta(suite.T(), 0.25, sim.monthlyChurnRisk(c, 2), 1e-9)

	// Two consecutive low-usage months double it.
	sim.states[c.ID].consecutiveLowUsage = 2
	assert.InDelta(suite.T(), 0.5, sim.monthlyChurnRisk(c, 2), 1e-9)
}

func (suite *SimulatorTestSuite) TestMonthlyChurnRisk_FailedAdoptionDoubleIsCapped() {
	c := &models.Customer{
		ID:         1,
		Archetype:  models.ArchetypeFailedAdoption,
		Geography:  "US",
		Industry:   "saas_tech",
		Status:     models.CustomerStatusActive,
		SignupDate: config.SimulationEpoch,
	}
	sim := suite.newSeededSimulator(c)
	sim.usageHistory[c.ID] = usageHistoryAt(0.1, 0.1)
	sim.states[c.ID].consecutiveLowUsage = 3

	// Two payment failures put the engine at 0.95; doubling stops at 0.8.
	sim.paymentFailures[c.ID] = 2
	assert.InDelta(suite.T(), 0.8, sim.monthlyChurnRisk(c, 2), 1e-9)
}

func (suite *SimulatorTestSuite) TestMonthlyChurnRisk_EnterprisePilotTrialRescore() {
	c := &models.Customer{
		ID:         1,
		Archetype:  models.ArchetypeEnterprisePilot,
		Geography:  "US",
		Industry:   "saas_tech",
		Status:     models.CustomerStatusActive,
		SignupDate: config.SimulationEpoch,
	}
	sim := suite.newSeededSimulator(c)

	// Healthy trailing usage inside the trial window pins the risk at 0.05,
	// regardless of what the engine computed.
	sim.usageHistory[c.ID] = usageHistoryAt(0.5, 0.6, 0.4)
	assert.InDelta(suite.T(), 0.05, sim.monthlyChurnRisk(c, 3), 1e-9)

	// Weak trailing usage inside the trial window pins it at 0.4.
	sim.usageHistory[c.ID] = usageHistoryAt(0.3, 0.35, 0.35)
	assert.InDelta(suite.T(), 0.4, sim.monthlyChurnRisk(c, 3), 1e-9)
}

func (suite *SimulatorTestSuite) TestMonthlyChurnRisk_EnterprisePilotRescoreEndsAfterTrial() {
	c := &models.Customer{
		ID:         1,
		Archetype:  models.ArchetypeEnterprisePilot,
		Geography:  "US",
		Industry:   "saas_tech",
		Status:     models.CustomerStatusActive,
		SignupDate: config.SimulationEpoch,
	}
	sim := suite.newSeededSimulator(c)
	sim.usageHistory[c.ID] = usageHistoryAt(0.5, 0.6, 0.4, 0.5)

	engine, err := behavior.NewEngine(suite.cfg)
	require.NoError(suite.T(), err)

	// Past tenure month 3 the engine's figure stands.
	want := engine.ChurnRisk(c, 4, sim.usageHistory[c.ID], 0)
	assert.InDelta(suite.T(), want, sim.monthlyChurnRisk(c, 4), 1e-9)
	assert.NotEqual(suite.T(), 0.05, want)
}
