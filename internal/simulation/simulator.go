package simulation

import (
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/jwashb22/saas-analytics-pipeline/internal/behavior"
	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

// customerState is the simulator's ephemeral per-customer state. It exists
// only for the duration of a run; final status and plan are written back into
// the customer records at the end. Once status becomes churned it is terminal.
type customerState struct {
	status              string
	currentPlan         string
	signupMonth         int
	churnMonth          *time.Time
	lastUsage           *models.UsageSnapshot
	consecutiveLowUsage int
}

// Simulator advances the whole population month by month, asking the behavior
// engine for decisions and the ledger for subscription state changes, and
// accumulating usage and billing records. All mutable state is owned here;
// engine and ledger are invoked as stateless collaborators.
//
// The run is strictly sequential and draws all randomness from the single
// *rand.Rand it was built with, so a fixed seed reproduces a run exactly.
type Simulator struct {
	engine *behavior.Engine
	ledger *Ledger
	cfg    *config.SimulationConfig
	rng    *rand.Rand

	// OnMonth, when set, is called after each simulated month. Used for
	// progress reporting.
	OnMonth func(month, total int)

	subscriptions []*models.Subscription
	usageEvents   []*models.UsageEvent
	billing       []*models.BillingTransaction

	states          map[int]*customerState
	usageHistory    map[int][]*models.UsageSnapshot
	paymentFailures map[int]int

	subsByCustomer map[int][]*models.Subscription
}

// NewSimulator wires a simulator from its collaborators. The rng is the run's
// only randomness source.
func NewSimulator(engine *behavior.Engine, ledger *Ledger, cfg *config.SimulationConfig, rng *rand.Rand) *Simulator {
	return &Simulator{
		engine:          engine,
		ledger:          ledger,
		cfg:             cfg,
		rng:             rng,
		states:          make(map[int]*customerState),
		usageHistory:    make(map[int][]*models.UsageSnapshot),
		paymentFailures: make(map[int]int),
		subsByCustomer:  make(map[int][]*models.Subscription),
	}
}

// Run simulates the configured number of months over the population and
// returns the four record collections. Customer records are updated in place
// with their final status and plan tier.
func (s *Simulator) Run(customers []*models.Customer) *models.SimulationResult {
	log.Printf("starting simulation: %d customers over %d months", len(customers), s.cfg.Months)

	for _, c := range customers {
		s.states[c.ID] = &customerState{
			status:      models.CustomerStatusActive,
			currentPlan: "Basic",
			signupMonth: config.SignupMonth(c.SignupDate),
		}
	}

	for _, sub := range s.ledger.GenerateInitialSubscriptions(customers) {
		s.appendSubscription(sub)
	}

	for month := 1; month <= s.cfg.Months; month++ {
		s.simulateMonth(month, customers)
		if s.OnMonth != nil {
			s.OnMonth(month, s.cfg.Months)
		}
	}

	churned := 0
	for _, c := range customers {
		state := s.states[c.ID]
		c.Status = state.status
		c.PlanTier = state.currentPlan
		if state.status == models.CustomerStatusChurned {
			churned++
		}
	}
	log.Printf("simulation complete: %d of %d customers churned", churned, len(customers))

	return &models.SimulationResult{
		Customers:           customers,
		Subscriptions:       s.subscriptions,
		UsageEvents:         s.usageEvents,
		BillingTransactions: s.billing,
	}
}

func (s *Simulator) simulateMonth(month int, customers []*models.Customer) {
	date := config.MonthDate(month)

	// Population order is fixed, so the stream of random draws is too.
	for _, c := range customers {
		if s.states[c.ID].status != models.CustomerStatusActive {
			continue
		}
		s.simulateCustomerMonth(c, month, date)
	}
}

// simulateCustomerMonth runs one customer through one month: usage, plan
// changes, billing, then churn. Order matters; each step feeds the next.
func (s *Simulator) simulateCustomerMonth(c *models.Customer, month int, date time.Time) {
	state := s.states[c.ID]
	if month < state.signupMonth {
		return
	}

	currentSub := s.currentSubscription(c.ID, date)
	if currentSub == nil {
		// An active customer must always have an open subscription.
		log.Printf("invariant violation: active customer %d has no open subscription on %s, skipping month %d",
			c.ID, date.Format("2006-01-02"), month)
		return
	}

	tenure := month - state.signupMonth + 1

	usage := s.engine.CalculateUsage(s.rng, c, tenure, currentSub.PlanName, state.lastUsage)
	s.recordUsageEvents(c.ID, date, usage, currentSub.PlanName)

	state.lastUsage = usage
	s.usageHistory[c.ID] = append(s.usageHistory[c.ID], usage)

	if usage.UsagePercentage < 0.3 {
		state.consecutiveLowUsage++
	} else {
		state.consecutiveLowUsage = 0
	}

	s.checkPlanChanges(c, month, usage, currentSub, date)
	s.generateMonthlyBilling(c, currentSub, date)
	s.checkChurn(c, month, date)
}

// checkPlanChanges evaluates upgrade then downgrade. Upgrade wins: once one
// executes, the downgrade check is skipped for the month.
func (s *Simulator) checkPlanChanges(c *models.Customer, month int, usage *models.UsageSnapshot, currentSub *models.Subscription, date time.Time) {
	currentPlan := currentSub.PlanName

	if up, target := s.engine.ShouldUpgrade(c, usage, currentPlan, month); up && target != currentPlan {
		s.executePlanChange(c.ID, currentSub, target, date)
		return
	}

	if down, target := s.engine.ShouldDowngrade(c, usage, currentPlan, month); down && target != currentPlan {
		s.executePlanChange(c.ID, currentSub, target, date)
	}
}

func (s *Simulator) executePlanChange(customerID int, currentSub *models.Subscription, newPlan string, date time.Time) {
	oldPlan := currentSub.PlanName

	_, opened := s.ledger.CreatePlanChange(customerID, currentSub, newPlan, date)
	s.appendSubscription(opened)
	s.states[customerID].currentPlan = newPlan

	delta := s.ledger.MRRImpact(oldPlan, newPlan)
	switch {
	case delta > 0:
		s.recordBilling(customerID, date, delta, models.BillingTypeUpgrade, models.BillingStatusSuccess)
	case delta < 0:
		s.recordBilling(customerID, date, -delta, models.BillingTypeRefund, models.BillingStatusSuccess)
	}
}

// generateMonthlyBilling emits the standing subscription charge. The price is
// the one in effect at the start of the month, even when a plan change landed
// earlier the same month. A failure bumps the consecutive-failure counter; a
// success resets it.
func (s *Simulator) generateMonthlyBilling(c *models.Customer, sub *models.Subscription, date time.Time) {
	successRate := s.engine.PaymentSuccessRate(c)

	status := models.BillingStatusFailed
	if s.rng.Float64() < successRate {
		status = models.BillingStatusSuccess
		s.paymentFailures[c.ID] = 0
	} else {
		s.paymentFailures[c.ID]++
	}

	s.recordBilling(c.ID, date, sub.MonthlyPrice, models.BillingTypeSubscription, status)
}

// checkChurn draws against the month's churn probability.
func (s *Simulator) checkChurn(c *models.Customer, month int, date time.Time) {
	if s.rng.Float64() < s.monthlyChurnRisk(c, month) {
		s.executeChurn(c.ID, date)
	}
}

// monthlyChurnRisk is the engine's churn figure with two simulator-side
// overrides applied: failed-adoption customers on a low-usage streak double
// it (capped 0.8), and enterprise pilots inside their first three tenure
// months are rescored purely from trailing average usage.
func (s *Simulator) monthlyChurnRisk(c *models.Customer, month int) float64 {
	state := s.states[c.ID]
	tenure := month - state.signupMonth + 1

	history := s.usageHistory[c.ID]
	risk := s.engine.ChurnRisk(c, tenure, history, s.paymentFailures[c.ID])

	switch c.Archetype {
	case models.ArchetypeFailedAdoption:
		if state.consecutiveLowUsage >= 2 {
			risk *= 2
			if risk > 0.8 {
				risk = 0.8
			}
		}
	case models.ArchetypeEnterprisePilot:
		if tenure <= 3 && len(history) > 0 {
			var sum float64
			for _, u := range history {
				sum += u.UsagePercentage
			}
			if sum/float64(len(history)) < 0.4 {
				risk = 0.4
			} else {
				risk = 0.05
			}
		}
	}

	return risk
}

func (s *Simulator) executeChurn(customerID int, date time.Time) {
	state := s.states[customerID]
	state.status = models.CustomerStatusChurned
	churnDate := date
	state.churnMonth = &churnDate

	if currentSub := s.currentSubscription(customerID, date); currentSub != nil {
		s.ledger.CancelSubscription(currentSub, date)
	}

	log.Printf("customer %d churned in %s", customerID, date.Format("2006-01"))
}

// recordUsageEvents splits the monthly snapshot into four weekly rows. The
// first three weeks draw 25%±5% of the totals; the last takes the remainder so
// the weekly rows sum exactly to the month.
func (s *Simulator) recordUsageEvents(customerID int, date time.Time, usage *models.UsageSnapshot, planName string) {
	features := s.engine.PlanFeatures(planName)

	var usedCalls, usedData, usedQueries int
	for week := 0; week < 4; week++ {
		weekDate := date.AddDate(0, 0, week*7)

		var calls, data, queries int
		if week < 3 {
			pct := 0.25 + (s.rng.Float64()*0.1 - 0.05)
			calls = int(float64(usage.APICalls) * pct)
			data = int(float64(usage.DataPointsIngested) * pct)
			queries = int(float64(usage.QueriesExecuted) * pct)
			usedCalls += calls
			usedData += data
			usedQueries += queries
		} else {
			calls = maxInt(0, usage.APICalls-usedCalls)
			data = maxInt(0, usage.DataPointsIngested-usedData)
			queries = maxInt(0, usage.QueriesExecuted-usedQueries)
		}

		s.usageEvents = append(s.usageEvents, &models.UsageEvent{
			CustomerID:         customerID,
			Date:               weekDate,
			APICalls:           calls,
			DataPointsIngested: data,
			QueriesExecuted:    queries,
			ProjectsActive:     usage.ProjectsActive,
			FeatureUsed:        strings.Join(s.sampleFeatures(features), ","),
		})
	}
}

// sampleFeatures picks 1-3 distinct feature names from the plan's set.
func (s *Simulator) sampleFeatures(features []string) []string {
	limit := len(features)
	if limit > 3 {
		limit = 3
	}
	n := 1 + s.rng.Intn(limit)

	picked := make([]string, len(features))
	copy(picked, features)
	s.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	return picked[:n]
}

func (s *Simulator) recordBilling(customerID int, date time.Time, amount float64, txType, status string) {
	s.billing = append(s.billing, &models.BillingTransaction{
		CustomerID:      customerID,
		TransactionDate: date,
		Amount:          amount,
		Type:            txType,
		Status:          status,
	})
}

// currentSubscription finds the customer's subscription in effect on the
// given date, scanning most-recent-first.
func (s *Simulator) currentSubscription(customerID int, date time.Time) *models.Subscription {
	subs := s.subsByCustomer[customerID]
	for i := len(subs) - 1; i >= 0; i-- {
		if subs[i].CoversDate(date) {
			return subs[i]
		}
	}
	return nil
}

func (s *Simulator) appendSubscription(sub *models.Subscription) {
	s.subscriptions = append(s.subscriptions, sub)
	s.subsByCustomer[sub.CustomerID] = append(s.subsByCustomer[sub.CustomerID], sub)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
