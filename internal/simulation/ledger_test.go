package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

func TestGenerateInitialSubscriptions(t *testing.T) {
	cfg := config.DefaultSimulation()
	ledger := NewLedger(cfg)

	customers := []*models.Customer{
		{ID: 1, SignupDate: config.SimulationEpoch},
		{ID: 2, SignupDate: config.SimulationEpoch.AddDate(0, 0, 45)},
	}

	subs := ledger.GenerateInitialSubscriptions(customers)
	require.Len(t, subs, 2)

	for i, sub := range subs {
		assert.Equal(t, i+1, sub.ID)
		assert.Equal(t, customers[i].ID, sub.CustomerID)
		assert.Equal(t, "Basic", sub.PlanName)
		assert.Equal(t, 1, sub.PlanID)
		assert.Equal(t, 99.0, sub.MonthlyPrice)
		assert.Equal(t, customers[i].SignupDate, sub.StartDate)
		assert.True(t, sub.Open())
		assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
		assert.Equal(t, models.BillingCycleMonthly, sub.BillingCycle)
	}
}

func TestCreatePlanChange_ClosesOldOpensNew(t *testing.T) {
	cfg := config.DefaultSimulation()
	ledger := NewLedger(cfg)

	customers := []*models.Customer{{ID: 7, SignupDate: config.SimulationEpoch}}
	current := ledger.GenerateInitialSubscriptions(customers)[0]

	changeDate := config.SimulationEpoch.AddDate(0, 0, 90)
	closed, opened := ledger.CreatePlanChange(7, current, "Pro", changeDate)

	// The old record is mutated in place, keeping its identity.
	assert.Same(t, current, closed)
	require.NotNil(t, closed.EndDate)
	assert.Equal(t, changeDate, *closed.EndDate)
	assert.Equal(t, models.SubscriptionStatusCancelled, closed.Status)

	assert.Equal(t, 7, opened.CustomerID)
	assert.Equal(t, "Pro", opened.PlanName)
	assert.Equal(t, 2, opened.PlanID)
	assert.Equal(t, 299.0, opened.MonthlyPrice)
	assert.Equal(t, changeDate, opened.StartDate)
	assert.True(t, opened.Open())
	assert.Greater(t, opened.ID, closed.ID)
}

func TestCancelSubscription(t *testing.T) {
	cfg := config.DefaultSimulation()
	ledger := NewLedger(cfg)

	sub := ledger.GenerateInitialSubscriptions([]*models.Customer{{ID: 1, SignupDate: config.SimulationEpoch}})[0]
	end := config.SimulationEpoch.AddDate(0, 0, 60)

	ledger.CancelSubscription(sub, end)

	assert.False(t, sub.Open())
	assert.Equal(t, end, *sub.EndDate)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
}

func TestMRRImpact(t *testing.T) {
	cfg := config.DefaultSimulation()
	ledger := NewLedger(cfg)

	assert.Equal(t, 200.0, ledger.MRRImpact("Basic", "Pro"))
	assert.Equal(t, -200.0, ledger.MRRImpact("Pro", "Basic"))
	assert.Equal(t, 700.0, ledger.MRRImpact("Pro", "Enterprise"))
	assert.Equal(t, 0.0, ledger.MRRImpact("Basic", "Basic"))
	// Unknown plans price as zero.
	assert.Equal(t, -99.0, ledger.MRRImpact("Basic", "Platinum"))
}

func TestSubscriptionCoversDate(t *testing.T) {
	start := config.SimulationEpoch
	end := start.AddDate(0, 0, 90)
	sub := &models.Subscription{StartDate: start, EndDate: &end}

	assert.True(t, sub.CoversDate(start))
	assert.True(t, sub.CoversDate(start.AddDate(0, 0, 89)))
	assert.False(t, sub.CoversDate(end), "end date is exclusive")
	assert.False(t, sub.CoversDate(start.AddDate(0, 0, -1)))

	open := &models.Subscription{StartDate: start}
	assert.True(t, open.CoversDate(start.AddDate(10, 0, 0)))
}
