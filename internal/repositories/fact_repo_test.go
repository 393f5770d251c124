package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

type FactRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    FactRepository
	context context.Context
}

func (suite *FactRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewFactRepo(mock)
	suite.context = context.Background()
}

func (suite *FactRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestFactRepoTestSuite(t *testing.T) {
	suite.Run(t, new(FactRepoTestSuite))
}

func (suite *FactRepoTestSuite) TestInsertSubscriptions() {
	end := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	subs := []*models.Subscription{
		{ID: 1, CustomerID: 1, PlanID: 1, PlanName: "Basic", StartDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: &end, MonthlyPrice: 99, Status: "cancelled", BillingCycle: "monthly"},
		{ID: 2, CustomerID: 1, PlanID: 2, PlanName: "Pro", StartDate: end, MonthlyPrice: 299, Status: "active", BillingCycle: "monthly"},
	}

	suite.mock.ExpectCopyFrom(pgx.Identifier{"fact_subscriptions"},
		[]string{"customer_id", "plan_id", "plan_name", "start_date", "end_date", "monthly_price", "status", "billing_cycle", "duration_days"}).
		WillReturnResult(2)

	n, err := suite.repo.InsertSubscriptions(suite.context, subs)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), n)
}

func (suite *FactRepoTestSuite) TestInsertUsageEvents() {
	events := []*models.UsageEvent{
		{CustomerID: 1, Date: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), APICalls: 2500, DataPointsIngested: 6000, QueriesExecuted: 250, ProjectsActive: 2, FeatureUsed: "dashboard"},
	}

	suite.mock.ExpectCopyFrom(pgx.Identifier{"fact_usage"},
		[]string{"customer_id", "date", "date_id", "api_calls", "data_points_ingested", "queries_executed", "projects_active", "feature_used"}).
		WillReturnResult(1)

	n, err := suite.repo.InsertUsageEvents(suite.context, events)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), n)
}

func (suite *FactRepoTestSuite) TestInsertBillingTransactions() {
	txs := []*models.BillingTransaction{
		{CustomerID: 1, TransactionDate: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), Amount: 99, Type: "subscription", Status: "success"},
		{CustomerID: 1, TransactionDate: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), Amount: 99, Type: "subscription", Status: "failed"},
	}

	suite.mock.ExpectCopyFrom(pgx.Identifier{"fact_billing"},
		[]string{"customer_id", "transaction_date", "date_id", "amount", "type", "status"}).
		WillReturnResult(2)

	n, err := suite.repo.InsertBillingTransactions(suite.context, txs)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), n)
}

func (suite *FactRepoTestSuite) TestInsertUsageEvents_CopyError() {
	suite.mock.ExpectCopyFrom(pgx.Identifier{"fact_usage"},
		[]string{"customer_id", "date", "date_id", "api_calls", "data_points_ingested", "queries_executed", "projects_active", "feature_used"}).
		WillReturnError(errors.New("connection reset"))

	_, err := suite.repo.InsertUsageEvents(suite.context, []*models.UsageEvent{{CustomerID: 1, Date: time.Now()}})
	assert.Error(suite.T(), err)
}
