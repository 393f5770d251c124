package etl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
	"github.com/jwashb22/saas-analytics-pipeline/internal/services"
)

type MockDimensionRepo struct {
	mock.Mock
}

func (m *MockDimensionRepo) InsertPlans(ctx context.Context, plans []models.Plan) error {
	args := m.Called(ctx, plans)
	return args.Error(0)
}

func (m *MockDimensionRepo) InsertCustomers(ctx context.Context, customers []*models.Customer) (int64, error) {
	args := m.Called(ctx, customers)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDimensionRepo) PopulateDateDim(ctx context.Context, start, end time.Time) (int64, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDimensionRepo) TruncateAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDimensionRepo) CountRows(ctx context.Context, table string) (int64, error) {
	args := m.Called(ctx, table)
	return args.Get(0).(int64), args.Error(1)
}

type MockFactRepo struct {
	mock.Mock
}

func (m *MockFactRepo) InsertSubscriptions(ctx context.Context, subs []*models.Subscription) (int64, error) {
	args := m.Called(ctx, subs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFactRepo) InsertUsageEvents(ctx context.Context, events []*models.UsageEvent) (int64, error) {
	args := m.Called(ctx, events)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFactRepo) InsertBillingTransactions(ctx context.Context, txs []*models.BillingTransaction) (int64, error) {
	args := m.Called(ctx, txs)
	return args.Get(0).(int64), args.Error(1)
}

type LoaderTestSuite struct {
	suite.Suite
	dimRepo  *MockDimensionRepo
	factRepo *MockFactRepo
	loader   *WarehouseLoader
}

func (suite *LoaderTestSuite) SetupTest() {
	suite.dimRepo = &MockDimensionRepo{}
	suite.factRepo = &MockFactRepo{}
	suite.dimRepo.Test(suite.T())
	suite.factRepo.Test(suite.T())
	suite.loader = NewWarehouseLoader(suite.dimRepo, suite.factRepo)
}

func (suite *LoaderTestSuite) TearDownTest() {
	suite.dimRepo.AssertExpectations(suite.T())
	suite.factRepo.AssertExpectations(suite.T())
}

func TestLoaderTestSuite(t *testing.T) {
	suite.Run(t, new(LoaderTestSuite))
}

func (suite *LoaderTestSuite) TestLoadAll_Success() {
	plans, result := exportFixture()
	ctx := context.Background()

	suite.dimRepo.On("TruncateAll", ctx).Return(nil)
	suite.dimRepo.On("InsertPlans", ctx, plans).Return(nil)
	suite.dimRepo.On("InsertCustomers", ctx, result.Customers).Return(int64(1), nil)
	suite.dimRepo.On("PopulateDateDim", ctx, config.SimulationEpoch, mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			end := args.Get(2).(time.Time)
			// Padded a week past the latest record date.
			latest := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
			suite.Equal(latest.AddDate(0, 0, 7), end)
		}).Return(int64(98), nil)
	suite.factRepo.On("InsertSubscriptions", ctx, result.Subscriptions).Return(int64(2), nil)
	suite.factRepo.On("InsertUsageEvents", ctx, result.UsageEvents).Return(int64(1), nil)
	suite.factRepo.On("InsertBillingTransactions", ctx, result.BillingTransactions).Return(int64(2), nil)

	err := suite.loader.LoadAll(ctx, plans, result)
	assert.NoError(suite.T(), err)
}

func (suite *LoaderTestSuite) TestLoadAll_TruncateFailureAborts() {
	plans, result := exportFixture()
	ctx := context.Background()

	suite.dimRepo.On("TruncateAll", ctx).Return(assert.AnError)

	err := suite.loader.LoadAll(ctx, plans, result)
	assert.Error(suite.T(), err)
	suite.dimRepo.AssertNotCalled(suite.T(), "InsertPlans", mock.Anything, mock.Anything)
}

func (suite *LoaderTestSuite) TestLoadAll_FactFailurePropagates() {
	plans, result := exportFixture()
	ctx := context.Background()

	suite.dimRepo.On("TruncateAll", ctx).Return(nil)
	suite.dimRepo.On("InsertPlans", ctx, plans).Return(nil)
	suite.dimRepo.On("InsertCustomers", ctx, result.Customers).Return(int64(1), nil)
	suite.dimRepo.On("PopulateDateDim", ctx, mock.Anything, mock.Anything).Return(int64(98), nil)
	suite.factRepo.On("InsertSubscriptions", ctx, result.Subscriptions).Return(int64(0), assert.AnError)

	err := suite.loader.LoadAll(ctx, plans, result)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "fact_subscriptions")
}

func (suite *LoaderTestSuite) TestLoadFromDir() {
	dir := suite.T().TempDir()
	plans, result := exportFixture()
	require.NoError(suite.T(), services.NewExportService(nil).WriteCSV(dir, plans, result))

	ctx := context.Background()
	suite.dimRepo.On("TruncateAll", ctx).Return(nil)
	suite.dimRepo.On("InsertPlans", ctx, mock.Anything).Return(nil)
	suite.dimRepo.On("InsertCustomers", ctx, mock.Anything).Return(int64(1), nil)
	suite.dimRepo.On("PopulateDateDim", ctx, mock.Anything, mock.Anything).Return(int64(98), nil)
	suite.factRepo.On("InsertSubscriptions", ctx, mock.Anything).Return(int64(2), nil)
	suite.factRepo.On("InsertUsageEvents", ctx, mock.Anything).Return(int64(1), nil)
	suite.factRepo.On("InsertBillingTransactions", ctx, mock.Anything).Return(int64(2), nil)

	assert.NoError(suite.T(), suite.loader.LoadFromDir(ctx, dir))
}

func (suite *LoaderTestSuite) TestLoadFromDir_MissingExport() {
	err := suite.loader.LoadFromDir(context.Background(), suite.T().TempDir())
	assert.Error(suite.T(), err)
}
