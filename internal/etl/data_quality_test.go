package etl

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type DataQualityTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	checker *DataQualityChecker
	context context.Context
}

func (suite *DataQualityTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.checker = NewDataQualityChecker(mock)
	suite.context = context.Background()
}

func (suite *DataQualityTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestDataQualityTestSuite(t *testing.T) {
	suite.Run(t, new(DataQualityTestSuite))
}

func (suite *DataQualityTestSuite) totalChecks() int {
	return len(referentialChecks) + len(completenessChecks) + len(businessLogicChecks)
}

func (suite *DataQualityTestSuite) TestRunAll_AllClean() {
	for i := 0; i < suite.totalChecks(); i++ {
		suite.mock.ExpectQuery(`SELECT COUNT`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	}

	results, err := suite.checker.RunAll(suite.context)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), results, suite.totalChecks())

	for _, r := range results {
		assert.True(suite.T(), r.Passed, "check %s", r.Name)
		assert.Zero(suite.T(), r.Issues)
	}
	assert.True(suite.T(), AllPassed(results))
}

func (suite *DataQualityTestSuite) TestRunAll_ReportsIssues() {
	// First check finds orphaned rows, the rest are clean.
	suite.mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))
	for i := 1; i < suite.totalChecks(); i++ {
		suite.mock.ExpectQuery(`SELECT COUNT`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	}

	results, err := suite.checker.RunAll(suite.context)
	require.NoError(suite.T(), err)

	assert.False(suite.T(), results[0].Passed)
	assert.Equal(suite.T(), int64(7), results[0].Issues)
	assert.Equal(suite.T(), "subscriptions reference existing customers", results[0].Name)
	assert.False(suite.T(), AllPassed(results))
}

func (suite *DataQualityTestSuite) TestRunAll_QueryError() {
	suite.mock.ExpectQuery(`SELECT COUNT`).
		WillReturnError(errors.New("relation does not exist"))

	_, err := suite.checker.RunAll(suite.context)
	assert.Error(suite.T(), err)
}

func TestAllPassed_EmptyResults(t *testing.T) {
	// An empty result set is a failure, not a vacuous pass.
	assert.False(t, AllPassed(nil))
}
