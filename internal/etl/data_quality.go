package etl

import (
	"context"
	"fmt"
	"log"

	"github.com/jwashb22/saas-analytics-pipeline/internal/repositories"
)

// qualityCheck is a count-returning SQL assertion; zero issues means pass.
type qualityCheck struct {
	name  string
	query string
}

// CheckResult is the outcome of one data-quality check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Issues int64  `json:"issues"`
}

// DataQualityChecker runs SQL assertions against the loaded warehouse:
// referential integrity, completeness, and business-logic invariants the
// simulation guarantees.
type DataQualityChecker struct {
	db repositories.Database
}

// NewDataQualityChecker creates a checker over the warehouse pool.
func NewDataQualityChecker(db repositories.Database) *DataQualityChecker {
	return &DataQualityChecker{db: db}
}

var referentialChecks = []qualityCheck{
	{
		name: "subscriptions reference existing customers",
		query: `SELECT COUNT(*) FROM fact_subscriptions fs
			LEFT JOIN dim_customers dc ON fs.customer_id = dc.customer_id
			WHERE dc.customer_id IS NULL`,
	},
	{
		name: "subscriptions reference existing plans",
		query: `SELECT COUNT(*) FROM fact_subscriptions fs
			LEFT JOIN dim_plans dp ON fs.plan_id = dp.plan_id
			WHERE dp.plan_id IS NULL`,
	},
	{
		name: "usage events reference existing customers",
		query: `SELECT COUNT(*) FROM fact_usage fu
			LEFT JOIN dim_customers dc ON fu.customer_id = dc.customer_id
			WHERE dc.customer_id IS NULL`,
	},
	{
		name: "billing transactions reference existing customers",
		query: `SELECT COUNT(*) FROM fact_billing fb
			LEFT JOIN dim_customers dc ON fb.customer_id = dc.customer_id
			WHERE dc.customer_id IS NULL`,
	},
}

var completenessChecks = []qualityCheck{
	{
		name:  "no null company names",
		query: `SELECT COUNT(*) FROM dim_customers WHERE company_name IS NULL OR company_name = ''`,
	},
	{
		name:  "no null subscription start dates",
		query: `SELECT COUNT(*) FROM fact_subscriptions WHERE start_date IS NULL`,
	},
	{
		name:  "no negative billing amounts",
		query: `SELECT COUNT(*) FROM fact_billing WHERE amount < 0`,
	},
	{
		name: "usage events have at least one nonzero metric",
		query: `SELECT COUNT(*) FROM fact_usage
			WHERE api_calls = 0 AND data_points_ingested = 0
			  AND queries_executed = 0 AND projects_active = 0`,
	},
}

var businessLogicChecks = []qualityCheck{
	{
		name: "churned customers have no active subscriptions",
		query: `SELECT COUNT(*) FROM dim_customers dc
			JOIN fact_subscriptions fs ON dc.customer_id = fs.customer_id
			WHERE dc.status = 'churned' AND fs.status = 'active'`,
	},
	{
		name:  "subscription end dates not before start dates",
		query: `SELECT COUNT(*) FROM fact_subscriptions WHERE end_date IS NOT NULL AND end_date < start_date`,
	},
	{
		name: "at most one open subscription per customer",
		query: `SELECT COUNT(*) FROM (
			SELECT customer_id FROM fact_subscriptions
			WHERE end_date IS NULL
			GROUP BY customer_id HAVING COUNT(*) > 1
		) dupes`,
	},
}

// RunAll runs every check group and returns the individual results. A failed
// assertion is reported in the results, not as an error; errors mean the
// query itself could not run.
func (c *DataQualityChecker) RunAll(ctx context.Context) ([]CheckResult, error) {
	groups := [][]qualityCheck{referentialChecks, completenessChecks, businessLogicChecks}

	var results []CheckResult
	for _, group := range groups {
		for _, check := range group {
			result, err := c.run(ctx, check)
			if err != nil {
				return results, err
			}
			results = append(results, result)
		}
	}
	return results, nil
}

func (c *DataQualityChecker) run(ctx context.Context, check qualityCheck) (CheckResult, error) {
	var issues int64
	if err := c.db.QueryRow(ctx, check.query).Scan(&issues); err != nil {
		return CheckResult{}, fmt.Errorf("data quality check %q failed to run: %w", check.name, err)
	}

	result := CheckResult{Name: check.name, Passed: issues == 0, Issues: issues}
	if result.Passed {
		log.Printf("PASS %s", check.name)
	} else {
		log.Printf("FAIL %s: found %d issues", check.name, issues)
	}
	return result, nil
}

// AllPassed reports whether every check in results passed.
func AllPassed(results []CheckResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return len(results) > 0
}
