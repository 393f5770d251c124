package etl

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
	"github.com/jwashb22/saas-analytics-pipeline/internal/services"
)

// ReadExport parses a CSV export directory back into memory so the load mode
// can run independently of the generate mode.
func ReadExport(dir string) ([]models.Plan, *models.SimulationResult, error) {
	plans, err := readPlans(filepath.Join(dir, services.PlansFile))
	if err != nil {
		return nil, nil, err
	}

	result := &models.SimulationResult{}
	if result.Customers, err = readCustomers(filepath.Join(dir, services.CustomersFile)); err != nil {
		return nil, nil, err
	}
	if result.Subscriptions, err = readSubscriptions(filepath.Join(dir, services.SubscriptionsFile)); err != nil {
		return nil, nil, err
	}
	if result.UsageEvents, err = readUsageEvents(filepath.Join(dir, services.UsageEventsFile)); err != nil {
		return nil, nil, err
	}
	if result.BillingTransactions, err = readBilling(filepath.Join(dir, services.BillingFile)); err != nil {
		return nil, nil, err
	}
	return plans, result, nil
}

// readRows reads a CSV file and returns a lookup from header name to column
// index plus the data rows.
func readRows(path string) (map[string]int, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[name] = i
	}
	return header, records[1:], nil
}

func readPlans(path string) ([]models.Plan, error) {
	header, rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	plans := make([]models.Plan, 0, len(rows))
	for _, row := range rows {
		id, _ := strconv.Atoi(row[header["id"]])
		price, _ := strconv.ParseFloat(row[header["monthly_price"]], 64)
		callLimit, _ := strconv.Atoi(row[header["api_call_limit"]])
		retention, _ := strconv.Atoi(row[header["data_retention_days"]])
		maxProjects, _ := strconv.Atoi(row[header["max_projects"]])

		var features []string
		if raw := row[header["features"]]; raw != "" {
			features = strings.Split(raw, ",")
		}

		plans = append(plans, models.Plan{
			ID:                id,
			Name:              row[header["name"]],
			MonthlyPrice:      price,
			APICallLimit:      callLimit,
			DataRetentionDays: retention,
			MaxProjects:       maxProjects,
			Features:          features,
		})
	}
	return plans, nil
}

func readCustomers(path string) ([]*models.Customer, error) {
	header, rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	customers := make([]*models.Customer, 0, len(rows))
	for _, row := range rows {
		id, _ := strconv.Atoi(row[header["id"]])
		signup, err := services.ParseDate(row[header["signup_date"]])
		if err != nil {
			return nil, fmt.Errorf("customer %d has invalid signup_date: %w", id, err)
		}

		customers = append(customers, &models.Customer{
			ID:                 id,
			CompanyName:        row[header["company_name"]],
			SignupDate:         signup,
			PlanTier:           row[header["plan_tier"]],
			Geography:          row[header["geography"]],
			Industry:           row[header["industry"]],
			AcquisitionChannel: row[header["acquisition_channel"]],
			Status:             row[header["status"]],
			Archetype:          row[header["archetype"]],
		})
	}
	return customers, nil
}

func readSubscriptions(path string) ([]*models.Subscription, error) {
	header, rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	subs := make([]*models.Subscription, 0, len(rows))
	for _, row := range rows {
		id, _ := strconv.Atoi(row[header["id"]])
		customerID, _ := strconv.Atoi(row[header["customer_id"]])
		planID, _ := strconv.Atoi(row[header["plan_id"]])
		price, _ := strconv.ParseFloat(row[header["monthly_price"]], 64)

		start, err := services.ParseDate(row[header["start_date"]])
		if err != nil {
			return nil, fmt.Errorf("subscription %d has invalid start_date: %w", id, err)
		}

		sub := &models.Subscription{
			ID:           id,
			CustomerID:   customerID,
			PlanID:       planID,
			PlanName:     row[header["plan_name"]],
			StartDate:    start,
			MonthlyPrice: price,
			Status:       row[header["status"]],
			BillingCycle: row[header["billing_cycle"]],
		}
		if raw := row[header["end_date"]]; raw != "" {
			end, err := services.ParseDate(raw)
			if err != nil {
				return nil, fmt.Errorf("subscription %d has invalid end_date: %w", id, err)
			}
			sub.EndDate = &end
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func readUsageEvents(path string) ([]*models.UsageEvent, error) {
	header, rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	events := make([]*models.UsageEvent, 0, len(rows))
	for _, row := range rows {
		customerID, _ := strconv.Atoi(row[header["customer_id"]])
		date, err := services.ParseDate(row[header["date"]])
		if err != nil {
			return nil, fmt.Errorf("usage event for customer %d has invalid date: %w", customerID, err)
		}
		apiCalls, _ := strconv.Atoi(row[header["api_calls"]])
		dataPoints, _ := strconv.Atoi(row[header["data_points_ingested"]])
		queries, _ := strconv.Atoi(row[header["queries_executed"]])
		projects, _ := strconv.Atoi(row[header["projects_active"]])

		events = append(events, &models.UsageEvent{
			CustomerID:         customerID,
			Date:               date,
			APICalls:           apiCalls,
			DataPointsIngested: dataPoints,
			QueriesExecuted:    queries,
			ProjectsActive:     projects,
			FeatureUsed:        row[header["feature_used"]],
		})
	}
	return events, nil
}

func readBilling(path string) ([]*models.BillingTransaction, error) {
	header, rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	txs := make([]*models.BillingTransaction, 0, len(rows))
	for _, row := range rows {
		customerID, _ := strconv.Atoi(row[header["customer_id"]])
		date, err := services.ParseDate(row[header["transaction_date"]])
		if err != nil {
			return nil, fmt.Errorf("billing transaction for customer %d has invalid date: %w", customerID, err)
		}
		amount, _ := strconv.ParseFloat(row[header["amount"]], 64)

		txs = append(txs, &models.BillingTransaction{
			CustomerID:      customerID,
			TransactionDate: date,
			Amount:          amount,
			Type:            row[header["type"]],
			Status:          row[header["status"]],
		})
	}
	return txs, nil
}
