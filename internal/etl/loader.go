package etl

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
	"github.com/jwashb22/saas-analytics-pipeline/internal/repositories"
)

// WarehouseLoader moves a simulation result into the star schema: dimensions
// first, then facts. Loads are full refreshes; existing rows are truncated.
type WarehouseLoader struct {
	dimRepo  repositories.DimensionRepository
	factRepo repositories.FactRepository
}

// NewWarehouseLoader wires a loader from the warehouse repositories.
func NewWarehouseLoader(dimRepo repositories.DimensionRepository, factRepo repositories.FactRepository) *WarehouseLoader {
	return &WarehouseLoader{dimRepo: dimRepo, factRepo: factRepo}
}

// LoadAll refreshes the whole warehouse from an in-memory result.
func (l *WarehouseLoader) LoadAll(ctx context.Context, plans []models.Plan, result *models.SimulationResult) error {
	if err := l.dimRepo.TruncateAll(ctx); err != nil {
		return fmt.Errorf("failed to truncate warehouse tables: %w", err)
	}

	if err := l.dimRepo.InsertPlans(ctx, plans); err != nil {
		return fmt.Errorf("failed to load dim_plans: %w", err)
	}
	log.Printf("loaded %d rows into dim_plans", len(plans))

	n, err := l.dimRepo.InsertCustomers(ctx, result.Customers)
	if err != nil {
		return fmt.Errorf("failed to load dim_customers: %w", err)
	}
	log.Printf("loaded %d rows into dim_customers", n)

	start, end := dateRange(result)
	n, err = l.dimRepo.PopulateDateDim(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to populate dim_date: %w", err)
	}
	log.Printf("loaded %d rows into dim_date", n)

	n, err = l.factRepo.InsertSubscriptions(ctx, result.Subscriptions)
	if err != nil {
		return fmt.Errorf("failed to load fact_subscriptions: %w", err)
	}
	log.Printf("loaded %d rows into fact_subscriptions", n)

	n, err = l.factRepo.InsertUsageEvents(ctx, result.UsageEvents)
	if err != nil {
		return fmt.Errorf("failed to load fact_usage: %w", err)
	}
	log.Printf("loaded %d rows into fact_usage", n)

	n, err = l.factRepo.InsertBillingTransactions(ctx, result.BillingTransactions)
	if err != nil {
		return fmt.Errorf("failed to load fact_billing: %w", err)
	}
	log.Printf("loaded %d rows into fact_billing", n)

	return nil
}

// LoadFromDir refreshes the warehouse from a previously exported CSV
// directory.
func (l *WarehouseLoader) LoadFromDir(ctx context.Context, dir string) error {
	plans, result, err := ReadExport(dir)
	if err != nil {
		return err
	}
	return l.LoadAll(ctx, plans, result)
}

// dateRange spans from the simulation epoch through the latest record date,
// padded a week so every weekly usage row maps to a dim_date entry.
func dateRange(result *models.SimulationResult) (time.Time, time.Time) {
	end := config.SimulationEpoch
	for _, s := range result.Subscriptions {
		if s.StartDate.After(end) {
			end = s.StartDate
		}
		if s.EndDate != nil && s.EndDate.After(end) {
			end = *s.EndDate
		}
	}
	for _, ev := range result.UsageEvents {
		if ev.Date.After(end) {
			end = ev.Date
		}
	}
	for _, tx := range result.BillingTransactions {
		if tx.TransactionDate.After(end) {
			end = tx.TransactionDate
		}
	}
	return config.SimulationEpoch, end.AddDate(0, 0, 7)
}
