package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

// FactRepository bulk-loads the warehouse fact tables.
type FactRepository interface {
	InsertSubscriptions(ctx context.Context, subs []*models.Subscription) (int64, error)
	InsertUsageEvents(ctx context.Context, events []*models.UsageEvent) (int64, error)
	InsertBillingTransactions(ctx context.Context, txs []*models.BillingTransaction) (int64, error)
}

type factRepo struct {
	db Database
}

// NewFactRepo creates a FactRepository over the warehouse pool.
func NewFactRepo(db Database) FactRepository {
	return &factRepo{db: db}
}

func (r *factRepo) InsertSubscriptions(ctx context.Context, subs []*models.Subscription) (int64, error) {
	columns := []string{"customer_id", "plan_id", "plan_name", "start_date", "end_date", "monthly_price", "status", "billing_cycle", "duration_days"}
	rows := make([][]interface{}, 0, len(subs))
	for _, s := range subs {
		var durationDays *int
		if s.EndDate != nil {
			days := int(s.EndDate.Sub(s.StartDate).Hours() / 24)
			durationDays = &days
		}
		rows = append(rows, []interface{}{
			s.CustomerID, s.PlanID, s.PlanName, s.StartDate, s.EndDate, s.MonthlyPrice, s.Status, s.BillingCycle, durationDays,
		})
	}
	return r.db.CopyFrom(ctx, pgx.Identifier{"fact_subscriptions"}, columns, pgx.CopyFromRows(rows))
}

func (r *factRepo) InsertUsageEvents(ctx context.Context, events []*models.UsageEvent) (int64, error) {
	columns := []string{"customer_id", "date", "date_id", "api_calls", "data_points_ingested", "queries_executed", "projects_active", "feature_used"}
	rows := make([][]interface{}, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []interface{}{
			ev.CustomerID, ev.Date, DateID(ev.Date), ev.APICalls, ev.DataPointsIngested, ev.QueriesExecuted, ev.ProjectsActive, ev.FeatureUsed,
		})
	}
	return r.db.CopyFrom(ctx, pgx.Identifier{"fact_usage"}, columns, pgx.CopyFromRows(rows))
}

func (r *factRepo) InsertBillingTransactions(ctx context.Context, txs []*models.BillingTransaction) (int64, error) {
	columns := []string{"customer_id", "transaction_date", "date_id", "amount", "type", "status"}
	rows := make([][]interface{}, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []interface{}{
			tx.CustomerID, tx.TransactionDate, DateID(tx.TransactionDate), tx.Amount, tx.Type, tx.Status,
		})
	}
	return r.db.CopyFrom(ctx, pgx.Identifier{"fact_billing"}, columns, pgx.CopyFromRows(rows))
}
