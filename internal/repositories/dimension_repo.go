package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

// DimensionRepository loads the warehouse dimension tables.
type DimensionRepository interface {
	InsertPlans(ctx context.Context, plans []models.Plan) error
	InsertCustomers(ctx context.Context, customers []*models.Customer) (int64, error)
	PopulateDateDim(ctx context.Context, start, end time.Time) (int64, error)
	TruncateAll(ctx context.Context) error
	CountRows(ctx context.Context, table string) (int64, error)
}

type dimensionRepo struct {
	db Database
}

// NewDimensionRepo creates a DimensionRepository over the warehouse pool.
func NewDimensionRepo(db Database) DimensionRepository {
	return &dimensionRepo{db: db}
}

// dimensionTables in truncation order; CASCADE clears dependent facts.
var dimensionTables = []string{"dim_plans", "dim_customers", "dim_date"}

func (r *dimensionRepo) InsertPlans(ctx context.Context, plans []models.Plan) error {
	query := `
		INSERT INTO dim_plans (plan_id, plan_name, monthly_price, api_call_limit, data_retention_days, max_projects, features)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, p := range plans {
		_, err := r.db.Exec(ctx, query, p.ID, p.Name, p.MonthlyPrice, p.APICallLimit, p.DataRetentionDays, p.MaxProjects, strings.Join(p.Features, ","))
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *dimensionRepo) InsertCustomers(ctx context.Context, customers []*models.Customer) (int64, error) {
	columns := []string{"customer_id", "company_name", "signup_date", "current_plan_tier", "geography", "industry", "acquisition_channel", "status", "archetype"}
	rows := make([][]interface{}, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, []interface{}{
			c.ID, c.CompanyName, c.SignupDate, c.PlanTier, c.Geography, c.Industry, c.AcquisitionChannel, c.Status, c.Archetype,
		})
	}
	return r.db.CopyFrom(ctx, pgx.Identifier{"dim_customers"}, columns, pgx.CopyFromRows(rows))
}

// PopulateDateDim fills dim_date with one row per day in [start, end]. The
// surrogate key is the date formatted YYYYMMDD.
func (r *dimensionRepo) PopulateDateDim(ctx context.Context, start, end time.Time) (int64, error) {
	columns := []string{"date_id", "date", "year", "quarter", "month", "week"}
	var rows [][]interface{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		_, week := d.ISOWeek()
		rows = append(rows, []interface{}{
			DateID(d), d, d.Year(), (int(d.Month())-1)/3 + 1, int(d.Month()), week,
		})
	}
	return r.db.CopyFrom(ctx, pgx.Identifier{"dim_date"}, columns, pgx.CopyFromRows(rows))
}

func (r *dimensionRepo) TruncateAll(ctx context.Context) error {
	for _, table := range dimensionTables {
		if _, err := r.db.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return err
		}
	}
	return nil
}

func (r *dimensionRepo) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
	return count, err
}

// DateID is the dim_date surrogate key for a calendar day.
func DateID(d time.Time) int {
	return d.Year()*10000 + int(d.Month())*100 + d.Day()
}
