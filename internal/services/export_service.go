package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

const dateLayout = "2006-01-02"

// Export file names, fixed because the warehouse loader maps them by name.
const (
	PlansFile         = "plans.csv"
	CustomersFile     = "customers.csv"
	SubscriptionsFile = "subscriptions.csv"
	UsageEventsFile   = "usage_events.csv"
	BillingFile       = "billing_transactions.csv"
)

// ExportFiles lists every file a complete export produces.
var ExportFiles = []string{PlansFile, CustomersFile, SubscriptionsFile, UsageEventsFile, BillingFile}

// ExportService serializes a simulation result into the five CSV tables the
// warehouse loader consumes, and optionally mirrors them to object storage.
type ExportService struct {
	minioSvc MinioService
}

// NewExportService creates an ExportService. minioSvc may be nil when no
// object storage is configured; Upload then becomes an error.
func NewExportService(minioSvc MinioService) *ExportService {
	return &ExportService{minioSvc: minioSvc}
}

// WriteCSV writes the plan catalog and all four result collections into dir,
// creating it if needed.
func (e *ExportService) WriteCSV(dir string, plans []models.Plan, result *models.SimulationResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}

	writers := []struct {
		name  string
		write func(w *csv.Writer) error
	}{
		{PlansFile, func(w *csv.Writer) error { return writePlans(w, plans) }},
		{CustomersFile, func(w *csv.Writer) error { return writeCustomers(w, result.Customers) }},
		{SubscriptionsFile, func(w *csv.Writer) error { return writeSubscriptions(w, result.Subscriptions) }},
		{UsageEventsFile, func(w *csv.Writer) error { return writeUsageEvents(w, result.UsageEvents) }},
		{BillingFile, func(w *csv.Writer) error { return writeBilling(w, result.BillingTransactions) }},
	}

	for _, file := range writers {
		if err := writeCSVFile(filepath.Join(dir, file.name), file.write); err != nil {
			return err
		}
		log.Printf("wrote %s", filepath.Join(dir, file.name))
	}
	return nil
}

// Upload mirrors an exported directory into the bucket under a per-run
// prefix.
func (e *ExportService) Upload(ctx context.Context, bucket, runID, dir string) error {
	if e.minioSvc == nil {
		return fmt.Errorf("object storage is not configured")
	}
	if err := e.minioSvc.EnsureBucketExists(ctx, bucket); err != nil {
		return fmt.Errorf("failed to ensure bucket %s: %w", bucket, err)
	}

	for _, name := range ExportFiles {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open export %s: %w", path, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}

		objectName := fmt.Sprintf("%s/%s", runID, name)
		err = e.minioSvc.UploadCSV(ctx, bucket, objectName, f, info.Size())
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", objectName, err)
		}
		log.Printf("uploaded %s to bucket %s", objectName, bucket)
	}
	return nil
}

func writeCSVFile(path string, write func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := write(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func writePlans(w *csv.Writer, plans []models.Plan) error {
	if err := w.Write([]string{"id", "name", "monthly_price", "api_call_limit", "data_retention_days", "max_projects", "features"}); err != nil {
		return err
	}
	for _, p := range plans {
		row := []string{
			strconv.Itoa(p.ID),
			p.Name,
			formatAmount(p.MonthlyPrice),
			strconv.Itoa(p.APICallLimit),
			strconv.Itoa(p.DataRetentionDays),
			strconv.Itoa(p.MaxProjects),
			strings.Join(p.Features, ","),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeCustomers(w *csv.Writer, customers []*models.Customer) error {
	if err := w.Write([]string{"id", "company_name", "signup_date", "plan_tier", "geography", "industry", "acquisition_channel", "status", "archetype"}); err != nil {
		return err
	}
	for _, c := range customers {
		row := []string{
			strconv.Itoa(c.ID),
			c.CompanyName,
			c.SignupDate.Format(dateLayout),
			c.PlanTier,
			c.Geography,
			c.Industry,
			c.AcquisitionChannel,
			c.Status,
			c.Archetype,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeSubscriptions(w *csv.Writer, subs []*models.Subscription) error {
	if err := w.Write([]string{"id", "customer_id", "plan_id", "plan_name", "start_date", "end_date", "monthly_price", "status", "billing_cycle"}); err != nil {
		return err
	}
	for _, s := range subs {
		end := ""
		if s.EndDate != nil {
			end = s.EndDate.Format(dateLayout)
		}
		row := []string{
			strconv.Itoa(s.ID),
			strconv.Itoa(s.CustomerID),
			strconv.Itoa(s.PlanID),
			s.PlanName,
			s.StartDate.Format(dateLayout),
			end,
			formatAmount(s.MonthlyPrice),
			s.Status,
			s.BillingCycle,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeUsageEvents(w *csv.Writer, events []*models.UsageEvent) error {
	if err := w.Write([]string{"customer_id", "date", "api_calls", "data_points_ingested", "queries_executed", "projects_active", "feature_used"}); err != nil {
		return err
	}
	for _, ev := range events {
		row := []string{
			strconv.Itoa(ev.CustomerID),
			ev.Date.Format(dateLayout),
			strconv.Itoa(ev.APICalls),
			strconv.Itoa(ev.DataPointsIngested),
			strconv.Itoa(ev.QueriesExecuted),
			strconv.Itoa(ev.ProjectsActive),
			ev.FeatureUsed,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeBilling(w *csv.Writer, txs []*models.BillingTransaction) error {
	if err := w.Write([]string{"customer_id", "transaction_date", "amount", "type", "status"}); err != nil {
		return err
	}
	for _, tx := range txs {
		row := []string{
			strconv.Itoa(tx.CustomerID),
			tx.TransactionDate.Format(dateLayout),
			formatAmount(tx.Amount),
			tx.Type,
			tx.Status,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseDate parses a CSV date column value.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
