package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/jwashb22/saas-analytics-pipeline/internal/analytics"
	"github.com/jwashb22/saas-analytics-pipeline/internal/behavior"
	"github.com/jwashb22/saas-analytics-pipeline/internal/caching"
	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/etl"
	"github.com/jwashb22/saas-analytics-pipeline/internal/generators"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
	"github.com/jwashb22/saas-analytics-pipeline/internal/services"
	"github.com/jwashb22/saas-analytics-pipeline/internal/simulation"
)

// Run status values tracked per pipeline run.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

const runStatusTTL = 24 * time.Hour

// ErrRunInProgress is returned when a run is requested while another run
// still holds the pipeline. Runs share one export directory and truncate the
// warehouse on load, so only one may execute at a time.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Options selects which stages a pipeline run executes beyond generation.
type Options struct {
	ExportDir     string
	UploadBucket  string
	LoadWarehouse bool
	RunChecks     bool
}

// PipelineService orchestrates a full dataset run: generate the simulation,
// export CSVs, optionally upload them to object storage, load the warehouse,
// and verify data quality. The loader, checker, export service, and cache are
// all optional; a nil dependency skips its stage.
type PipelineService struct {
	cfg        *config.SimulationConfig
	exportSvc  *services.ExportService
	loader     *etl.WarehouseLoader
	checker    *etl.DataQualityChecker
	summarySvc *analytics.SummaryService
	cacheSvc   caching.CacheService

	// OnMonth, when set, is forwarded to the simulator for progress reporting.
	OnMonth func(month, total int)

	running atomic.Bool
}

// NewPipelineService wires a pipeline over the given stages.
func NewPipelineService(
	cfg *config.SimulationConfig,
	exportSvc *services.ExportService,
	loader *etl.WarehouseLoader,
	checker *etl.DataQualityChecker,
	summarySvc *analytics.SummaryService,
	cacheSvc caching.CacheService,
) *PipelineService {
	return &PipelineService{
		cfg:        cfg,
		exportSvc:  exportSvc,
		loader:     loader,
		checker:    checker,
		summarySvc: summarySvc,
		cacheSvc:   cacheSvc,
	}
}

// Generate runs the behavioral simulation and returns its raw result.
func (p *PipelineService) Generate() (*models.SimulationResult, error) {
	engine, err := behavior.NewEngine(p.cfg)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(p.cfg.Seed))
	generator := generators.NewCustomerGenerator(p.cfg)
	customers := generator.Generate(rng, p.cfg.Customers)

	simulator := simulation.NewSimulator(engine, simulation.NewLedger(p.cfg), p.cfg, rng)
	simulator.OnMonth = p.OnMonth

	log.Printf("simulating %d customers over %d months (seed %d)", p.cfg.Customers, p.cfg.Months, p.cfg.Seed)
	return simulator.Run(customers), nil
}

// Execute runs the configured stages for one pipeline run and records its
// status under runID. Errors are recorded as a failed run before returning.
// It fails fast with ErrRunInProgress when another run is already executing.
func (p *PipelineService) Execute(ctx context.Context, runID string, opts Options) (*models.SimulationSummary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	return p.run(ctx, runID, opts)
}

// Start reserves the pipeline for runID and launches the run on its own
// goroutine. Callers poll Status for the outcome.
func (p *PipelineService) Start(runID string, opts Options) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}

	go func() {
		defer p.running.Store(false)
		if _, err := p.run(context.Background(), runID, opts); err != nil {
			log.Printf("pipeline run %s failed: %v", runID, err)
		}
	}()
	return nil
}

func (p *PipelineService) run(ctx context.Context, runID string, opts Options) (*models.SimulationSummary, error) {
	p.setStatus(ctx, runID, RunStatusRunning)

	summary, err := p.execute(ctx, runID, opts)
	if err != nil {
		p.setStatus(ctx, runID, RunStatusFailed)
		return nil, err
	}

	p.setStatus(ctx, runID, RunStatusCompleted)
	return summary, nil
}

func (p *PipelineService) execute(ctx context.Context, runID string, opts Options) (*models.SimulationSummary, error) {
	result, err := p.Generate()
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	if opts.ExportDir != "" && p.exportSvc != nil {
		if err := p.exportSvc.WriteCSV(opts.ExportDir, p.cfg.Plans, result); err != nil {
			return nil, fmt.Errorf("csv export failed: %w", err)
		}
		log.Printf("exported CSV dataset to %s", opts.ExportDir)

		if opts.UploadBucket != "" {
			if err := p.exportSvc.Upload(ctx, opts.UploadBucket, runID, opts.ExportDir); err != nil {
				return nil, fmt.Errorf("object storage upload failed: %w", err)
			}
			log.Printf("uploaded export to bucket %s under run %s", opts.UploadBucket, runID)
		}
	}

	if opts.LoadWarehouse && p.loader != nil {
		if err := p.loader.LoadAll(ctx, p.cfg.Plans, result); err != nil {
			return nil, fmt.Errorf("warehouse load failed: %w", err)
		}
	}

	if opts.RunChecks && p.checker != nil {
		results, err := p.checker.RunAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("data quality checks failed to run: %w", err)
		}
		for _, r := range results {
			if !r.Passed {
				return nil, fmt.Errorf("data quality check %q found %d issues", r.Name, r.Issues)
			}
		}
	}

	if p.summarySvc != nil {
		// A cache write failure does not fail the run; the summary itself
		// is already computed.
		summary, err := p.summarySvc.Refresh(ctx, result)
		if err != nil {
			log.Printf("summary cache refresh failed for run %s: %v", runID, err)
		}
		return summary, nil
	}
	return nil, nil
}

// Status returns the recorded status of a run, or "" when unknown.
func (p *PipelineService) Status(ctx context.Context, runID string) (string, error) {
	if p.cacheSvc == nil {
		return "", nil
	}
	return p.cacheSvc.GetRunStatus(ctx, runID)
}

func (p *PipelineService) setStatus(ctx context.Context, runID, status string) {
	if p.cacheSvc == nil {
		return
	}
	if err := p.cacheSvc.SetRunStatus(ctx, runID, status, runStatusTTL); err != nil {
		log.Printf("failed to record run %s status %s: %v", runID, status, err)
	}
}
