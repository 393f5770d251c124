package background

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jwashb22/saas-analytics-pipeline/internal/pipeline"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// JobScheduler manages recurring pipeline jobs in serve mode
type JobScheduler struct {
	scheduler   gocron.Scheduler
	pipelineSvc *pipeline.PipelineService
	outputDir   string
	regenEvery  time.Duration
	jobs        map[string]gocron.Job
	mu          sync.RWMutex
}

// NewJobScheduler creates a new job scheduler. regenEvery controls how often
// the dataset is regenerated and reloaded; zero disables the job.
func NewJobScheduler(pipelineSvc *pipeline.PipelineService, outputDir string, regenEvery time.Duration) *JobScheduler {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	js := &JobScheduler{
		scheduler:   scheduler,
		pipelineSvc: pipelineSvc,
		outputDir:   outputDir,
		regenEvery:  regenEvery,
		jobs:        make(map[string]gocron.Job),
	}

	js.registerJobs()

	return js
}

// Start starts the job scheduler
func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// registerJobs registers all background jobs
func (js *JobScheduler) registerJobs() {
	if js.regenEvery <= 0 {
		return
	}

	regenJob, err := js.scheduler.NewJob(
		gocron.DurationJob(js.regenEvery),
		gocron.NewTask(js.regenerateDataset),
		gocron.WithName("dataset-regeneration"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create dataset regeneration job: %v", err)
	} else {
		js.mu.Lock()
		js.jobs["dataset-regeneration"] = regenJob
		js.mu.Unlock()
	}
}

// regenerateDataset runs a full pipeline pass and refreshes the cached
// summary. Runs serially under singleton mode.
func (js *JobScheduler) regenerateDataset() {
	runID := uuid.New().String()
	log.Printf("Scheduled dataset regeneration starting (run %s)", runID)

	opts := pipeline.Options{
		ExportDir:     js.outputDir,
		LoadWarehouse: true,
		RunChecks:     true,
	}
	if _, err := js.pipelineSvc.Execute(context.Background(), runID, opts); err != nil {
		log.Printf("Scheduled dataset regeneration failed: %v", err)
		return
	}

	log.Printf("Scheduled dataset regeneration completed (run %s)", runID)
}

// JobNames returns the names of registered jobs, for introspection
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return names
}
