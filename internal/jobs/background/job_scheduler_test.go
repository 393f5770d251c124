package background

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jwashb22/saas-analytics-pipeline/internal/analytics"
	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/pipeline"
	"github.com/jwashb22/saas-analytics-pipeline/internal/services"
)

func newTestPipeline() *pipeline.PipelineService {
	cfg := config.DefaultSimulation()
	return pipeline.NewPipelineService(cfg, services.NewExportService(nil), nil, nil, analytics.NewSummaryService(nil), nil)
}

func TestNewJobScheduler_RegistersRegenerationJob(t *testing.T) {
	js := NewJobScheduler(newTestPipeline(), t.TempDir(), time.Hour)
	defer js.Stop()

	assert.Contains(t, js.JobNames(), "dataset-regeneration")
}

func TestNewJobScheduler_ZeroIntervalDisablesRegeneration(t *testing.T) {
	js := NewJobScheduler(newTestPipeline(), t.TempDir(), 0)
	defer js.Stop()

	assert.Empty(t, js.JobNames())
}

func TestJobScheduler_StartStop(t *testing.T) {
	js := NewJobScheduler(newTestPipeline(), t.TempDir(), time.Hour)

	assert.NoError(t, js.Start())
	assert.NoError(t, js.Stop())
}
