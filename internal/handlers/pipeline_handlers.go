package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/jwashb22/saas-analytics-pipeline/internal/analytics"
	"github.com/jwashb22/saas-analytics-pipeline/internal/pipeline"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// PipelineHandlers handles HTTP requests for pipeline runs and summaries
type PipelineHandlers struct {
	pipelineSvc *pipeline.PipelineService
	summarySvc  *analytics.SummaryService
	outputDir   string
	bucket      string
}

// NewPipelineHandlers creates a new pipeline handlers instance
func NewPipelineHandlers(pipelineSvc *pipeline.PipelineService, summarySvc *analytics.SummaryService, outputDir, bucket string) *PipelineHandlers {
	return &PipelineHandlers{
		pipelineSvc: pipelineSvc,
		summarySvc:  summarySvc,
		outputDir:   outputDir,
		bucket:      bucket,
	}
}

// validateUUID validates UUID string
func (h *PipelineHandlers) validateUUID(idStr string) (uuid.UUID, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid UUID format")
	}
	return id, nil
}

// GetSummary handles GET /summary
func (h *PipelineHandlers) GetSummary(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.summarySvc.Cached(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if summary == nil {
		return echo.NewHTTPError(http.StatusNotFound, "No summary available yet; trigger a run first")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"summary": summary,
	})
}

// CreateRun handles POST /runs
func (h *PipelineHandlers) CreateRun(c echo.Context) error {
	var req struct {
		Upload bool  `json:"upload"`
		Load   *bool `json:"load"`
		Checks *bool `json:"checks"`
	}

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	opts := pipeline.Options{
		ExportDir:     h.outputDir,
		LoadWarehouse: req.Load == nil || *req.Load,
		RunChecks:     req.Checks == nil || *req.Checks,
	}
	if req.Upload {
		opts.UploadBucket = h.bucket
	}

	runID := uuid.New().String()

	if token, ok := c.Get("user").(*jwt.Token); ok {
		if sub, err := token.Claims.GetSubject(); err == nil && sub != "" {
			log.Printf("pipeline run %s requested by %s", runID, sub)
		}
	}

	// Runs take minutes at scale and share one export directory and
	// warehouse; Start executes off the request goroutine and rejects
	// overlapping runs. The caller polls the run status.
	if err := h.pipelineSvc.Start(runID, opts); err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			return echo.NewHTTPError(http.StatusConflict, "A pipeline run is already in progress")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Pipeline run started",
		"run_id":  runID,
		"status":  pipeline.RunStatusRunning,
	})
}

// GetRunStatus handles GET /runs/:id
func (h *PipelineHandlers) GetRunStatus(c echo.Context) error {
	ctx := c.Request().Context()

	runID, err := h.validateUUID(c.Param("id"))
	if err != nil {
		return err
	}

	status, err := h.pipelineSvc.Status(ctx, runID.String())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if status == "" {
		return echo.NewHTTPError(http.StatusNotFound, "Run not found")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": runID.String(),
		"status": status,
	})
}
