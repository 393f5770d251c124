package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jwashb22/saas-analytics-pipeline/internal/repositories"

	"github.com/labstack/echo/v4"
)

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db        repositories.Database
	pingRedis func(ctx context.Context) error
}

// NewHealthHandlers creates a new health handlers instance. pingRedis may be
// nil when no cache is configured.
func NewHealthHandlers(db repositories.Database, pingRedis func(ctx context.Context) error) *HealthHandlers {
	return &HealthHandlers{
		db:        db,
		pingRedis: pingRedis,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
}

// HealthCheck reports warehouse and cache connectivity
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Version:   "1.0.0",
	}

	if err := h.checkWarehouse(ctx); err != nil {
		health.Services["warehouse"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["warehouse"] = "healthy"
	}

	if h.pingRedis != nil {
		if err := h.pingRedis(ctx); err != nil {
			health.Services["redis"] = "unhealthy"
			health.Status = "degraded"
		} else {
			health.Services["redis"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusPartialContent
	}

	return c.JSON(statusCode, health)
}

func (h *HealthHandlers) checkWarehouse(ctx context.Context) error {
	_, err := h.db.Exec(ctx, "SELECT 1")
	return err
}
