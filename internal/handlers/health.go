package handlers

import (
	"context"
	"net/http"
	"time"

	"cohost/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

// heartbeatStaleAfter marks a worker stale when its heartbeat is older
// than this
const heartbeatStaleAfter = 5 * time.Minute

// HeartbeatLister reads worker heartbeat rows
type HeartbeatLister interface {
	ListHeartbeats(ctx context.Context) ([]models.WorkerHeartbeat, error)
}

// HealthHandler handles basic health check requests
// @Summary Basic health check
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /health [get]
func HealthHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := models.HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Version:   version,
		}

		return c.JSON(http.StatusOK, response)
	}
}

// DetailedHealthHandler reports database reachability and per-worker
// heartbeat freshness
// @Summary Detailed health check with worker status
// @Produce json
// @Success 200 {object} models.DetailedHealthResponse
// @Failure 503 {object} models.DetailedHealthResponse
// @Router /health/detailed [get]
func DetailedHealthHandler(db *sqlx.DB, store HeartbeatLister) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := models.DetailedHealthResponse{
			OK:        true,
			Timestamp: time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		if db == nil || db.PingContext(ctx) != nil {
			response.OK = false
			response.Error = "database unreachable"
			return c.JSON(http.StatusServiceUnavailable, response)
		}

		heartbeats, err := store.ListHeartbeats(ctx)
		if err != nil {
			response.OK = false
			response.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, response)
		}

		response.Workers = make(map[string]models.WorkerStatus, len(heartbeats))
		for _, hb := range heartbeats {
			stale := time.Since(hb.LastHeartbeat) > heartbeatStaleAfter
			if stale && hb.Status == models.WorkerStatusRunning {
				response.OK = false
			}
			response.Workers[hb.WorkerName] = models.WorkerStatus{
				Status:        hb.Status,
				LastHeartbeat: hb.LastHeartbeat,
				Metadata:      hb.Metadata,
				Stale:         stale,
			}
		}

		status := http.StatusOK
		if !response.OK {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, response)
	}
}
