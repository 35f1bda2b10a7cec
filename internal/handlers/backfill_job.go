package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cohost/internal/config"
	"cohost/internal/k8s"
	"cohost/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// threadsPerBackfillMonth sizes a backfill run; a busy listing sees on
// the order of a hundred conversations a month
const threadsPerBackfillMonth = 100

// BackfillHandler launches a Kubernetes Job that scrapes months of
// conversation history, independently of the always-on workers
// @Summary Launch a historical backfill job
// @Accept json
// @Produce json
// @Param request body models.BackfillRequest false "Backfill parameters"
// @Success 200 {object} models.BackfillResponse
// @Failure 500 {object} models.BackfillResponse
// @Router /api/admin/backfill [post]
func BackfillHandler(cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.BackfillRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.BackfillResponse{
				Error: "invalid request body",
			})
		}
		if req.Months <= 0 {
			req.Months = 2
		}

		if cfg.BackfillImage == "" {
			return c.JSON(http.StatusInternalServerError, models.BackfillResponse{
				Error: "backfill image not configured",
			})
		}

		k8sClient, err := k8s.NewClient(cfg.K8sNamespace)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create Kubernetes client")
			return c.JSON(http.StatusInternalServerError, models.BackfillResponse{
				Error: fmt.Sprintf("failed to create kubernetes client: %v", err),
			})
		}

		jobName := fmt.Sprintf("cohost-backfill-%d", time.Now().Unix())
		ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
		defer cancel()

		if err := k8sClient.CreateBackfillJob(ctx, jobName, cfg.BackfillImage, req.Months*threadsPerBackfillMonth); err != nil {
			log.Error().Err(err).Str("job", jobName).Msg("Failed to create backfill job")
			return c.JSON(http.StatusInternalServerError, models.BackfillResponse{
				Error: fmt.Sprintf("failed to create job: %v", err),
			})
		}

		log.Info().Str("job", jobName).Int("months", req.Months).Msg("Backfill job launched")
		return c.JSON(http.StatusOK, models.BackfillResponse{
			Success: true,
			JobName: jobName,
		})
	}
}
