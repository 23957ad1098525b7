package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/batch-sync/internal/api/dto"
	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/gin-gonic/gin"
)

const defaultRunsLimit = 20

// ListJobs handles GET /api/v1/jobs
// Returns every registered job with its schedule, next run and last result
func (h *JobHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs: h.runner.Jobs(),
	})
}

// ListRuns handles GET /api/v1/runs
// Returns recent runs, newest first, optionally filtered by job and status
func (h *JobHandler) ListRuns(c *gin.Context) {
	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid query parameters"})
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultRunsLimit
	}

	history := h.runner.History()
	runs := make([]domain.RunResult, 0, req.Limit)
	for i := len(history) - 1; i >= 0 && len(runs) < req.Limit; i-- {
		run := history[i]
		if req.Job != "" && run.Job != req.Job {
			continue
		}
		if req.Status != "" && run.Status != req.Status {
			continue
		}
		runs = append(runs, run)
	}

	c.JSON(http.StatusOK, dto.ListRunsResponse{Runs: runs})
}

// TriggerJob handles POST /api/v1/jobs/:name/run
// Queues a manual run; the scheduler loop executes it between ticks
func (h *JobHandler) TriggerJob(c *gin.Context) {
	name := c.Param("name")

	err := h.runner.Trigger(name)
	switch {
	case err == nil:
		h.logger.Info("Manual run requested", slog.String("job", name))
		c.JSON(http.StatusAccepted, dto.TriggerJobResponse{Job: name, Status: "QUEUED"})

	case errors.Is(err, domain.ErrUnknownJob):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job not found"})

	case errors.Is(err, domain.ErrTriggerQueueFull):
		h.logger.Warn("Manual run rejected", slog.String("job", name), slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Too many queued runs, try again later"})

	default:
		h.logger.Error("Failed to queue manual run", slog.String("job", name), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to queue run"})
	}
}
