package handler

import (
	"log/slog"

	"github.com/cuongbtq/batch-sync/internal/runner"
	"github.com/cuongbtq/batch-sync/internal/runner/domain"
)

// JobRunner is the part of the runner the admin API drives
type JobRunner interface {
	Jobs() []runner.JobStatus
	History() []domain.RunResult
	Trigger(name string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger *slog.Logger
	Runner JobRunner
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	runner JobRunner
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		runner: deps.Runner,
	}
}
