package dto

import (
	"github.com/cuongbtq/batch-sync/internal/runner"
	"github.com/cuongbtq/batch-sync/internal/runner/domain"
)

type ListJobsResponse struct {
	Jobs []runner.JobStatus `json:"jobs"`
}

type ListRunsRequest struct {
	Job    string `form:"job"`
	Status string `form:"status" binding:"omitempty,oneof=SUCCEEDED FAILED"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type ListRunsResponse struct {
	Runs []domain.RunResult `json:"runs"`
}

type TriggerJobResponse struct {
	Job    string `json:"job"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
