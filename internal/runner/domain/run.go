package domain

import "time"

// Job kinds
const (
	KindCopyTable  = "copy-table"
	KindUploadCSV  = "upload-csv"
	KindSendReport = "send-report"
)

// Run status constants
const (
	RunStatusSucceeded = "SUCCEEDED"
	RunStatusFailed    = "FAILED"
)

// Trigger constants
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// RunResult describes one finished job invocation
type RunResult struct {
	RunID     string        `json:"run_id"`
	Job       string        `json:"job"`
	Kind      string        `json:"kind"`
	Trigger   string        `json:"trigger"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Rows      int64         `json:"rows"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
}
