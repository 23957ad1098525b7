package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/batch-sync/internal/config"
	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/cuongbtq/batch-sync/internal/runner/tabular"
	"github.com/cuongbtq/batch-sync/shared/database"
)

// Job is one named unit of work the runner can invoke
type Job interface {
	Name() string
	Kind() string
	// Run executes the job once and returns the number of rows it moved
	// or reported
	Run(ctx context.Context) (int64, error)
}

// Notifier delivers a report message
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Dependencies are the collaborators jobs are built with
type Dependencies struct {
	Opener   database.Opener
	Notifier Notifier
	Logger   *slog.Logger
}

// NewJob builds a job from its configuration
func NewJob(cfg config.JobConfig, deps Dependencies) (Job, error) {
	logger := deps.Logger.With(slog.String("job", cfg.Name))

	switch cfg.Kind {
	case config.KindCopyTable:
		return NewCopyJob(cfg.Name, cfg.Copy.SourceTable, cfg.Copy.TargetTable, deps.Opener, logger), nil

	case config.KindUploadCSV:
		role := domain.RoleSource
		if cfg.Upload.Database == "target" {
			role = domain.RoleTarget
		}
		opts := tabular.Options{
			Encoding:  cfg.Upload.Encoding,
			TrimSpace: true,
		}
		if d := []rune(cfg.Upload.Delimiter); len(d) == 1 {
			opts.Delimiter = d[0]
		}
		return NewUploadJob(cfg.Name, cfg.Upload.File, cfg.Upload.Table, role, opts, deps.Opener, logger), nil

	case config.KindSendReport:
		if deps.Notifier == nil {
			return nil, fmt.Errorf("job %s: no notifier configured", cfg.Name)
		}
		return NewReportJob(ReportOptions{
			Name:    cfg.Name,
			Table:   cfg.Report.Table,
			Columns: cfg.Report.Columns,
			Limit:   cfg.Report.Limit,
			Subject: cfg.Report.Subject,
		}, deps.Opener, deps.Notifier, logger), nil

	default:
		return nil, fmt.Errorf("job %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

// NewJobs builds every configured job in order
func NewJobs(cfgs []config.JobConfig, deps Dependencies) ([]Job, error) {
	jobs := make([]Job, 0, len(cfgs))
	for _, c := range cfgs {
		job, err := NewJob(c, deps)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
