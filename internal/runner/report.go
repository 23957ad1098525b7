package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/cuongbtq/batch-sync/internal/runner/storage"
	"github.com/cuongbtq/batch-sync/shared/database"
)

// ReportOptions describes what a report job reads and how it titles the mail
type ReportOptions struct {
	Name    string
	Table   string
	Columns []string
	Limit   int
	Subject string
}

// ReportJob mails the first rows of a SOURCE table as plain text
type ReportJob struct {
	opts     ReportOptions
	opener   database.Opener
	notifier Notifier
	logger   *slog.Logger
}

// NewReportJob creates a report job
func NewReportJob(opts ReportOptions, opener database.Opener, notifier Notifier, logger *slog.Logger) *ReportJob {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Subject == "" {
		opts.Subject = "DB Report"
	}
	return &ReportJob{
		opts:     opts,
		opener:   opener,
		notifier: notifier,
		logger:   logger,
	}
}

func (j *ReportJob) Name() string { return j.opts.Name }
func (j *ReportJob) Kind() string { return domain.KindSendReport }

// Run reads the report rows, releases the connection and sends the mail.
// A delivery failure is logged and not returned.
func (j *ReportJob) Run(ctx context.Context) (int64, error) {
	var rows [][]any
	err := database.WithConnection(ctx, j.opener, domain.RoleSource, func(conn *database.Conn) error {
		columns := make([]string, len(j.opts.Columns))
		for i, c := range j.opts.Columns {
			if err := database.ValidateIdent(c); err != nil {
				return err
			}
			columns[i] = conn.Dialect().NormalizeName(c)
		}

		var err error
		rows, err = storage.NewStorage(conn, j.logger).SelectLimit(ctx, j.opts.Table, columns, j.opts.Limit)
		return err
	})
	if err != nil {
		return 0, err
	}

	body := FormatReport(rows)

	if err := j.notifier.Notify(ctx, j.opts.Subject, body); err != nil {
		j.logger.Error("Failed to send report",
			slog.String("subject", j.opts.Subject),
			slog.Any("error", err),
		)
		return int64(len(rows)), nil
	}

	j.logger.Info("Report sent",
		slog.String("table", j.opts.Table),
		slog.Int("rows", len(rows)),
	)

	return int64(len(rows)), nil
}

// FormatReport renders one line per row with values joined by " - "
func FormatReport(rows [][]any) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		values := make([]string, len(row))
		for c, v := range row {
			values[c] = formatValue(v)
		}
		lines[i] = strings.Join(values, " - ")
	}
	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(val)
	}
}
