package runner

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/cuongbtq/batch-sync/internal/runner/storage"
	"github.com/cuongbtq/batch-sync/shared/database"
	"github.com/jmoiron/sqlx"
)

// CopyJob replicates the rows of a SOURCE table into a TARGET table,
// creating the target with the source column layout when it is missing
type CopyJob struct {
	name        string
	sourceTable string
	targetTable string
	opener      database.Opener
	logger      *slog.Logger
}

// NewCopyJob creates a copy job. An empty target table reuses the source name.
func NewCopyJob(name, sourceTable, targetTable string, opener database.Opener, logger *slog.Logger) *CopyJob {
	if targetTable == "" {
		targetTable = sourceTable
	}
	return &CopyJob{
		name:        name,
		sourceTable: sourceTable,
		targetTable: targetTable,
		opener:      opener,
		logger:      logger,
	}
}

func (j *CopyJob) Name() string { return j.name }
func (j *CopyJob) Kind() string { return domain.KindCopyTable }

// Run copies the configured table
func (j *CopyJob) Run(ctx context.Context) (int64, error) {
	return j.Copy(ctx, j.sourceTable, j.targetTable)
}

// Copy reads every row of source and inserts them into target inside one
// transaction. Both connections are closed on every exit path.
func (j *CopyJob) Copy(ctx context.Context, source, target string) (int64, error) {
	src, err := j.opener.Open(ctx, domain.RoleSource)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := j.opener.Open(ctx, domain.RoleTarget)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	srcStore := storage.NewStorage(src, j.logger)
	dstStore := storage.NewStorage(dst, j.logger)

	j.logger.Info("Retrieving column metadata from source table",
		slog.String("table", source),
	)

	desc, err := srcStore.Describe(ctx, source)
	if err != nil {
		return 0, err
	}

	if _, err := dstStore.EnsureTable(ctx, target, desc); err != nil {
		return 0, err
	}

	columns := desc.ColumnNames()
	rows, err := srcStore.SelectAll(ctx, source, columns)
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		j.logger.Info("No rows found in source table",
			slog.String("table", source),
		)
		return 0, nil
	}

	var inserted int64
	err = database.WithTx(ctx, dst, func(tx *sqlx.Tx) error {
		n, err := dstStore.InsertRows(ctx, tx, target, columns, rows)
		inserted = n
		return err
	})
	if err != nil {
		return 0, err
	}

	j.logger.Info("Data copied successfully",
		slog.String("source_table", source),
		slog.String("target_table", target),
		slog.Int64("rows", inserted),
	)

	return inserted, nil
}
