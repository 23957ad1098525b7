package runner

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/cuongbtq/batch-sync/internal/runner/storage"
	"github.com/cuongbtq/batch-sync/internal/runner/tabular"
	"github.com/cuongbtq/batch-sync/shared/database"
	"github.com/jmoiron/sqlx"
)

// UploadJob loads a delimited file into a new table whose column types are
// inferred from the file contents
type UploadJob struct {
	name   string
	path   string
	table  string
	role   domain.Role
	opts   tabular.Options
	opener database.Opener
	logger *slog.Logger
}

// NewUploadJob creates an upload job writing into the database of role
func NewUploadJob(name, path, table string, role domain.Role, opts tabular.Options, opener database.Opener, logger *slog.Logger) *UploadJob {
	return &UploadJob{
		name:   name,
		path:   path,
		table:  table,
		role:   role,
		opts:   opts,
		opener: opener,
		logger: logger,
	}
}

func (j *UploadJob) Name() string { return j.name }
func (j *UploadJob) Kind() string { return domain.KindUploadCSV }

// Run uploads the configured file
func (j *UploadJob) Run(ctx context.Context) (int64, error) {
	return j.Upload(ctx, j.path, j.table)
}

// Upload creates table from the file header and inferred types, then
// inserts every row. The table must not exist yet; an existing table is
// reported as a SchemaError.
func (j *UploadJob) Upload(ctx context.Context, path, table string) (int64, error) {
	ds, err := tabular.ReadFile(path, j.opts)
	if err != nil {
		return 0, domain.AsJobFailure(j.name, err)
	}

	types := tabular.InferTypes(ds)

	j.logger.Info("Inferred column types",
		slog.String("file", path),
		slog.Any("columns", ds.Headers),
		slog.Any("types", types),
	)

	var inserted int64
	err = database.WithConnection(ctx, j.opener, j.role, func(conn *database.Conn) error {
		store := storage.NewStorage(conn, j.logger)

		columns := make([]string, len(ds.Headers))
		for i, h := range ds.Headers {
			columns[i] = conn.Dialect().NormalizeName(strings.ToUpper(h))
		}

		if err := store.CreateInferredTable(ctx, table, columns, types); err != nil {
			return err
		}

		if len(ds.Rows) == 0 {
			j.logger.Info("No rows found in file",
				slog.String("file", path),
			)
			return nil
		}

		rows := tabular.ConvertRows(ds, types)
		return database.WithTx(ctx, conn, func(tx *sqlx.Tx) error {
			n, err := store.InsertRows(ctx, tx, table, columns, rows)
			inserted = n
			return err
		})
	})
	if err != nil {
		return 0, err
	}

	j.logger.Info("File uploaded successfully",
		slog.String("file", path),
		slog.String("table", table),
		slog.Int64("rows", inserted),
	)

	return inserted, nil
}
