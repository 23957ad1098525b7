package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/cuongbtq/batch-sync/shared/database"
	"github.com/jmoiron/sqlx"
)

// Storage handles the catalog and row operations a job runs against one connection
type Storage struct {
	conn   *database.Conn
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(conn *database.Conn, logger *slog.Logger) *Storage {
	return &Storage{
		conn:   conn,
		logger: logger,
	}
}

// Describe returns the ordered column list of a table
func (s *Storage) Describe(ctx context.Context, table string) (domain.TableDescriptor, error) {
	if err := database.ValidateIdent(table); err != nil {
		return domain.TableDescriptor{}, err
	}

	rows, err := s.conn.QueryxContext(ctx, s.conn.Rebind(s.conn.Dialect().ColumnsQuery()), strings.ToUpper(table))
	if err != nil {
		return domain.TableDescriptor{}, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	desc := domain.TableDescriptor{Name: table}
	for rows.Next() {
		var col domain.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.Length); err != nil {
			return domain.TableDescriptor{}, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		desc.Columns = append(desc.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return domain.TableDescriptor{}, fmt.Errorf("failed to describe table %s: %w", table, err)
	}

	if len(desc.Columns) == 0 {
		return domain.TableDescriptor{}, &domain.TableNotFoundError{Table: table}
	}

	return desc, nil
}

// TableExists reports whether the catalog holds a table with this name,
// compared upper-cased
func (s *Storage) TableExists(ctx context.Context, table string) (bool, error) {
	var count int
	err := s.conn.GetContext(ctx, &count, s.conn.Rebind(s.conn.Dialect().TableExistsQuery()), strings.ToUpper(table))
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return count > 0, nil
}

// CreateTableSQL renders the CREATE TABLE statement for the given column
// names. types[i] is the rendered SQL type of columns[i] and is used verbatim.
func (s *Storage) CreateTableSQL(table string, columns []string, types []string) (string, error) {
	if err := database.ValidateIdent(table); err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", table)
	}
	if len(types) != len(columns) {
		return "", fmt.Errorf("table %s: %d columns but %d types", table, len(columns), len(types))
	}

	defs := make([]string, len(columns))
	for i, name := range columns {
		if err := database.ValidateIdent(name); err != nil {
			return "", err
		}
		defs[i] = s.conn.Dialect().QuoteIdent(name) + " " + types[i]
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", s.conn.Ident(table), strings.Join(defs, ", ")), nil
}

// CreateTable executes a CREATE TABLE mirroring desc. A rejected statement
// is returned as a SchemaError.
func (s *Storage) CreateTable(ctx context.Context, table string, desc domain.TableDescriptor) error {
	types := make([]string, len(desc.Columns))
	for i, col := range desc.Columns {
		types[i] = s.conn.Dialect().ColumnType(col)
	}
	return s.createTable(ctx, table, desc.ColumnNames(), types)
}

// CreateInferredTable executes a CREATE TABLE for columns with inferred types
func (s *Storage) CreateInferredTable(ctx context.Context, table string, columns []string, types []domain.SemanticType) error {
	rendered := make([]string, len(types))
	for i, t := range types {
		rendered[i] = s.conn.Dialect().InferredType(t)
	}
	return s.createTable(ctx, table, columns, rendered)
}

func (s *Storage) createTable(ctx context.Context, table string, columns, types []string) error {
	stmt, err := s.CreateTableSQL(table, columns, types)
	if err != nil {
		return &domain.SchemaError{Table: table, Err: err}
	}

	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		s.logger.Error("Failed to create table",
			slog.String("table", table),
			slog.String("statement", stmt),
			slog.Any("error", err),
		)
		return &domain.SchemaError{Table: table, Statement: stmt, Err: err}
	}

	s.logger.Info("Target table created",
		slog.String("table", table),
		slog.Int("columns", len(columns)),
	)
	return nil
}

// EnsureTable creates table from desc unless it already exists
func (s *Storage) EnsureTable(ctx context.Context, table string, desc domain.TableDescriptor) (bool, error) {
	exists, err := s.TableExists(ctx, table)
	if err != nil {
		return false, err
	}

	s.logger.Info("Checked target table",
		slog.String("table", table),
		slog.Bool("exists", exists),
	)

	if exists {
		return false, nil
	}

	if err := s.CreateTable(ctx, table, desc); err != nil {
		return false, err
	}
	return true, nil
}

// SelectAll reads every row of the given columns into memory
func (s *Storage) SelectAll(ctx context.Context, table string, columns []string) ([][]any, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", s.quoteList(columns), s.conn.Ident(table))
	return s.queryRows(ctx, query)
}

// SelectLimit reads at most n rows of the given columns
func (s *Storage) SelectLimit(ctx context.Context, table string, columns []string, n int) ([][]any, error) {
	query := s.conn.Dialect().Limit(s.quoteList(columns), s.conn.Ident(table), n)
	return s.queryRows(ctx, query)
}

func (s *Storage) queryRows(ctx context.Context, query string) ([][]any, error) {
	rows, err := s.conn.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select rows: %w", err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

// InsertRows writes rows into table inside tx with one prepared statement
func (s *Storage) InsertRows(ctx context.Context, tx *sqlx.Tx, table string, columns []string, rows [][]any) (int64, error) {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.conn.Ident(table),
		s.quoteList(columns),
		s.conn.Placeholders(len(columns)),
	)

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	var n int64
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return n, fmt.Errorf("failed to insert row %d into %s: %w", i+1, table, err)
		}
		n++
	}
	return n, nil
}

// quoteList quotes catalog-reported column names without case normalization
func (s *Storage) quoteList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = s.conn.Dialect().QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}
