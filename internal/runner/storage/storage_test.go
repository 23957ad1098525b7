package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/cuongbtq/batch-sync/shared/database"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *database.Conn {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := database.NewProvider(map[domain.Role]database.Endpoint{
		domain.RoleTarget: {Dialect: "sqlite", Service: filepath.Join(t.TempDir(), "target.db")},
	}, logger)

	conn, err := provider.Open(context.Background(), domain.RoleTarget)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newStorage(t *testing.T) (*Storage, *database.Conn) {
	conn := openSQLite(t)
	return NewStorage(conn, slog.New(slog.NewTextHandler(io.Discard, nil))), conn
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()
	s, conn := newStorage(t)

	_, err := conn.ExecContext(ctx, `CREATE TABLE customer (ID INTEGER, NAME VARCHAR(100), EMAIL TEXT)`)
	require.NoError(t, err)

	desc, err := s.Describe(ctx, "CUSTOMER")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "NAME", "EMAIL"}, desc.ColumnNames())
	assert.Equal(t, "VARCHAR(100)", desc.Columns[1].DataType)
}

func TestDescribe_TableNotFound(t *testing.T) {
	s, _ := newStorage(t)

	_, err := s.Describe(context.Background(), "MISSING")
	var notFound *domain.TableNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "MISSING", notFound.Table)
}

func TestEnsureTable_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newStorage(t)

	desc := domain.TableDescriptor{
		Name: "CUSTOMER",
		Columns: []domain.Column{
			{Name: "ID", DataType: "INTEGER"},
			{Name: "NAME", DataType: "VARCHAR", Length: 50},
		},
	}

	created, err := s.EnsureTable(ctx, "CUSTOMER", desc)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureTable(ctx, "customer", desc)
	require.NoError(t, err)
	assert.False(t, created, "existing table must not be re-created")

	got, err := s.Describe(ctx, "CUSTOMER")
	require.NoError(t, err)
	assert.Equal(t, "VARCHAR(50)", got.Columns[1].DataType)
}

func TestCreateTable_SchemaError(t *testing.T) {
	ctx := context.Background()
	s, conn := newStorage(t)

	_, err := conn.ExecContext(ctx, `CREATE TABLE "EMPLOYEE" (ID INTEGER)`)
	require.NoError(t, err)

	err = s.CreateInferredTable(ctx, "EMPLOYEE", []string{"ID"}, []domain.SemanticType{domain.TypeNumber})
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "EMPLOYEE", schemaErr.Table)
	assert.Equal(t, `CREATE TABLE "EMPLOYEE" ("ID" INTEGER)`, schemaErr.Statement)
}

func TestCreateTableSQL(t *testing.T) {
	s, _ := newStorage(t)

	stmt, err := s.CreateTableSQL("EMPLOYEE", []string{"ID", `ODD"NAME`}, []string{"INTEGER", "VARCHAR(200)"})
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "EMPLOYEE" ("ID" INTEGER, "ODD""NAME" VARCHAR(200))`, stmt)

	_, err = s.CreateTableSQL("EMPLOYEE", nil, nil)
	assert.Error(t, err)

	_, err = s.CreateTableSQL("EMPLOYEE", []string{"ID", "NAME"}, []string{"INTEGER"})
	assert.ErrorContains(t, err, "2 columns but 1 types")

	_, err = s.CreateTableSQL("", []string{"ID"}, []string{"INTEGER"})
	assert.Error(t, err)
}

func TestInsertAndSelect(t *testing.T) {
	ctx := context.Background()
	s, conn := newStorage(t)

	_, err := conn.ExecContext(ctx, `CREATE TABLE "CUSTOMER" ("ID" INTEGER, "NAME" TEXT)`)
	require.NoError(t, err)

	rows := [][]any{{int64(1), "Ada"}, {int64(2), "Linus"}, {int64(3), nil}}
	err = database.WithTx(ctx, conn, func(tx *sqlx.Tx) error {
		n, err := s.InsertRows(ctx, tx, "CUSTOMER", []string{"ID", "NAME"}, rows)
		assert.Equal(t, int64(3), n)
		return err
	})
	require.NoError(t, err)

	all, err := s.SelectAll(ctx, "CUSTOMER", []string{"ID", "NAME"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(2), all[1][0])
	assert.Equal(t, "Linus", all[1][1])
	assert.Nil(t, all[2][1])

	limited, err := s.SelectLimit(ctx, "CUSTOMER", []string{"NAME"}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
