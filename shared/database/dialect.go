package database

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	go_ora "github.com/sijms/go-ora/v2"
	_ "modernc.org/sqlite"
)

func init() {
	// sqlx only knows the cgo sqlite and oci8-family driver names
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	sqlx.BindDriver("oracle", sqlx.NAMED)
}

// Endpoint holds the connection parameters of one logical database
type Endpoint struct {
	Dialect  string
	Driver   string // optional driver override, e.g. "pgx" for postgres
	Host     string
	Port     int
	Service  string // service name (oracle) or database name
	User     string
	Password string
	SSLMode  string
	DSN      string // used verbatim when set
}

// Dialect captures the vendor-specific SQL a job needs
type Dialect interface {
	Name() string
	DriverName(ep Endpoint) string
	DSN(ep Endpoint) string

	// NormalizeName maps an unquoted identifier to the case the catalog stores
	NormalizeName(name string) string
	QuoteIdent(name string) string

	// TableExistsQuery takes one upper-cased table name argument and returns a count
	TableExistsQuery() string
	// ColumnsQuery takes one upper-cased table name argument and returns
	// (name, type, length) rows in declaration order
	ColumnsQuery() string

	// ColumnType renders a catalog-reported column as a DDL type
	ColumnType(col domain.Column) string
	// InferredType renders a semantic type as a DDL type
	InferredType(t domain.SemanticType) string

	// Limit wraps a select list over a table with a row limit
	Limit(columns, table string, n int) string
}

// LookupDialect returns the dialect registered under name
func LookupDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "oracle":
		return oracleDialect{}, nil
	case "postgres", "postgresql":
		return postgresDialect{}, nil
	case "sqlserver", "mssql":
		return sqlServerDialect{}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", name)
	}
}

// ValidateIdent rejects identifiers that cannot be quoted safely
func ValidateIdent(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("identifier is empty")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("identifier %q contains NUL", name)
	}
	return nil
}

func doubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var charTypes = map[string]bool{
	"VARCHAR2":          true,
	"NVARCHAR2":         true,
	"VARCHAR":           true,
	"NVARCHAR":          true,
	"CHAR":              true,
	"NCHAR":             true,
	"CHARACTER":         true,
	"CHARACTER VARYING": true,
}

// sizedType appends the length to variable-length character types only
func sizedType(col domain.Column) string {
	if charTypes[strings.ToUpper(col.DataType)] && col.Length > 0 {
		return fmt.Sprintf("%s(%d)", col.DataType, col.Length)
	}
	return col.DataType
}

// ---- oracle ----

type oracleDialect struct{}

func (oracleDialect) Name() string               { return "oracle" }
func (oracleDialect) DriverName(Endpoint) string { return "oracle" }

func (oracleDialect) DSN(ep Endpoint) string {
	if ep.DSN != "" {
		return ep.DSN
	}
	return go_ora.BuildUrl(ep.Host, ep.Port, ep.Service, ep.User, ep.Password, nil)
}

func (oracleDialect) NormalizeName(name string) string { return strings.ToUpper(name) }
func (oracleDialect) QuoteIdent(name string) string    { return doubleQuote(name) }

func (oracleDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM user_tables WHERE table_name = ?`
}

// Character-semantics columns (NVARCHAR2, NCHAR, VARCHAR2(n CHAR)) report
// char_length; data_length counts bytes.
func (oracleDialect) ColumnsQuery() string {
	return `SELECT column_name, data_type,
		CASE WHEN char_used = 'C' THEN char_length ELSE data_length END
		FROM user_tab_columns
		WHERE table_name = ?
		ORDER BY column_id`
}

func (oracleDialect) ColumnType(col domain.Column) string { return sizedType(col) }

func (oracleDialect) InferredType(t domain.SemanticType) string {
	switch t {
	case domain.TypeNumber:
		return "NUMBER"
	case domain.TypeFloat:
		return "FLOAT"
	case domain.TypeBoolean:
		return "BOOLEAN"
	case domain.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return fmt.Sprintf("VARCHAR2(%d)", domain.TextColumnLength)
	}
}

func (oracleDialect) Limit(columns, table string, n int) string {
	return fmt.Sprintf("SELECT %s FROM %s FETCH FIRST %d ROWS ONLY", columns, table, n)
}

// ---- postgres ----

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) DriverName(ep Endpoint) string {
	if ep.Driver == "pgx" {
		return "pgx"
	}
	return "postgres"
}

func (postgresDialect) DSN(ep Endpoint) string {
	if ep.DSN != "" {
		return ep.DSN
	}
	sslMode := ep.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ep.Host, ep.Port, ep.User, ep.Password, ep.Service, sslMode,
	)
}

func (postgresDialect) NormalizeName(name string) string { return strings.ToLower(name) }
func (postgresDialect) QuoteIdent(name string) string    { return doubleQuote(name) }

func (postgresDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND UPPER(table_name) = ?`
}

func (postgresDialect) ColumnsQuery() string {
	return `SELECT column_name, data_type, COALESCE(character_maximum_length, 0)
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND UPPER(table_name) = ?
		ORDER BY ordinal_position`
}

func (postgresDialect) ColumnType(col domain.Column) string { return sizedType(col) }

func (postgresDialect) InferredType(t domain.SemanticType) string {
	switch t {
	case domain.TypeNumber:
		return "BIGINT"
	case domain.TypeFloat:
		return "DOUBLE PRECISION"
	case domain.TypeBoolean:
		return "BOOLEAN"
	case domain.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return fmt.Sprintf("VARCHAR(%d)", domain.TextColumnLength)
	}
}

func (postgresDialect) Limit(columns, table string, n int) string {
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", columns, table, n)
}

// ---- sql server ----

type sqlServerDialect struct{}

func (sqlServerDialect) Name() string               { return "sqlserver" }
func (sqlServerDialect) DriverName(Endpoint) string { return "sqlserver" }

func (sqlServerDialect) DSN(ep Endpoint) string {
	if ep.DSN != "" {
		return ep.DSN
	}
	q := url.Values{}
	q.Set("database", ep.Service)
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(ep.User, ep.Password),
		Host:     ep.Host + ":" + strconv.Itoa(ep.Port),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (sqlServerDialect) NormalizeName(name string) string { return name }

func (sqlServerDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (sqlServerDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE UPPER(TABLE_NAME) = ?`
}

func (sqlServerDialect) ColumnsQuery() string {
	return `SELECT COLUMN_NAME, DATA_TYPE, COALESCE(CHARACTER_MAXIMUM_LENGTH, 0)
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE UPPER(TABLE_NAME) = ?
		ORDER BY ORDINAL_POSITION`
}

func (sqlServerDialect) ColumnType(col domain.Column) string {
	// -1 is how the catalog reports (max)
	if col.Length == -1 && charTypes[strings.ToUpper(col.DataType)] {
		return col.DataType + "(MAX)"
	}
	return sizedType(col)
}

func (sqlServerDialect) InferredType(t domain.SemanticType) string {
	switch t {
	case domain.TypeNumber:
		return "BIGINT"
	case domain.TypeFloat:
		return "FLOAT"
	case domain.TypeBoolean:
		return "BIT"
	case domain.TypeTimestamp:
		return "DATETIME2"
	default:
		return fmt.Sprintf("NVARCHAR(%d)", domain.TextColumnLength)
	}
}

func (sqlServerDialect) Limit(columns, table string, n int) string {
	return fmt.Sprintf("SELECT TOP %d %s FROM %s", n, columns, table)
}

// ---- sqlite ----

type sqliteDialect struct{}

func (sqliteDialect) Name() string               { return "sqlite" }
func (sqliteDialect) DriverName(Endpoint) string { return "sqlite" }

// DSN treats Service as the database file path
func (sqliteDialect) DSN(ep Endpoint) string {
	if ep.DSN != "" {
		return ep.DSN
	}
	return ep.Service
}

func (sqliteDialect) NormalizeName(name string) string { return name }
func (sqliteDialect) QuoteIdent(name string) string    { return doubleQuote(name) }

func (sqliteDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND UPPER(name) = ?`
}

func (sqliteDialect) ColumnsQuery() string {
	return `SELECT name, type, 0 FROM pragma_table_info(?) ORDER BY cid`
}

func (sqliteDialect) ColumnType(col domain.Column) string { return sizedType(col) }

func (sqliteDialect) InferredType(t domain.SemanticType) string {
	switch t {
	case domain.TypeNumber:
		return "INTEGER"
	case domain.TypeFloat:
		return "REAL"
	case domain.TypeBoolean:
		return "BOOLEAN"
	case domain.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return fmt.Sprintf("VARCHAR(%d)", domain.TextColumnLength)
	}
}

func (sqliteDialect) Limit(columns, table string, n int) string {
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", columns, table, n)
}
