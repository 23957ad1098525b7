package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/jmoiron/sqlx"
)

// Conn is a single database connection opened for one job invocation
type Conn struct {
	*sqlx.DB

	role    domain.Role
	dialect Dialect
	logger  *slog.Logger
}

// Role returns the logical database this connection was opened for
func (c *Conn) Role() domain.Role {
	return c.role
}

// Dialect returns the SQL dialect of the connection
func (c *Conn) Dialect() Dialect {
	return c.dialect
}

// Ident normalizes and quotes an unquoted identifier for this dialect
func (c *Conn) Ident(name string) string {
	return c.dialect.QuoteIdent(c.dialect.NormalizeName(name))
}

// Close closes the connection
func (c *Conn) Close() error {
	if err := c.DB.Close(); err != nil {
		c.logger.Error("Failed to close database connection",
			slog.String("role", string(c.role)),
			slog.Any("error", err),
		)
		return err
	}

	c.logger.Debug("Database connection closed",
		slog.String("role", string(c.role)),
	)
	return nil
}

// Opener opens connections by role
type Opener interface {
	Open(ctx context.Context, role domain.Role) (*Conn, error)
}

// Provider opens unpooled connections to the SOURCE and TARGET databases
type Provider struct {
	endpoints map[domain.Role]Endpoint
	logger    *slog.Logger
}

// NewProvider creates a provider for the given endpoints
func NewProvider(endpoints map[domain.Role]Endpoint, logger *slog.Logger) *Provider {
	return &Provider{
		endpoints: endpoints,
		logger:    logger,
	}
}

// Open connects to the database of the given role and verifies it with a ping
func (p *Provider) Open(ctx context.Context, role domain.Role) (*Conn, error) {
	ep, ok := p.endpoints[role]
	if !ok {
		return nil, &domain.ConnectionError{Role: role, Err: fmt.Errorf("no endpoint configured")}
	}

	dialect, err := LookupDialect(ep.Dialect)
	if err != nil {
		return nil, &domain.ConnectionError{Role: role, Err: err}
	}

	p.logger.Info("Connecting to database",
		slog.String("role", string(role)),
		slog.String("dialect", dialect.Name()),
		slog.String("host", ep.Host),
		slog.String("service", ep.Service),
	)

	db, err := sqlx.Open(dialect.DriverName(ep), dialect.DSN(ep))
	if err != nil {
		p.logger.Error("Failed to open database",
			slog.String("role", string(role)),
			slog.Any("error", err),
		)
		return nil, &domain.ConnectionError{Role: role, Err: err}
	}

	// One physical connection per job invocation
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		p.logger.Error("Failed to ping database",
			slog.String("role", string(role)),
			slog.Any("error", err),
		)
		db.Close()
		return nil, &domain.ConnectionError{Role: role, Err: err}
	}

	return &Conn{
		DB:      db,
		role:    role,
		dialect: dialect,
		logger:  p.logger,
	}, nil
}

// WithConnection opens a connection, hands it to fn and closes it on every
// exit path, including a panic inside fn
func WithConnection(ctx context.Context, opener Opener, role domain.Role, fn func(*Conn) error) error {
	conn, err := opener.Open(ctx, role)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(conn)
}

// WithTx runs fn in a transaction, committing when fn succeeds and rolling
// back otherwise
func WithTx(ctx context.Context, conn *Conn, fn func(*sqlx.Tx) error) (err error) {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				conn.logger.Error("Failed to roll back transaction",
					slog.String("role", string(conn.role)),
					slog.Any("error", rbErr),
				)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Placeholders returns n positional placeholders rebound for the connection's driver
func (c *Conn) Placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "?"
	}
	return c.Rebind(strings.Join(marks, ", "))
}
