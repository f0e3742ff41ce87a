// Package backend owns the connection to the database engine that Data API
// statements run against.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/tomyedwab/dataapi/dataapi/marshal"
	"github.com/tomyedwab/dataapi/dataapi/types"
)

// Queryer is implemented by both dedicated connections and transactions.
type Queryer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type dialect interface {
	columnType(databaseTypeName string) types.ColumnType
	// useStatement returns the statement that selects database, or "" when
	// the engine has no notion of switching databases.
	useStatement(database string) string
}

var dialects = map[string]dialect{
	"mysql":   mysqlDialect{},
	"sqlite3": sqliteDialect{},
}

// Backend hands out connections to the database engine. Connections are
// never reused once released, so session state such as the selected
// database cannot leak between callers.
type Backend struct {
	db      *sqlx.DB
	dialect dialect
	logger  *slog.Logger
}

// Open connects to the engine named by driverName ("mysql" or "sqlite3").
func Open(driverName, dsn string, logger *slog.Logger) (*Backend, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}
	b, err := New(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// New wraps an existing database handle.
func New(db *sqlx.DB, logger *slog.Logger) (*Backend, error) {
	d, ok := dialects[db.DriverName()]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}
	if logger == nil {
		logger = slog.Default()
	}
	db.SetMaxIdleConns(0)
	return &Backend{db: db, dialect: d, logger: logger}, nil
}

// DriverName returns the name of the underlying database/sql driver.
func (b *Backend) DriverName() string {
	return b.db.DriverName()
}

// BindType returns the sqlx bind type for the driver's placeholders.
func (b *Backend) BindType() int {
	return sqlx.BindType(b.db.DriverName())
}

// Ping verifies that the engine is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Conn opens a dedicated connection. The caller must close it.
func (b *Backend) Conn(ctx context.Context) (*sqlx.Conn, error) {
	return b.db.Connx(ctx)
}

// Begin starts a transaction on a dedicated connection. The transaction is
// not bound to ctx's lifetime: it stays open until committed or rolled back.
func (b *Backend) Begin(ctx context.Context) (*sqlx.Tx, error) {
	return b.db.BeginTxx(context.WithoutCancel(ctx), nil)
}

// UseDatabase selects database on q's connection.
func (b *Backend) UseDatabase(ctx context.Context, q Queryer, database string) error {
	stmt := b.dialect.useStatement(database)
	if stmt == "" {
		b.logger.Debug("Ignoring database selection", "driver", b.DriverName(), "database", database)
		return nil
	}
	_, err := q.ExecContext(ctx, stmt)
	return err
}

// Describe reports the result columns of rows.
func (b *Backend) Describe(rows *sqlx.Rows) ([]marshal.Column, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	columns := make([]marshal.Column, len(colTypes))
	for i, ct := range colTypes {
		col := marshal.Column{
			Name: ct.Name(),
			Type: b.dialect.columnType(ct.DatabaseTypeName()),
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = &nullable
		}
		if precision, scale, ok := ct.DecimalSize(); ok {
			col.Precision = &precision
			col.Scale = &scale
		}
		columns[i] = col
	}
	return columns, nil
}

// Close closes the database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}
