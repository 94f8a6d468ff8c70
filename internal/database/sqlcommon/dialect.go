// Package sqlcommon implements the generic SQL data-access engine shared by
// every relational backend. A backend contributes only its Dialect (quoting,
// placeholders, type mapping, statement flavors) and an Executor over its
// driver; clause building, CRUD, DDL and transaction wrapping live here,
// once.
package sqlcommon

import (
	"context"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/schema"
)

// Dialect captures everything that differs between SQL backends. It is a
// superset of query.Dialect so the clause builder consumes it directly.
type Dialect interface {
	// Type returns the canonical database type identifier.
	Type() dbcapabilities.DatabaseID

	// QuoteIdentifier quotes a table, column or index name.
	QuoteIdentifier(name string) string

	// Placeholder returns the parameter placeholder for a 1-based index.
	Placeholder(index int) string

	// SanitizeValue converts a value into a form the driver accepts as a
	// statement parameter.
	SanitizeValue(value interface{}) (interface{}, error)

	// RegexMatch returns the regular expression operator, or false when
	// the dialect has none.
	RegexMatch(caseInsensitive bool) (string, bool)

	// LimitClause renders LIMIT/OFFSET (or OFFSET/FETCH) syntax; empty
	// when both are zero.
	LimitClause(limit, offset int) string

	// MapFieldType maps a logical field definition to the dialect's column
	// type, absorbing auto-increment where the dialect encodes it in the
	// type (e.g. BIGSERIAL).
	MapFieldType(field schema.Field) (string, error)

	// AutoIncrementKeyword returns the column attribute for auto-increment
	// fields, empty when MapFieldType already encodes it.
	AutoIncrementKeyword() string

	// BooleanLiteral renders a boolean DEFAULT literal (TRUE/FALSE, or 1/0
	// for dialects whose boolean type rejects keywords).
	BooleanLiteral(v bool) string

	// InlinePrimaryKey reports whether single-column primary keys must be
	// declared at column level (required for SQLite AUTOINCREMENT).
	InlinePrimaryKey() bool

	// InsertStatement renders a full INSERT for the quoted table, quoted
	// columns and placeholders. returnsRow reports whether executing it
	// yields the inserted row in the result set (RETURNING / OUTPUT).
	InsertStatement(table string, columns []string, placeholders []string) (sql string, returnsRow bool)

	// UpsertStatement renders a native atomic upsert, or ok=false when the
	// dialect has none and the engine must fall back to read-then-write.
	UpsertStatement(table string, columns []string, placeholders []string, conflictColumns []string) (sql string, ok bool)

	// TableExistsQuery returns a query with one parameter (the unquoted
	// table name) selecting a single row when the table exists.
	TableExistsQuery() string

	// ListTablesQuery returns a query selecting one column of table names.
	ListTablesQuery() string

	// TruncateStatement renders table truncation for the quoted table.
	TruncateStatement(table string) string

	// AddColumnKeyword is the ALTER TABLE clause introducing a new column
	// ("ADD COLUMN" or "ADD").
	AddColumnKeyword() string

	// DropIndexStatement renders index removal; some dialects name the
	// table, others do not.
	DropIndexStatement(index, table string) string
}

// Executor runs raw statements against a live driver connection. Both the
// pgx pool and database/sql handles are adapted to this interface.
type Executor interface {
	// Query runs a statement that yields rows, returned as records keyed
	// by column name.
	Query(ctx context.Context, sql string, args ...interface{}) ([]adapter.Record, error)

	// Exec runs a statement that yields no rows and returns the normalized
	// execution result.
	Exec(ctx context.Context, sql string, args ...interface{}) (adapter.ExecResult, error)

	// Begin starts a driver-level transaction.
	Begin(ctx context.Context) (TxHandle, error)

	// Ping checks connection liveness.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// TxHandle is the driver-level transaction surface the engine's Transaction
// wrapper finalizes exactly once.
type TxHandle interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
