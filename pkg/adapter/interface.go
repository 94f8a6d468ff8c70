// Package adapter provides the unified interface for all database adapters.
// This package defines the contracts that database-specific implementations
// must follow, the backend-neutral Filter and QueryOptions wire shapes, and
// the error taxonomy shared by every backend.
package adapter

import (
	"context"

	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/schema"
)

// DatabaseAdapter represents a database technology adapter.
// Each database type (PostgreSQL, MySQL, MongoDB, etc.) must implement this
// interface.
type DatabaseAdapter interface {
	// Type returns the canonical database type identifier
	Type() dbcapabilities.DatabaseID

	// Capabilities returns the capability metadata for this database type
	Capabilities() dbcapabilities.Capability

	// Connect establishes a connection to a specific database
	Connect(ctx context.Context, config ConnectionConfig) (Connection, error)
}

// Connection represents an active connection to a specific database.
// This is the main interface for interacting with a database. A Connection
// is owned by exactly one logical schema; callers revalidate liveness via
// IsConnected before each use.
type Connection interface {
	// Identity and status
	ID() string
	Type() dbcapabilities.DatabaseID
	IsConnected() bool

	// Lifecycle management
	Ping(ctx context.Context) error
	Close() error

	// Operation interfaces
	DataOperations() DataOperator
	SchemaOperations() SchemaOperator

	// BeginTransaction starts a transaction on this connection. Exactly one
	// of Commit or Rollback must be called on the returned handle.
	BeginTransaction(ctx context.Context) (Transaction, error)

	// Raw returns the underlying database-specific connection object.
	// Type assertion is required when using Raw().
	Raw() interface{}

	// Configuration
	Config() ConnectionConfig
	Adapter() DatabaseAdapter
}

// DataOperator handles data CRUD operations against entities declared in
// the connection's schema.
type DataOperator interface {
	// Insert stores one record and returns it as materialized by the
	// backend (generated keys and defaults included). Empty data fails
	// with a ValidationError.
	Insert(ctx context.Context, entity string, data Record) (Record, error)

	// InsertMany stores a batch of records and returns the inserted count.
	// An empty batch fails with a ValidationError.
	InsertMany(ctx context.Context, entity string, data []Record) (int64, error)

	// Find returns every record matching the filter. The result is an
	// empty, non-nil slice when nothing matches.
	Find(ctx context.Context, entity string, filter Filter, opts *QueryOptions) ([]Record, error)

	// FindOne is Find with limit 1; it returns ErrNotFound when nothing
	// matches.
	FindOne(ctx context.Context, entity string, filter Filter, opts *QueryOptions) (Record, error)

	// FindByID looks a record up by its primary key value.
	FindByID(ctx context.Context, entity string, id interface{}) (Record, error)

	// Update applies changes to every record matching the filter and
	// returns the matched count, counting records the filter selected
	// even when the new values equal the stored ones.
	Update(ctx context.Context, entity string, filter Filter, changes Record) (int64, error)

	// UpdateOne updates at most one record matching the filter and reports
	// whether a record was changed.
	UpdateOne(ctx context.Context, entity string, filter Filter, changes Record) (bool, error)

	// UpdateByID updates the record with the given primary key value and
	// reports whether a record was changed.
	UpdateByID(ctx context.Context, entity string, id interface{}, changes Record) (bool, error)

	// Delete removes every record matching the filter and returns the
	// affected count.
	Delete(ctx context.Context, entity string, filter Filter) (int64, error)

	// DeleteOne removes at most one record matching the filter and reports
	// whether a record was removed.
	DeleteOne(ctx context.Context, entity string, filter Filter) (bool, error)

	// DeleteByID removes the record with the given primary key value and
	// reports whether a record was removed.
	DeleteByID(ctx context.Context, entity string, id interface{}) (bool, error)

	// Upsert inserts the union of filter and data when no record matches
	// the filter, or updates the matching record otherwise, returning the
	// resulting record. Backends with a native atomic upsert use it; others
	// fall back to read-then-write, in which case a concurrent insert
	// between the existence check and the write can surface a
	// duplicate-key BackendError to the caller.
	Upsert(ctx context.Context, entity string, filter Filter, data Record) (Record, error)

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, entity string, filter Filter) (int64, error)

	// Exists reports whether at least one record matches the filter.
	Exists(ctx context.Context, entity string, filter Filter) (bool, error)

	// Distinct returns the distinct values of one field over the records
	// matching the filter.
	Distinct(ctx context.Context, entity string, field string, filter Filter) ([]interface{}, error)
}

// SchemaOperator handles DDL operations derived from the connection's
// schema definitions.
type SchemaOperator interface {
	// CreateTable creates the table/collection for a declared entity,
	// including primary key, uniqueness, defaults and - for backends that
	// forbid later constraint alteration - inline foreign keys.
	CreateTable(ctx context.Context, entity string) error

	// AddField adds a column/field to an existing table.
	AddField(ctx context.Context, entity string, field schema.Field) error

	// DropTable removes a table/collection.
	DropTable(ctx context.Context, entity string) error

	// TruncateTable removes all rows but keeps the structure.
	TruncateTable(ctx context.Context, entity string) error

	// CreateIndex creates a secondary index from its definition.
	CreateIndex(ctx context.Context, entity string, index schema.Index) error

	// DropIndex removes a secondary index.
	DropIndex(ctx context.Context, entity string, indexName string) error

	// TableExists reports whether the entity's table/collection exists.
	TableExists(ctx context.Context, entity string) (bool, error)

	// ListTables returns the names of all tables/collections in the database.
	ListTables(ctx context.Context) ([]string, error)
}

// Transaction is a short-lived handle for an open transaction. Exactly one
// of Commit or Rollback must be called before the handle is discarded;
// calling either on a finalized handle fails with a TransactionStateError.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	IsActive() bool
}
