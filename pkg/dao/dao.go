package dao

import (
	"context"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/logger"
	"github.com/omnidao/omnidao/pkg/schema"
)

// DAO is the façade calling code uses: it composes the schema, the adapter
// connection and the lifecycle manager. Operations that fail with a
// transient connection error are retried exactly once after a reconnect.
type DAO struct {
	schema    *schema.Schema
	lifecycle *lifecycle
	log       *logger.Logger
}

// Schema returns the schema this DAO serves (version bookkeeping entity
// included).
func (d *DAO) Schema() *schema.Schema {
	return d.schema
}

// Connect eagerly establishes the connection. Operations connect lazily, so
// calling this is optional.
func (d *DAO) Connect(ctx context.Context) error {
	_, err := d.lifecycle.EnsureConnected(ctx)
	return err
}

// Ping checks backend liveness over the current connection.
func (d *DAO) Ping(ctx context.Context) error {
	conn, err := d.lifecycle.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	return conn.Ping(ctx)
}

// Close releases the connection. Idempotent.
func (d *DAO) Close() error {
	return d.lifecycle.Close()
}

// Reconnect forces a fresh connection, bypassing reuse.
func (d *DAO) Reconnect(ctx context.Context) error {
	_, err := d.lifecycle.Reconnect(ctx)
	return err
}

// Status reports the connection lifecycle snapshot.
func (d *DAO) Status() Status {
	return d.lifecycle.Status()
}

// withRetry runs op over a live connection; on a transient connection error
// it resets the connection and retries the logical operation exactly once.
func (d *DAO) withRetry(ctx context.Context, name string, op func(conn adapter.Connection) error) error {
	conn, err := d.lifecycle.EnsureConnected(ctx)
	if err != nil {
		return err
	}

	err = op(conn)
	if err == nil || !adapter.IsConnectionError(err) {
		return err
	}

	d.log.Warnf("%s on schema %s hit a transient error, reconnecting once: %v", name, d.schema.Name, err)
	conn, rerr := d.lifecycle.Reconnect(ctx)
	if rerr != nil {
		return rerr
	}
	return op(conn)
}

// ========== Data operations ==========

// Insert stores one record and returns it as materialized by the backend.
func (d *DAO) Insert(ctx context.Context, entity string, data adapter.Record) (adapter.Record, error) {
	var out adapter.Record
	err := d.withRetry(ctx, "insert", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().Insert(ctx, entity, data)
		return opErr
	})
	return out, err
}

// InsertMany stores a batch of records and returns the inserted count.
func (d *DAO) InsertMany(ctx context.Context, entity string, data []adapter.Record) (int64, error) {
	var out int64
	err := d.withRetry(ctx, "insert_many", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().InsertMany(ctx, entity, data)
		return opErr
	})
	return out, err
}

// Find returns every record matching the filter.
func (d *DAO) Find(ctx context.Context, entity string, filter adapter.Filter, opts *adapter.QueryOptions) ([]adapter.Record, error) {
	var out []adapter.Record
	err := d.withRetry(ctx, "find", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().Find(ctx, entity, filter, opts)
		return opErr
	})
	return out, err
}

// FindOne returns the first matching record or ErrNotFound.
func (d *DAO) FindOne(ctx context.Context, entity string, filter adapter.Filter, opts *adapter.QueryOptions) (adapter.Record, error) {
	var out adapter.Record
	err := d.withRetry(ctx, "find_one", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().FindOne(ctx, entity, filter, opts)
		return opErr
	})
	return out, err
}

// FindByID looks a record up by its primary key value.
func (d *DAO) FindByID(ctx context.Context, entity string, id interface{}) (adapter.Record, error) {
	var out adapter.Record
	err := d.withRetry(ctx, "find_by_id", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().FindByID(ctx, entity, id)
		return opErr
	})
	return out, err
}

// Update applies changes to every matching record and returns the count.
func (d *DAO) Update(ctx context.Context, entity string, filter adapter.Filter, changes adapter.Record) (int64, error) {
	var out int64
	err := d.withRetry(ctx, "update", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().Update(ctx, entity, filter, changes)
		return opErr
	})
	return out, err
}

// UpdateOne updates at most one matching record.
func (d *DAO) UpdateOne(ctx context.Context, entity string, filter adapter.Filter, changes adapter.Record) (bool, error) {
	var out bool
	err := d.withRetry(ctx, "update_one", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().UpdateOne(ctx, entity, filter, changes)
		return opErr
	})
	return out, err
}

// UpdateByID updates the record with the given primary key value.
func (d *DAO) UpdateByID(ctx context.Context, entity string, id interface{}, changes adapter.Record) (bool, error) {
	var out bool
	err := d.withRetry(ctx, "update_by_id", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().UpdateByID(ctx, entity, id, changes)
		return opErr
	})
	return out, err
}

// Delete removes every matching record and returns the count.
func (d *DAO) Delete(ctx context.Context, entity string, filter adapter.Filter) (int64, error) {
	var out int64
	err := d.withRetry(ctx, "delete", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().Delete(ctx, entity, filter)
		return opErr
	})
	return out, err
}

// DeleteOne removes at most one matching record.
func (d *DAO) DeleteOne(ctx context.Context, entity string, filter adapter.Filter) (bool, error) {
	var out bool
	err := d.withRetry(ctx, "delete_one", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().DeleteOne(ctx, entity, filter)
		return opErr
	})
	return out, err
}

// DeleteByID removes the record with the given primary key value.
func (d *DAO) DeleteByID(ctx context.Context, entity string, id interface{}) (bool, error) {
	var out bool
	err := d.withRetry(ctx, "delete_by_id", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().DeleteByID(ctx, entity, id)
		return opErr
	})
	return out, err
}

// Upsert inserts or updates depending on whether the filter matches.
func (d *DAO) Upsert(ctx context.Context, entity string, filter adapter.Filter, data adapter.Record) (adapter.Record, error) {
	var out adapter.Record
	err := d.withRetry(ctx, "upsert", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().Upsert(ctx, entity, filter, data)
		return opErr
	})
	return out, err
}

// Count returns the number of matching records.
func (d *DAO) Count(ctx context.Context, entity string, filter adapter.Filter) (int64, error) {
	var out int64
	err := d.withRetry(ctx, "count", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().Count(ctx, entity, filter)
		return opErr
	})
	return out, err
}

// Exists reports whether at least one record matches the filter.
func (d *DAO) Exists(ctx context.Context, entity string, filter adapter.Filter) (bool, error) {
	var out bool
	err := d.withRetry(ctx, "exists", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().Exists(ctx, entity, filter)
		return opErr
	})
	return out, err
}

// Distinct returns the distinct values of one field over matching records.
func (d *DAO) Distinct(ctx context.Context, entity string, field string, filter adapter.Filter) ([]interface{}, error) {
	var out []interface{}
	err := d.withRetry(ctx, "distinct", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.DataOperations().Distinct(ctx, entity, field, filter)
		return opErr
	})
	return out, err
}

// BeginTransaction starts a transaction on the schema's connection. The
// handle is not retried: a transaction that loses its connection is rolled
// back by the backend.
func (d *DAO) BeginTransaction(ctx context.Context) (adapter.Transaction, error) {
	conn, err := d.lifecycle.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return conn.BeginTransaction(ctx)
}

// ========== Schema operations ==========

// SyncSchema creates every missing table in foreign-key dependency order,
// then creates declared indexes. Circular foreign keys are logged and the
// offending edge skipped.
func (d *DAO) SyncSchema(ctx context.Context) error {
	order, warnings := d.schema.ResolveOrder(d.schema.EntityNames())
	for _, w := range warnings {
		d.log.Warnf("schema %s: circular foreign key %s -> %s, edge skipped during creation ordering", d.schema.Name, w.From, w.To)
	}

	return d.withRetry(ctx, "sync_schema", func(conn adapter.Connection) error {
		ops := conn.SchemaOperations()
		for _, entityName := range order {
			exists, err := ops.TableExists(ctx, entityName)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := ops.CreateTable(ctx, entityName); err != nil {
				return err
			}
			d.log.Infof("schema %s: created table %s", d.schema.Name, entityName)

			entity, _ := d.schema.Entity(entityName)
			for _, index := range entity.Indexes {
				if err := ops.CreateIndex(ctx, entityName, index); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// CreateTable creates one entity's table.
func (d *DAO) CreateTable(ctx context.Context, entity string) error {
	return d.withRetry(ctx, "create_table", func(conn adapter.Connection) error {
		return conn.SchemaOperations().CreateTable(ctx, entity)
	})
}

// AddField adds a column to an existing table.
func (d *DAO) AddField(ctx context.Context, entity string, field schema.Field) error {
	return d.withRetry(ctx, "add_field", func(conn adapter.Connection) error {
		return conn.SchemaOperations().AddField(ctx, entity, field)
	})
}

// DropTable removes an entity's table.
func (d *DAO) DropTable(ctx context.Context, entity string) error {
	return d.withRetry(ctx, "drop_table", func(conn adapter.Connection) error {
		return conn.SchemaOperations().DropTable(ctx, entity)
	})
}

// TruncateTable removes all rows of an entity's table.
func (d *DAO) TruncateTable(ctx context.Context, entity string) error {
	return d.withRetry(ctx, "truncate_table", func(conn adapter.Connection) error {
		return conn.SchemaOperations().TruncateTable(ctx, entity)
	})
}

// CreateIndex creates a secondary index.
func (d *DAO) CreateIndex(ctx context.Context, entity string, index schema.Index) error {
	return d.withRetry(ctx, "create_index", func(conn adapter.Connection) error {
		return conn.SchemaOperations().CreateIndex(ctx, entity, index)
	})
}

// DropIndex removes a secondary index.
func (d *DAO) DropIndex(ctx context.Context, entity string, indexName string) error {
	return d.withRetry(ctx, "drop_index", func(conn adapter.Connection) error {
		return conn.SchemaOperations().DropIndex(ctx, entity, indexName)
	})
}

// TableExists reports whether an entity's table exists.
func (d *DAO) TableExists(ctx context.Context, entity string) (bool, error) {
	var out bool
	err := d.withRetry(ctx, "table_exists", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.SchemaOperations().TableExists(ctx, entity)
		return opErr
	})
	return out, err
}

// ListTables returns the names of all tables in the backing database.
func (d *DAO) ListTables(ctx context.Context) ([]string, error) {
	var out []string
	err := d.withRetry(ctx, "list_tables", func(conn adapter.Connection) error {
		var opErr error
		out, opErr = conn.SchemaOperations().ListTables(ctx)
		return opErr
	})
	return out, err
}
