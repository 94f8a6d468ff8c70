package sqlcommon

import (
	"context"
	"fmt"
	"strings"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/logger"
	"github.com/omnidao/omnidao/pkg/query"
	"github.com/omnidao/omnidao/pkg/schema"
)

// Engine implements the data and schema operator contracts for any SQL
// backend, given a Dialect and an Executor.
type Engine struct {
	dialect Dialect
	exec    Executor
	schema  *schema.Schema
	caps    dbcapabilities.Capability
	log     *logger.Logger
}

// NewEngine creates an engine for one dialect/executor pair.
func NewEngine(dialect Dialect, exec Executor, sch *schema.Schema, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.New(string(dialect.Type()), "")
	}
	return &Engine{
		dialect: dialect,
		exec:    exec,
		schema:  sch,
		caps:    dbcapabilities.MustGet(dialect.Type()),
		log:     log,
	}
}

// Executor exposes the underlying executor (used for raw access and tests).
func (e *Engine) Executor() Executor {
	return e.exec
}

func (e *Engine) wrap(operation string, err error) error {
	return adapter.WrapError(e.dialect.Type(), operation, err)
}

func (e *Engine) entity(operation, name string) (schema.Entity, error) {
	if e.schema == nil {
		return schema.Entity{}, adapter.NewValidationError(operation, "no schema configured for this connection")
	}
	entity, ok := e.schema.Entity(name)
	if !ok {
		return schema.Entity{}, adapter.NewValidationError(operation, fmt.Sprintf("entity %q is not declared in schema %q", name, e.schema.Name))
	}
	return entity, nil
}

// ========== DataOperator ==========

// Insert stores one record and returns it as materialized by the backend.
func (e *Engine) Insert(ctx context.Context, entityName string, data adapter.Record) (adapter.Record, error) {
	const op = "insert"
	entity, err := e.entity(op, entityName)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, adapter.NewValidationError(op, "insert data is empty")
	}

	columns, placeholders, args, err := e.insertParts(data)
	if err != nil {
		return nil, e.wrap(op, err)
	}

	sql, returnsRow := e.dialect.InsertStatement(e.dialect.QuoteIdentifier(entityName), columns, placeholders)
	if returnsRow {
		rows, err := e.exec.Query(ctx, sql, args...)
		if err != nil {
			return nil, e.wrap(op, err)
		}
		if len(rows) > 0 {
			return rows[0], nil
		}
		return copyRecord(data), nil
	}

	result, err := e.exec.Exec(ctx, sql, args...)
	if err != nil {
		return nil, e.wrap(op, err)
	}
	return e.materializeInsert(ctx, entity, data, result)
}

// materializeInsert looks the stored record back up for dialects without
// RETURNING: by generated key when the entity auto-increments, otherwise by
// the primary key value carried in the data.
func (e *Engine) materializeInsert(ctx context.Context, entity schema.Entity, data adapter.Record, result adapter.ExecResult) (adapter.Record, error) {
	pk, hasPK := entity.PrimaryKey()
	if hasPK {
		if pk.AutoIncrement && result.LastInsertID != 0 {
			return e.FindByID(ctx, entity.Name, result.LastInsertID)
		}
		if id, ok := data[pk.Name]; ok {
			return e.FindByID(ctx, entity.Name, id)
		}
	}
	return copyRecord(data), nil
}

// InsertMany stores a batch of records and returns the inserted count.
func (e *Engine) InsertMany(ctx context.Context, entityName string, data []adapter.Record) (int64, error) {
	const op = "insert_many"
	if _, err := e.entity(op, entityName); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, adapter.NewValidationError(op, "insert batch is empty")
	}

	var inserted int64
	for _, record := range data {
		if len(record) == 0 {
			return inserted, adapter.NewValidationError(op, "insert batch contains an empty record")
		}
		columns, placeholders, args, err := e.insertParts(record)
		if err != nil {
			return inserted, e.wrap(op, err)
		}
		sql, _ := e.dialect.InsertStatement(e.dialect.QuoteIdentifier(entityName), columns, placeholders)
		if _, err := e.exec.Exec(ctx, sql, args...); err != nil {
			return inserted, e.wrap(op, err)
		}
		inserted++
	}
	return inserted, nil
}

// Find returns every record matching the filter.
func (e *Engine) Find(ctx context.Context, entityName string, filter adapter.Filter, opts *adapter.QueryOptions) ([]adapter.Record, error) {
	const op = "find"
	entity, err := e.entity(op, entityName)
	if err != nil {
		return nil, err
	}

	sql, args, err := e.buildSelect(entity, query.BuildProjection(e.dialect, optFields(opts)), filter, opts)
	if err != nil {
		return nil, e.wrap(op, err)
	}

	rows, err := e.exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, e.wrap(op, err)
	}
	if rows == nil {
		rows = []adapter.Record{}
	}
	return rows, nil
}

// FindOne is Find with limit 1.
func (e *Engine) FindOne(ctx context.Context, entityName string, filter adapter.Filter, opts *adapter.QueryOptions) (adapter.Record, error) {
	limited := adapter.QueryOptions{Limit: 1}
	if opts != nil {
		limited = *opts
		limited.Limit = 1
	}
	rows, err := e.Find(ctx, entityName, filter, &limited)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, adapter.ErrNotFound
	}
	return rows[0], nil
}

// FindByID looks a record up by its primary key value.
func (e *Engine) FindByID(ctx context.Context, entityName string, id interface{}) (adapter.Record, error) {
	entity, err := e.entity("find_by_id", entityName)
	if err != nil {
		return nil, err
	}
	pk, ok := entity.PrimaryKey()
	if !ok {
		return nil, adapter.NewValidationError("find_by_id", fmt.Sprintf("entity %q has no primary key", entityName))
	}
	return e.FindOne(ctx, entityName, adapter.Filter{pk.Name: id}, nil)
}

// Update applies changes to every matching record and returns the affected
// count. WHERE placeholders are numbered after the last SET placeholder.
func (e *Engine) Update(ctx context.Context, entityName string, filter adapter.Filter, changes adapter.Record) (int64, error) {
	const op = "update"
	if _, err := e.entity(op, entityName); err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, adapter.NewValidationError(op, "update changes are empty")
	}

	setClause, setArgs, nextIndex, err := query.BuildSet(e.dialect, changes)
	if err != nil {
		return 0, e.wrap(op, err)
	}
	where, err := query.BuildWhere(e.dialect, filter, nextIndex)
	if err != nil {
		return 0, e.wrap(op, err)
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", e.dialect.QuoteIdentifier(entityName), setClause)
	if where.SQL != "" {
		sql += " WHERE " + where.SQL
	}

	result, err := e.exec.Exec(ctx, sql, append(setArgs, where.Args...)...)
	if err != nil {
		return 0, e.wrap(op, err)
	}
	return result.RowsAffected, nil
}

// UpdateOne updates at most one matching record: the record is resolved by
// primary key first so multi-match filters stay single-record.
func (e *Engine) UpdateOne(ctx context.Context, entityName string, filter adapter.Filter, changes adapter.Record) (bool, error) {
	const op = "update_one"
	entity, err := e.entity(op, entityName)
	if err != nil {
		return false, err
	}

	pk, hasPK := entity.PrimaryKey()
	if !hasPK {
		affected, err := e.Update(ctx, entityName, filter, changes)
		if err != nil {
			return false, err
		}
		return affected > 0, nil
	}

	existing, err := e.FindOne(ctx, entityName, filter, nil)
	if adapter.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.UpdateByID(ctx, entityName, existing[pk.Name], changes)
}

// UpdateByID updates the record with the given primary key value.
func (e *Engine) UpdateByID(ctx context.Context, entityName string, id interface{}, changes adapter.Record) (bool, error) {
	entity, err := e.entity("update_by_id", entityName)
	if err != nil {
		return false, err
	}
	pk, ok := entity.PrimaryKey()
	if !ok {
		return false, adapter.NewValidationError("update_by_id", fmt.Sprintf("entity %q has no primary key", entityName))
	}
	affected, err := e.Update(ctx, entityName, adapter.Filter{pk.Name: id}, changes)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Delete removes every matching record and returns the affected count.
func (e *Engine) Delete(ctx context.Context, entityName string, filter adapter.Filter) (int64, error) {
	const op = "delete"
	if _, err := e.entity(op, entityName); err != nil {
		return 0, err
	}

	where, err := query.BuildWhere(e.dialect, filter, 1)
	if err != nil {
		return 0, e.wrap(op, err)
	}

	sql := "DELETE FROM " + e.dialect.QuoteIdentifier(entityName)
	if where.SQL != "" {
		sql += " WHERE " + where.SQL
	}

	result, err := e.exec.Exec(ctx, sql, where.Args...)
	if err != nil {
		return 0, e.wrap(op, err)
	}
	return result.RowsAffected, nil
}

// DeleteOne removes at most one matching record, resolved by primary key.
func (e *Engine) DeleteOne(ctx context.Context, entityName string, filter adapter.Filter) (bool, error) {
	const op = "delete_one"
	entity, err := e.entity(op, entityName)
	if err != nil {
		return false, err
	}

	pk, hasPK := entity.PrimaryKey()
	if !hasPK {
		affected, err := e.Delete(ctx, entityName, filter)
		if err != nil {
			return false, err
		}
		return affected > 0, nil
	}

	existing, err := e.FindOne(ctx, entityName, filter, nil)
	if adapter.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.DeleteByID(ctx, entityName, existing[pk.Name])
}

// DeleteByID removes the record with the given primary key value.
func (e *Engine) DeleteByID(ctx context.Context, entityName string, id interface{}) (bool, error) {
	entity, err := e.entity("delete_by_id", entityName)
	if err != nil {
		return false, err
	}
	pk, ok := entity.PrimaryKey()
	if !ok {
		return false, adapter.NewValidationError("delete_by_id", fmt.Sprintf("entity %q has no primary key", entityName))
	}
	affected, err := e.Delete(ctx, entityName, adapter.Filter{pk.Name: id})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Upsert inserts the union of filter and data when no record matches, or
// updates the matching record otherwise. When the filter is a plain
// equality predicate and the dialect has a native atomic upsert, a single
// statement is used; otherwise the engine falls back to read-then-write,
// which leaves the documented race between the existence check and the
// write.
func (e *Engine) Upsert(ctx context.Context, entityName string, filter adapter.Filter, data adapter.Record) (adapter.Record, error) {
	const op = "upsert"
	entity, err := e.entity(op, entityName)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, adapter.NewValidationError(op, "upsert data is empty")
	}

	if conflictColumns, ok := equalityColumns(filter); ok && e.caps.SupportsNativeUpsert && len(conflictColumns) > 0 {
		return e.nativeUpsert(ctx, entityName, filter, data, conflictColumns)
	}

	existing, err := e.FindOne(ctx, entityName, filter, nil)
	if err != nil && !adapter.IsNotFound(err) {
		return nil, err
	}

	if existing != nil {
		if pk, ok := entity.PrimaryKey(); ok {
			if id, has := existing[pk.Name]; has {
				if _, err := e.UpdateByID(ctx, entityName, id, data); err != nil {
					return nil, err
				}
				return e.FindByID(ctx, entityName, id)
			}
		}
		if _, err := e.Update(ctx, entityName, filter, data); err != nil {
			return nil, err
		}
		return e.FindOne(ctx, entityName, mergeRecords(filter, data), nil)
	}

	return e.Insert(ctx, entityName, mergeRecords(filter, data))
}

func (e *Engine) nativeUpsert(ctx context.Context, entityName string, filter adapter.Filter, data adapter.Record, conflictColumns []string) (adapter.Record, error) {
	const op = "upsert"
	union := mergeRecords(filter, data)

	columns, placeholders, args, err := e.insertParts(union)
	if err != nil {
		return nil, e.wrap(op, err)
	}

	sql, ok := e.dialect.UpsertStatement(e.dialect.QuoteIdentifier(entityName), columns, placeholders, quoteAll(e.dialect, conflictColumns))
	if !ok {
		// Dialect reported native upsert support but produced no
		// statement; treat as a backend defect.
		return nil, adapter.NewUnsupportedOperationError(e.dialect.Type(), op, "native upsert unavailable")
	}

	if _, err := e.exec.Exec(ctx, sql, args...); err != nil {
		return nil, e.wrap(op, err)
	}

	// The conflict columns identify the resulting record; data may have
	// overridden some of them, so look up by the union values.
	lookup := adapter.Filter{}
	for _, col := range conflictColumns {
		lookup[col] = union[col]
	}
	return e.FindOne(ctx, entityName, lookup, nil)
}

// Count returns the number of matching records.
func (e *Engine) Count(ctx context.Context, entityName string, filter adapter.Filter) (int64, error) {
	const op = "count"
	if _, err := e.entity(op, entityName); err != nil {
		return 0, err
	}

	where, err := query.BuildWhere(e.dialect, filter, 1)
	if err != nil {
		return 0, e.wrap(op, err)
	}

	sql := fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s", e.dialect.QuoteIdentifier("count"), e.dialect.QuoteIdentifier(entityName))
	if where.SQL != "" {
		sql += " WHERE " + where.SQL
	}

	rows, err := e.exec.Query(ctx, sql, where.Args...)
	if err != nil {
		return 0, e.wrap(op, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt64(rows[0]["count"]), nil
}

// Exists reports whether at least one record matches the filter.
func (e *Engine) Exists(ctx context.Context, entityName string, filter adapter.Filter) (bool, error) {
	count, err := e.Count(ctx, entityName, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Distinct returns the distinct values of one field over matching records.
func (e *Engine) Distinct(ctx context.Context, entityName string, field string, filter adapter.Filter) ([]interface{}, error) {
	const op = "distinct"
	if _, err := e.entity(op, entityName); err != nil {
		return nil, err
	}

	where, err := query.BuildWhere(e.dialect, filter, 1)
	if err != nil {
		return nil, e.wrap(op, err)
	}

	sql := fmt.Sprintf("SELECT DISTINCT %s FROM %s", e.dialect.QuoteIdentifier(field), e.dialect.QuoteIdentifier(entityName))
	if where.SQL != "" {
		sql += " WHERE " + where.SQL
	}

	rows, err := e.exec.Query(ctx, sql, where.Args...)
	if err != nil {
		return nil, e.wrap(op, err)
	}

	values := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, row[field])
	}
	return values, nil
}

// ========== Helpers ==========

func (e *Engine) insertParts(data adapter.Record) (columns []string, placeholders []string, args []interface{}, err error) {
	fields := sortedKeys(data)
	columns = make([]string, len(fields))
	placeholders = make([]string, len(fields))
	args = make([]interface{}, len(fields))
	for i, field := range fields {
		sanitized, serr := e.dialect.SanitizeValue(data[field])
		if serr != nil {
			return nil, nil, nil, serr
		}
		columns[i] = e.dialect.QuoteIdentifier(field)
		placeholders[i] = e.dialect.Placeholder(i + 1)
		args[i] = sanitized
	}
	return columns, placeholders, args, nil
}

func (e *Engine) buildSelect(entity schema.Entity, projection string, filter adapter.Filter, opts *adapter.QueryOptions) (string, []interface{}, error) {
	where, err := query.BuildWhere(e.dialect, filter, 1)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", projection, e.dialect.QuoteIdentifier(entity.Name))
	if where.SQL != "" {
		sql += " WHERE " + where.SQL
	}

	limit, offset := 0, 0
	var sorts []adapter.SortField
	if opts != nil {
		limit, offset = opts.Limit, opts.Offset
		sorts = opts.Sort
	}

	// Paging without an explicit sort falls back to primary key order so
	// results are deterministic (and so OFFSET/FETCH dialects get the
	// ORDER BY they require).
	if len(sorts) == 0 && (limit > 0 || offset > 0) {
		if pk, ok := entity.PrimaryKey(); ok {
			sorts = []adapter.SortField{{Field: pk.Name, Direction: adapter.Ascending}}
		}
	}

	if orderBy := query.BuildOrderBy(e.dialect, sorts); orderBy != "" {
		sql += " ORDER BY " + orderBy
	} else if (limit > 0 || offset > 0) && e.caps.PagingRequiresSort {
		// No sort and no primary key to fall back on, but the dialect
		// rejects OFFSET/FETCH without ORDER BY.
		sql += " ORDER BY (SELECT NULL)"
	}
	if clause := e.dialect.LimitClause(limit, offset); clause != "" {
		sql += " " + clause
	}

	return sql, where.Args, nil
}

func optFields(opts *adapter.QueryOptions) []string {
	if opts == nil {
		return nil
	}
	return opts.Fields
}

// equalityColumns returns the filter's field names when every entry is a
// plain equality predicate (usable as native upsert conflict columns).
func equalityColumns(filter adapter.Filter) ([]string, bool) {
	columns := make([]string, 0, len(filter))
	for _, key := range sortedKeys(filter) {
		if strings.HasPrefix(key, "$") {
			return nil, false
		}
		if _, isComparison := filter[key].(map[string]interface{}); isComparison {
			return nil, false
		}
		columns = append(columns, key)
	}
	return columns, true
}

func quoteAll(d Dialect, names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdentifier(n)
	}
	return quoted
}

func mergeRecords(base, overrides adapter.Record) adapter.Record {
	merged := make(adapter.Record, len(base)+len(overrides))
	for k, v := range base {
		if strings.HasPrefix(k, "$") {
			continue
		}
		if _, isComparison := v.(map[string]interface{}); isComparison {
			continue
		}
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

func copyRecord(r adapter.Record) adapter.Record {
	out := make(adapter.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// insertion sort keeps this dependency-free for small maps
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		var out int64
		fmt.Sscanf(string(n), "%d", &out)
		return out
	case string:
		var out int64
		fmt.Sscanf(n, "%d", &out)
		return out
	default:
		return 0
	}
}
