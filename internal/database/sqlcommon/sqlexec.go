package sqlcommon

import (
	"context"
	"database/sql"

	"github.com/omnidao/omnidao/pkg/adapter"
)

// SQLExecutor adapts a database/sql handle to the Executor interface. It is
// shared by the mysql, mssql and sqlite backends; postgres runs on pgx
// directly.
type SQLExecutor struct {
	db *sql.DB
}

// NewSQLExecutor wraps a database/sql handle.
func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{db: db}
}

// DB exposes the underlying handle for Raw().
func (x *SQLExecutor) DB() *sql.DB {
	return x.db
}

// Query runs a row-returning statement and scans every row into a record
// keyed by column name.
func (x *SQLExecutor) Query(ctx context.Context, query string, args ...interface{}) ([]adapter.Record, error) {
	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// Exec runs a statement without a result set and normalizes the outcome.
// Drivers without LastInsertId support (mssql) report it as zero.
func (x *SQLExecutor) Exec(ctx context.Context, query string, args ...interface{}) (adapter.ExecResult, error) {
	result, err := x.db.ExecContext(ctx, query, args...)
	if err != nil {
		return adapter.ExecResult{}, err
	}

	var out adapter.ExecResult
	if affected, err := result.RowsAffected(); err == nil {
		out.RowsAffected = affected
	}
	if id, err := result.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

// Begin starts a driver-level transaction.
func (x *SQLExecutor) Begin(ctx context.Context) (TxHandle, error) {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

// Ping checks connection liveness.
func (x *SQLExecutor) Ping(ctx context.Context) error {
	return x.db.PingContext(ctx)
}

// Close releases the handle and its pooled connections.
func (x *SQLExecutor) Close() error {
	return x.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback()
}

// scanRows materializes a sql.Rows cursor into records. Byte slices are
// converted to strings since every supported driver returns text columns as
// []byte at least some of the time.
func scanRows(rows *sql.Rows) ([]adapter.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []adapter.Record{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		record := make(adapter.Record, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				record[column] = string(b)
			} else {
				record[column] = values[i]
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
