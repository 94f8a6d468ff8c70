package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnidao/omnidao/internal/database/sqlcommon"
	"github.com/omnidao/omnidao/pkg/adapter"
)

// executor adapts a pgx connection pool to the generic engine. pgx is used
// natively rather than through database/sql so the pool's health checks and
// binary protocol stay available.
type executor struct {
	pool *pgxpool.Pool
}

func (x *executor) Query(ctx context.Context, sql string, args ...interface{}) ([]adapter.Record, error) {
	rows, err := x.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	records := []adapter.Record{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		record := make(adapter.Record, len(fields))
		for i, field := range fields {
			record[field.Name] = normalizeValue(values[i])
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (x *executor) Exec(ctx context.Context, sql string, args ...interface{}) (adapter.ExecResult, error) {
	tag, err := x.pool.Exec(ctx, sql, args...)
	if err != nil {
		return adapter.ExecResult{}, err
	}
	// PostgreSQL has no last-insert-id; generated keys come back via
	// RETURNING on the insert path instead.
	return adapter.ExecResult{RowsAffected: tag.RowsAffected()}, nil
}

func (x *executor) Begin(ctx context.Context) (sqlcommon.TxHandle, error) {
	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

func (x *executor) Ping(ctx context.Context) error {
	return x.pool.Ping(ctx)
}

func (x *executor) Close() error {
	x.pool.Close()
	return nil
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// normalizeValue converts pgx-specific row values into the plain Go shapes
// the record contract promises.
func normalizeValue(v interface{}) interface{} {
	switch value := v.(type) {
	case [16]byte: // UUID columns
		return uuid.UUID(value).String()
	default:
		return v
	}
}
