package sqlcommon

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/logger"
)

// Connection implements the adapter connection contract for SQL backends.
// Each backend supplies its dialect, executor and raw driver object; the
// rest of the surface is identical across relational databases.
type Connection struct {
	id      string
	adapter adapter.DatabaseAdapter
	config  adapter.ConnectionConfig
	engine  *Engine
	raw     interface{}
	closed  atomic.Bool
}

// NewConnection builds a connection around an engine. The connection ID
// comes from the config's database identifier, or is generated.
func NewConnection(a adapter.DatabaseAdapter, config adapter.ConnectionConfig, dialect Dialect, exec Executor, raw interface{}, log *logger.Logger) *Connection {
	id := config.DatabaseID
	if id == "" {
		id = uuid.New().String()
	}
	return &Connection{
		id:      id,
		adapter: a,
		config:  config,
		engine:  NewEngine(dialect, exec, config.Schema, log),
		raw:     raw,
	}
}

// ID returns the connection identifier.
func (c *Connection) ID() string { return c.id }

// Type returns the database type.
func (c *Connection) Type() dbcapabilities.DatabaseID { return c.adapter.Type() }

// IsConnected reports whether the connection has not been closed. Liveness
// beyond that is the caller's concern via Ping.
func (c *Connection) IsConnected() bool { return !c.closed.Load() }

// Ping checks connection liveness against the server.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return adapter.ErrConnectionClosed
	}
	if err := c.engine.Executor().Ping(ctx); err != nil {
		return adapter.WrapError(c.adapter.Type(), "ping", err)
	}
	return nil
}

// Close releases the connection. Closing twice is a no-op.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.engine.Executor().Close()
}

// DataOperations returns the data operator for this connection.
func (c *Connection) DataOperations() adapter.DataOperator { return c.engine }

// SchemaOperations returns the schema operator for this connection.
func (c *Connection) SchemaOperations() adapter.SchemaOperator { return c.engine }

// BeginTransaction starts a transaction on this connection.
func (c *Connection) BeginTransaction(ctx context.Context) (adapter.Transaction, error) {
	if c.closed.Load() {
		return nil, adapter.ErrConnectionClosed
	}
	return c.engine.BeginTransaction(ctx)
}

// Raw returns the underlying driver object (pgx pool or *sql.DB).
func (c *Connection) Raw() interface{} { return c.raw }

// Config returns the connection configuration.
func (c *Connection) Config() adapter.ConnectionConfig { return c.config }

// Adapter returns the adapter that produced this connection.
func (c *Connection) Adapter() adapter.DatabaseAdapter { return c.adapter }

// Engine exposes the generic engine for backend tests.
func (c *Connection) Engine() *Engine { return c.engine }
