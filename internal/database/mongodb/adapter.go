// Package mongodb implements the MongoDB adapter on the official driver.
// The document paradigm maps entities to collections; the backend-neutral
// filter shape translates almost one-to-one to BSON, with $like rewritten
// as an anchored regular expression.
package mongodb

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omnidao/omnidao/internal/database/sqlcommon"
	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/logger"
)

func init() {
	adapter.Register(&Adapter{})
}

// Adapter implements the adapter contract for MongoDB.
type Adapter struct{}

// Type returns the canonical database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.MongoDB
}

// Capabilities returns the capability metadata for MongoDB.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.MongoDB)
}

// Connect establishes a connection to a MongoDB database.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := mongo.Connect(options.Client().ApplyURI(buildURI(config)))
	if err != nil {
		return nil, adapter.NewConnectionError(a.Type(), config.Host, config.Port, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, adapter.NewConnectionError(a.Type(), config.Host, config.Port, err)
	}

	id := config.DatabaseID
	if id == "" {
		id = uuid.New().String()
	}
	return &Connection{
		id:      id,
		adapter: a,
		config:  config,
		client:  client,
		db:      client.Database(config.DatabaseName),
		log:     logger.New("mongodb", config.Name),
	}, nil
}

// buildURI assembles a mongodb:// URI from the discrete config fields,
// unless an explicit DSN overrides them.
func buildURI(config adapter.ConnectionConfig) string {
	if config.DSN != "" {
		return config.DSN
	}

	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", config.Host, config.Port),
		Path:   "/" + config.DatabaseName,
	}
	if config.Username != "" {
		if config.Password != "" {
			u.User = url.UserPassword(config.Username, config.Password)
		} else {
			u.User = url.User(config.Username)
		}
	}
	if config.SSL {
		u.RawQuery = "tls=true"
	}
	return u.String()
}

// Connection is an active connection to one MongoDB database.
type Connection struct {
	id      string
	adapter *Adapter
	config  adapter.ConnectionConfig
	client  *mongo.Client
	db      *mongo.Database
	log     *logger.Logger
	closed  atomic.Bool
}

// ID returns the connection identifier.
func (c *Connection) ID() string { return c.id }

// Type returns the database type.
func (c *Connection) Type() dbcapabilities.DatabaseID { return dbcapabilities.MongoDB }

// IsConnected reports whether the connection has not been closed.
func (c *Connection) IsConnected() bool { return !c.closed.Load() }

// Ping checks connection liveness against the server.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return adapter.ErrConnectionClosed
	}
	if err := c.client.Ping(ctx, nil); err != nil {
		return adapter.WrapError(dbcapabilities.MongoDB, "ping", err)
	}
	return nil
}

// Close disconnects the client. Closing twice is a no-op.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.client.Disconnect(context.Background())
}

// DataOperations returns the data operator for this connection.
func (c *Connection) DataOperations() adapter.DataOperator {
	return &dataOps{conn: c}
}

// SchemaOperations returns the schema operator for this connection.
func (c *Connection) SchemaOperations() adapter.SchemaOperator {
	return &schemaOps{conn: c}
}

// BeginTransaction starts a multi-document transaction. The returned handle
// is once-guarded like its SQL counterparts; statements join the transaction
// through session-bound contexts obtained from Raw().
func (c *Connection) BeginTransaction(ctx context.Context) (adapter.Transaction, error) {
	if c.closed.Load() {
		return nil, adapter.ErrConnectionClosed
	}
	session, err := c.client.StartSession()
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.MongoDB, "begin_transaction", err)
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, adapter.WrapError(dbcapabilities.MongoDB, "begin_transaction", err)
	}
	return sqlcommon.NewTransaction(&sessionTx{session: session}), nil
}

// Raw returns the underlying *mongo.Client.
func (c *Connection) Raw() interface{} { return c.client }

// Config returns the connection configuration.
func (c *Connection) Config() adapter.ConnectionConfig { return c.config }

// Adapter returns the adapter that produced this connection.
func (c *Connection) Adapter() adapter.DatabaseAdapter { return c.adapter }

func (c *Connection) entity(operation, name string) error {
	if c.config.Schema == nil {
		return adapter.NewValidationError(operation, "no schema configured for this connection")
	}
	if _, ok := c.config.Schema.Entity(name); !ok {
		return adapter.NewValidationError(operation, fmt.Sprintf("entity %q is not declared in schema %q", name, c.config.Schema.Name))
	}
	return nil
}

type sessionTx struct {
	session *mongo.Session
}

func (t *sessionTx) Commit(ctx context.Context) error {
	defer t.session.EndSession(ctx)
	return t.session.CommitTransaction(ctx)
}

func (t *sessionTx) Rollback(ctx context.Context) error {
	defer t.session.EndSession(ctx)
	return t.session.AbortTransaction(ctx)
}
