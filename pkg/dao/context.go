// Package dao provides the data-access façade: a per-schema DAO composing
// an adapter connection, retry-aware connection lifecycle management,
// foreign-key-aware schema synchronization, and schema version/migration
// detection. All lookup state lives in an explicit Context instead of
// process-wide registries, so tests construct isolated contexts.
package dao

import (
	"fmt"
	"sync"
	"time"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/logger"
	"github.com/omnidao/omnidao/pkg/schema"
)

// Defaults for the bounded connect retry loop.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 500 * time.Millisecond
)

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used by DAOs created from this context.
func WithLogger(log *logger.Logger) Option {
	return func(c *Context) { c.log = log }
}

// WithMaxAttempts bounds the connect retry loop.
func WithMaxAttempts(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the base delay of the linear backoff (base*attempt).
func WithBackoffBase(d time.Duration) Option {
	return func(c *Context) { c.backoffBase = d }
}

// WithSleep injects the delay function used between connect attempts, so
// tests observe backoff without real time passing.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Context) { c.sleep = sleep }
}

// Context carries the adapter registry, the registered schemas with their
// connection configurations, and the shared per-schema connections. One
// logical connection serves all entities of one schema.
type Context struct {
	registry    *adapter.Registry
	log         *logger.Logger
	maxAttempts int
	backoffBase time.Duration
	sleep       func(time.Duration)

	mu      sync.RWMutex
	schemas map[string]*schema.Schema
	configs map[string]adapter.ConnectionConfig
	conns   map[string]adapter.Connection
}

// NewContext creates a context over an adapter registry. A nil registry
// uses the default one populated by backend init() registration.
func NewContext(registry *adapter.Registry, opts ...Option) *Context {
	if registry == nil {
		registry = adapter.DefaultRegistry()
	}
	c := &Context{
		registry:    registry,
		log:         logger.New("dao", ""),
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		sleep:       time.Sleep,
		schemas:     make(map[string]*schema.Schema),
		configs:     make(map[string]adapter.ConnectionConfig),
		conns:       make(map[string]adapter.Connection),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the adapter registry this context resolves backends from.
func (c *Context) Registry() *adapter.Registry {
	return c.registry
}

// RegisterSchema validates and registers a schema together with the
// connection configuration of the backend that serves it. The version
// bookkeeping entity is appended so version records flow through the same
// adapter contract as user data.
func (c *Context) RegisterSchema(s *schema.Schema, config adapter.ConnectionConfig) error {
	if s == nil {
		return fmt.Errorf("schema is nil")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.schemas[s.Name]; exists {
		return fmt.Errorf("schema %q is already registered", s.Name)
	}

	withVersions := ensureVersionEntity(s)
	config.Schema = withVersions
	c.schemas[s.Name] = withVersions
	c.configs[s.Name] = config
	return nil
}

// Schema returns a registered schema by name.
func (c *Context) Schema(name string) (*schema.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[name]
	return s, ok
}

// SchemaNames returns the names of all registered schemas.
func (c *Context) SchemaNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		names = append(names, name)
	}
	return names
}

// DAO creates a data-access object for a registered schema. DAOs share the
// context's per-schema connection; creating several DAOs for one schema does
// not open additional sessions.
func (c *Context) DAO(schemaName string) (*DAO, error) {
	c.mu.RLock()
	s, ok := c.schemas[schemaName]
	config := c.configs[schemaName]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("schema %q is not registered", schemaName)
	}

	return &DAO{
		schema: s,
		log:    c.log,
		lifecycle: &lifecycle{
			ctx:         c,
			schemaName:  schemaName,
			config:      config,
			maxAttempts: c.maxAttempts,
			backoffBase: c.backoffBase,
			sleep:       c.sleep,
			log:         c.log,
		},
	}, nil
}

// Close closes every shared connection. Safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for name, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, name)
	}
	return firstErr
}

// sharedConnection returns the live shared connection for a schema, if any.
func (c *Context) sharedConnection(schemaName string) adapter.Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conns[schemaName]
}

func (c *Context) setSharedConnection(schemaName string, conn adapter.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[schemaName] = conn
}

func (c *Context) clearSharedConnection(schemaName string, conn adapter.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conns[schemaName] == conn {
		delete(c.conns, schemaName)
	}
}
