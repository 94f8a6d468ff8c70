package dao

import (
	"context"
	"sync"
	"time"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/logger"
)

// ConnState is the lifecycle state of a DAO's connection.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateStale        ConnState = "stale"
)

// Status is a snapshot of the connection lifecycle for observability.
type Status struct {
	State        ConnState
	Attempts     int
	ConnectionID string
	DatabaseType dbcapabilities.DatabaseID
}

// lifecycle owns the retry/backoff and stale-connection handling around one
// schema's connection. Reuse order: the context's shared connection first
// (all DAOs of one schema share one session), then this DAO's cached handle;
// stale handles are discarded before the bounded reconnect loop runs.
type lifecycle struct {
	ctx         *Context
	schemaName  string
	config      adapter.ConnectionConfig
	maxAttempts int
	backoffBase time.Duration
	sleep       func(time.Duration)
	log         *logger.Logger

	mu       sync.Mutex
	conn     adapter.Connection
	state    ConnState
	attempts int
}

// EnsureConnected returns a live connection, reusing shared or cached ones
// and otherwise connecting with bounded linear-backoff retry.
func (m *lifecycle) EnsureConnected(ctx context.Context) (adapter.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if shared := m.ctx.sharedConnection(m.schemaName); shared != nil && shared.IsConnected() {
		m.conn = shared
		m.state = StateConnected
		return shared, nil
	}

	if m.conn != nil {
		if m.conn.IsConnected() {
			m.state = StateConnected
			return m.conn, nil
		}
		m.state = StateStale
		m.conn.Close()
		m.ctx.clearSharedConnection(m.schemaName, m.conn)
		m.conn = nil
	}

	return m.connectLocked(ctx)
}

// connectLocked runs the bounded retry loop. Callers hold m.mu.
func (m *lifecycle) connectLocked(ctx context.Context) (adapter.Connection, error) {
	m.state = StateConnecting

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		m.attempts = attempt

		conn, err := m.ctx.registry.Connect(ctx, m.config)
		if err == nil {
			m.conn = conn
			m.state = StateConnected
			m.attempts = 0
			m.ctx.setSharedConnection(m.schemaName, conn)
			return conn, nil
		}

		lastErr = err
		m.log.Warnf("connect attempt %d/%d for schema %s failed: %v", attempt, m.maxAttempts, m.schemaName, err)
		if attempt < m.maxAttempts {
			m.sleep(m.backoffBase * time.Duration(attempt))
		}
	}

	m.state = StateDisconnected
	dbType, _ := dbcapabilities.ParseID(m.config.ConnectionType)
	return nil, adapter.NewConnectionExhaustedError(dbType, m.maxAttempts, lastErr)
}

// Reconnect forces close + clear + connect, bypassing reuse.
func (m *lifecycle) Reconnect(ctx context.Context) (adapter.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		m.conn.Close()
		m.ctx.clearSharedConnection(m.schemaName, m.conn)
		m.conn = nil
	}
	m.state = StateDisconnected
	return m.connectLocked(ctx)
}

// Close releases the connection. Closing an already-closed or never-opened
// connection is a no-op.
func (m *lifecycle) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.ctx.clearSharedConnection(m.schemaName, m.conn)
	m.conn = nil
	m.state = StateDisconnected
	return err
}

// Status reports the current lifecycle snapshot.
func (m *lifecycle) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{State: m.state, Attempts: m.attempts}
	if s.State == "" {
		s.State = StateDisconnected
	}
	if m.conn != nil {
		s.ConnectionID = m.conn.ID()
		s.DatabaseType = m.conn.Type()
		if !m.conn.IsConnected() {
			s.State = StateStale
		}
	}
	return s
}
