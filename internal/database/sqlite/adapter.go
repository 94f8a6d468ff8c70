package sqlite

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/omnidao/omnidao/internal/database/sqlcommon"
	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/logger"
)

func init() {
	adapter.Register(&Adapter{})
}

// Adapter implements the adapter contract for SQLite.
type Adapter struct{}

// Type returns the canonical database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.SQLite
}

// Capabilities returns the capability metadata for SQLite.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.SQLite)
}

// Connect opens a SQLite database file (or :memory:). The file path comes
// from DSN when set, otherwise from DatabaseName.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	path := config.DSN
	if path == "" {
		path = config.DatabaseName
	}
	if path == "" {
		return nil, adapter.NewConfigurationError(a.Type(), "databaseName", "a file path or :memory: is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, adapter.NewConfigurationError(a.Type(), "dsn", err.Error())
	}
	// The file is a single writer; serializing access through one
	// connection avoids SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, adapter.NewConnectionError(a.Type(), path, 0, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, adapter.WrapError(a.Type(), "connect", err)
	}

	log := logger.New("sqlite", config.Name)
	return sqlcommon.NewConnection(a, config, dialect{}, sqlcommon.NewSQLExecutor(db), db, log), nil
}
