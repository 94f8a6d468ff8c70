package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/omnidao/omnidao/internal/database/sqlcommon"
	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/logger"
)

func init() {
	adapter.Register(&Adapter{})
}

// Adapter implements the adapter contract for Microsoft SQL Server.
type Adapter struct{}

// Type returns the canonical database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.SQLServer
}

// Capabilities returns the capability metadata for SQL Server.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.SQLServer)
}

// Connect establishes a connection to a SQL Server database.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlserver", buildDSN(config))
	if err != nil {
		return nil, adapter.NewConfigurationError(a.Type(), "dsn", err.Error())
	}
	if config.MaxConns > 0 {
		db.SetMaxOpenConns(config.MaxConns)
	}
	if config.MinConns > 0 {
		db.SetMaxIdleConns(config.MinConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, adapter.NewConnectionError(a.Type(), config.Host, config.Port, err)
	}

	log := logger.New("mssql", config.Name)
	return sqlcommon.NewConnection(a, config, dialect{}, sqlcommon.NewSQLExecutor(db), db, log), nil
}

// buildDSN assembles a sqlserver:// URL from the discrete config fields,
// unless an explicit DSN overrides them.
func buildDSN(config adapter.ConnectionConfig) string {
	if config.DSN != "" {
		return config.DSN
	}

	values := url.Values{}
	values.Set("database", config.DatabaseName)
	if config.SSL {
		values.Set("encrypt", "true")
	} else {
		values.Set("encrypt", "disable")
	}

	u := url.URL{
		Scheme:   "sqlserver",
		Host:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		RawQuery: values.Encode(),
	}
	if config.Username != "" {
		if config.Password != "" {
			u.User = url.UserPassword(config.Username, config.Password)
		} else {
			u.User = url.User(config.Username)
		}
	}
	return u.String()
}
