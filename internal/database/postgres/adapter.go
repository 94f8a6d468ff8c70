package postgres

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnidao/omnidao/internal/database/sqlcommon"
	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/logger"
)

func init() {
	adapter.Register(&Adapter{})
}

// Adapter implements the adapter contract for PostgreSQL.
type Adapter struct{}

// Type returns the canonical database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.PostgreSQL
}

// Capabilities returns the capability metadata for PostgreSQL.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.PostgreSQL)
}

// Connect establishes a pooled connection to a PostgreSQL database.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(buildDSN(config))
	if err != nil {
		return nil, adapter.NewConfigurationError(a.Type(), "dsn", err.Error())
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = int32(config.MaxConns)
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = int32(config.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, adapter.NewConnectionError(a.Type(), config.Host, config.Port, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, adapter.NewConnectionError(a.Type(), config.Host, config.Port, err)
	}

	log := logger.New("postgres", config.Name)
	return sqlcommon.NewConnection(a, config, dialect{}, &executor{pool: pool}, pool, log), nil
}

// buildDSN assembles a postgres:// URL from the discrete config fields,
// unless an explicit DSN overrides them.
func buildDSN(config adapter.ConnectionConfig) string {
	if config.DSN != "" {
		return config.DSN
	}

	u := url.URL{
		Scheme: "postgres",
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

	values := url.Values{}
	sslMode := config.SSLMode
	if sslMode == "" {
		if config.SSL {
			sslMode = "require"
		} else {
			sslMode = "disable"
		}
	}
	values.Set("sslmode", sslMode)
	if config.SSLCert != "" {
		values.Set("sslcert", config.SSLCert)
	}
	if config.SSLKey != "" {
		values.Set("sslkey", config.SSLKey)
	}
	if config.SSLRootCert != "" {
		values.Set("sslrootcert", config.SSLRootCert)
	}
	u.RawQuery = values.Encode()

	return u.String()
}
