package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/omnidao/omnidao/internal/database/sqlcommon"
	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/logger"
)

func init() {
	adapter.Register(&Adapter{})
}

// Adapter implements the adapter contract for MySQL and MariaDB.
type Adapter struct{}

// Type returns the canonical database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.MySQL
}

// Capabilities returns the capability metadata for MySQL.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.MySQL)
}

// Connect establishes a connection to a MySQL database.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", buildDSN(config))
	if err != nil {
		return nil, adapter.NewConfigurationError(a.Type(), "dsn", err.Error())
	}
	if config.MaxConns > 0 {
		db.SetMaxOpenConns(config.MaxConns)
	}
	if config.MinConns > 0 {
		db.SetMaxIdleConns(config.MinConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, adapter.NewConnectionError(a.Type(), config.Host, config.Port, err)
	}

	log := logger.New("mysql", config.Name)
	return sqlcommon.NewConnection(a, config, dialect{}, sqlcommon.NewSQLExecutor(db), db, log), nil
}

// buildDSN assembles a driver DSN from the discrete config fields via the
// driver's own config type, unless an explicit DSN overrides them.
func buildDSN(config adapter.ConnectionConfig) string {
	if config.DSN != "" {
		return config.DSN
	}

	cfg := mysqldriver.NewConfig()
	cfg.User = config.Username
	cfg.Passwd = config.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	cfg.DBName = config.DatabaseName
	cfg.ParseTime = true
	// Matched-rows semantics, so Update counts agree with the other
	// backends even when the new values equal the old ones.
	cfg.ClientFoundRows = true
	if config.SSL {
		cfg.TLSConfig = "true"
		if config.SSLMode == "skip-verify" {
			cfg.TLSConfig = "skip-verify"
		}
	}
	return cfg.FormatDSN()
}
