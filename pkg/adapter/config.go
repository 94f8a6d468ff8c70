package adapter

import "github.com/omnidao/omnidao/pkg/schema"

// ConnectionConfig contains the configuration for a database connection.
// This is a unified configuration that works across all database types.
type ConnectionConfig struct {
	// Core identifiers
	DatabaseID string `json:"databaseId" yaml:"databaseId"`

	// Connection metadata
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Database type, e.g. "postgres", "mysql", "mongodb"
	ConnectionType string `json:"connectionType" yaml:"connectionType"`

	// Connection details. DSN, when set, overrides the individual fields.
	DSN          string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	Username     string `json:"username,omitempty" yaml:"username,omitempty"`
	Password     string `json:"password,omitempty" yaml:"password,omitempty"`
	DatabaseName string `json:"databaseName" yaml:"databaseName"`

	// SSL/TLS configuration
	SSL         bool   `json:"ssl,omitempty" yaml:"ssl,omitempty"`
	SSLMode     string `json:"sslMode,omitempty" yaml:"sslMode,omitempty"` // verify-full, require, etc.
	SSLCert     string `json:"sslCert,omitempty" yaml:"sslCert,omitempty"`
	SSLKey      string `json:"sslKey,omitempty" yaml:"sslKey,omitempty"`
	SSLRootCert string `json:"sslRootCert,omitempty" yaml:"sslRootCert,omitempty"`

	// Pool limits, passed through to drivers that pool internally. One
	// logical connection per registered schema is still the contract at
	// this layer.
	MaxConns int `json:"maxConns,omitempty" yaml:"maxConns,omitempty"`
	MinConns int `json:"minConns,omitempty" yaml:"minConns,omitempty"`

	// Schema declares the entities this connection serves. Required for
	// data and schema operations; lifecycle operations work without it.
	Schema *schema.Schema `json:"-" yaml:"-"`

	// Database-specific options (use sparingly)
	Options map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
}

// Validate checks that the configuration is complete enough to connect.
func (c ConnectionConfig) Validate() error {
	if c.ConnectionType == "" {
		return NewConfigurationError("", "connectionType", "database type is required")
	}
	if c.DSN == "" && c.Host == "" && c.DatabaseName == "" {
		return NewConfigurationError("", "host", "a dsn, host or database name is required")
	}
	return nil
}
