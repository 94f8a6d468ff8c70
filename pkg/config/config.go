// Package config loads the YAML configuration describing database
// connections and the schemas they serve.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/schema"
)

// Database describes one backend connection.
type Database struct {
	Type         string                 `yaml:"type"`
	DSN          string                 `yaml:"dsn,omitempty"`
	Host         string                 `yaml:"host,omitempty"`
	Port         int                    `yaml:"port,omitempty"`
	Username     string                 `yaml:"username,omitempty"`
	Password     string                 `yaml:"password,omitempty"`
	DatabaseName string                 `yaml:"databaseName,omitempty"`
	SSL          bool                   `yaml:"ssl,omitempty"`
	SSLMode      string                 `yaml:"sslMode,omitempty"`
	MaxConns     int                    `yaml:"maxConns,omitempty"`
	MinConns     int                    `yaml:"minConns,omitempty"`
	Options      map[string]interface{} `yaml:"options,omitempty"`
}

// SchemaConfig binds a schema declaration to a named database.
type SchemaConfig struct {
	schema.Schema `yaml:",inline"`
	Database      string `yaml:"database"`
}

// Config is the root of the YAML configuration file.
type Config struct {
	Databases map[string]Database `yaml:"databases"`
	Schemas   []SchemaConfig      `yaml:"schemas,omitempty"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that every schema points at a declared database and every
// database has enough fields to connect.
func (c *Config) Validate() error {
	if len(c.Databases) == 0 {
		return fmt.Errorf("no databases configured")
	}
	for name, db := range c.Databases {
		if db.Type == "" {
			return fmt.Errorf("database %q: type is required", name)
		}
		if db.DSN == "" && db.Host == "" && db.DatabaseName == "" {
			return fmt.Errorf("database %q: dsn, host or databaseName is required", name)
		}
	}
	for _, s := range c.Schemas {
		if s.Database == "" {
			return fmt.Errorf("schema %q: database binding is required", s.Name)
		}
		if _, ok := c.Databases[s.Database]; !ok {
			return fmt.Errorf("schema %q: database %q is not configured", s.Name, s.Database)
		}
		if err := s.Schema.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ConnectionConfig converts a database entry to the adapter configuration.
func (d Database) ConnectionConfig(name string) adapter.ConnectionConfig {
	return adapter.ConnectionConfig{
		DatabaseID:     name,
		Name:           name,
		ConnectionType: d.Type,
		DSN:            d.DSN,
		Host:           d.Host,
		Port:           d.Port,
		Username:       d.Username,
		Password:       d.Password,
		DatabaseName:   d.DatabaseName,
		SSL:            d.SSL,
		SSLMode:        d.SSLMode,
		MaxConns:       d.MaxConns,
		MinConns:       d.MinConns,
		Options:        d.Options,
	}
}
