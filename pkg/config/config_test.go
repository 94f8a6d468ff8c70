package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "omnidao.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
databases:
  main:
    type: postgres
    host: db.internal
    port: 5432
    username: app
    password: secret
    databaseName: appdb
    sslMode: require
    maxConns: 10
  cache:
    type: sqlite
    databaseName: cache.db
schemas:
  - name: app
    version: 1.2.0
    database: main
    entities:
      - name: users
        fields:
          - name: id
            type: bigint
            primaryKey: true
            autoIncrement: true
          - name: email
            type: string
            required: true
            unique: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Databases, 2)
	require.Len(t, cfg.Schemas, 1)

	main := cfg.Databases["main"]
	assert.Equal(t, "postgres", main.Type)
	assert.Equal(t, "db.internal", main.Host)
	assert.Equal(t, 10, main.MaxConns)

	s := cfg.Schemas[0]
	assert.Equal(t, "app", s.Name)
	assert.Equal(t, "1.2.0", s.Version)
	assert.Equal(t, "main", s.Database)
	require.Len(t, s.Entities, 1)
	assert.Equal(t, "users", s.Entities[0].Name)
	assert.True(t, s.Entities[0].Fields[0].PrimaryKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "databases: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsIncompleteConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "no databases",
			content: "databases: {}\n",
		},
		{
			name: "database without type",
			content: `
databases:
  main:
    host: db.internal
`,
		},
		{
			name: "database without target",
			content: `
databases:
  main:
    type: postgres
`,
		},
		{
			name: "schema bound to unknown database",
			content: `
databases:
  main:
    type: postgres
    host: db.internal
schemas:
  - name: app
    version: 1.0.0
    database: other
    entities:
      - name: users
        fields:
          - name: id
            type: bigint
            primaryKey: true
`,
		},
		{
			name: "schema without version",
			content: `
databases:
  main:
    type: postgres
    host: db.internal
schemas:
  - name: app
    database: main
    entities:
      - name: users
        fields:
          - name: id
            type: bigint
            primaryKey: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConnectionConfig(t *testing.T) {
	db := Database{
		Type:         "mysql",
		Host:         "db.internal",
		Port:         3306,
		Username:     "app",
		DatabaseName: "appdb",
		MaxConns:     5,
	}

	cc := db.ConnectionConfig("main")
	assert.Equal(t, "main", cc.Name)
	assert.Equal(t, "mysql", cc.ConnectionType)
	assert.Equal(t, "db.internal", cc.Host)
	assert.Equal(t, 3306, cc.Port)
	assert.Equal(t, 5, cc.MaxConns)
	assert.NoError(t, cc.Validate())
}
