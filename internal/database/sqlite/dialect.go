// Package sqlite implements the SQLite adapter on the modernc.org/sqlite
// pure-Go driver. SQLite forbids ALTER TABLE ... ADD CONSTRAINT, so foreign
// keys are declared inline at table creation, and AUTOINCREMENT requires the
// primary key to be declared at column level.
package sqlite

import (
	"fmt"
	"strings"

	"github.com/omnidao/omnidao/internal/database/sqlcommon"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/schema"
)

type dialect struct{}

func (dialect) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.SQLite
}

func (dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (dialect) Placeholder(index int) string {
	return "?"
}

func (dialect) SanitizeValue(value interface{}) (interface{}, error) {
	return sqlcommon.SanitizeValue(value)
}

// RegexMatch reports no support: the driver does not register a REGEXP
// function by default.
func (dialect) RegexMatch(caseInsensitive bool) (string, bool) {
	return "", false
}

func (dialect) LimitClause(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset > 0:
		// SQLite requires a LIMIT before OFFSET; -1 means unlimited.
		return fmt.Sprintf("LIMIT -1 OFFSET %d", offset)
	default:
		return ""
	}
}

func (dialect) MapFieldType(field schema.Field) (string, error) {
	switch field.Type {
	case schema.TypeString, schema.TypeText, schema.TypeUUID, schema.TypeJSON:
		return "TEXT", nil
	case schema.TypeInteger, schema.TypeBigInt:
		return "INTEGER", nil
	case schema.TypeFloat:
		return "REAL", nil
	case schema.TypeBoolean:
		return "BOOLEAN", nil
	case schema.TypeDateTime:
		return "DATETIME", nil
	case schema.TypeBlob:
		return "BLOB", nil
	default:
		return "", fmt.Errorf("unknown field type %q", field.Type)
	}
}

// AutoIncrementKeyword is valid only directly after an inline PRIMARY KEY,
// which InlinePrimaryKey guarantees.
func (dialect) AutoIncrementKeyword() string { return "AUTOINCREMENT" }

func (dialect) BooleanLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (dialect) InlinePrimaryKey() bool { return true }

func (dialect) InsertStatement(table string, columns, placeholders []string) (string, bool) {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", ")), true
}

func (dialect) UpsertStatement(table string, columns, placeholders, conflictColumns []string) (string, bool) {
	base := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(conflictColumns, ", "))

	conflict := make(map[string]bool, len(conflictColumns))
	for _, c := range conflictColumns {
		conflict[c] = true
	}
	var updates []string
	for _, c := range columns {
		if !conflict[c] {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	if len(updates) == 0 {
		return base + " DO NOTHING", true
	}
	return base + " DO UPDATE SET " + strings.Join(updates, ", "), true
}

func (dialect) TableExistsQuery() string {
	return "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (dialect) ListTablesQuery() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
}

// TruncateStatement falls back to DELETE: SQLite has no TRUNCATE.
func (dialect) TruncateStatement(table string) string {
	return "DELETE FROM " + table
}

func (dialect) AddColumnKeyword() string { return "ADD COLUMN" }

func (dialect) DropIndexStatement(index, table string) string {
	return "DROP INDEX IF EXISTS " + index
}
