// Package postgres implements the PostgreSQL adapter on pgx. Connections
// run on a pgxpool with the generic SQL engine on top; this package owns
// only the dialect and the pool-backed executor.
package postgres

import (
	"fmt"
	"strings"

	"github.com/omnidao/omnidao/internal/database/sqlcommon"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/schema"
)

type dialect struct{}

func (dialect) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.PostgreSQL
}

func (dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (dialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (dialect) SanitizeValue(value interface{}) (interface{}, error) {
	return sqlcommon.SanitizeValue(value)
}

func (dialect) RegexMatch(caseInsensitive bool) (string, bool) {
	if caseInsensitive {
		return "~*", true
	}
	return "~", true
}

func (dialect) LimitClause(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf("OFFSET %d", offset)
	default:
		return ""
	}
}

func (dialect) MapFieldType(field schema.Field) (string, error) {
	switch field.Type {
	case schema.TypeString:
		length := field.Length
		if length <= 0 {
			length = 255
		}
		return fmt.Sprintf("VARCHAR(%d)", length), nil
	case schema.TypeText:
		return "TEXT", nil
	case schema.TypeInteger:
		if field.AutoIncrement {
			return "SERIAL", nil
		}
		return "INTEGER", nil
	case schema.TypeBigInt:
		if field.AutoIncrement {
			return "BIGSERIAL", nil
		}
		return "BIGINT", nil
	case schema.TypeFloat:
		return "DOUBLE PRECISION", nil
	case schema.TypeBoolean:
		return "BOOLEAN", nil
	case schema.TypeDateTime:
		return "TIMESTAMP WITH TIME ZONE", nil
	case schema.TypeJSON:
		return "JSONB", nil
	case schema.TypeUUID:
		return "UUID", nil
	case schema.TypeBlob:
		return "BYTEA", nil
	default:
		return "", fmt.Errorf("unknown field type %q", field.Type)
	}
}

// AutoIncrementKeyword is empty: SERIAL/BIGSERIAL encode it in the type.
func (dialect) AutoIncrementKeyword() string { return "" }

func (dialect) BooleanLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (dialect) InlinePrimaryKey() bool { return false }

func (dialect) InsertStatement(table string, columns, placeholders []string) (string, bool) {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", ")), true
}

func (dialect) UpsertStatement(table string, columns, placeholders, conflictColumns []string) (string, bool) {
	base := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(conflictColumns, ", "))

	updates := excludedAssignments(columns, conflictColumns)
	if len(updates) == 0 {
		return base + " DO NOTHING", true
	}
	return base + " DO UPDATE SET " + strings.Join(updates, ", "), true
}

// excludedAssignments builds "col = EXCLUDED.col" for every non-conflict
// column. Column names arrive pre-quoted.
func excludedAssignments(columns, conflictColumns []string) []string {
	conflict := make(map[string]bool, len(conflictColumns))
	for _, c := range conflictColumns {
		conflict[c] = true
	}
	var updates []string
	for _, c := range columns {
		if !conflict[c] {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	return updates
}

func (dialect) TableExistsQuery() string {
	return "SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1"
}

func (dialect) ListTablesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name"
}

func (dialect) TruncateStatement(table string) string {
	return "TRUNCATE TABLE " + table
}

func (dialect) AddColumnKeyword() string { return "ADD COLUMN" }

func (dialect) DropIndexStatement(index, table string) string {
	return "DROP INDEX IF EXISTS " + index
}
