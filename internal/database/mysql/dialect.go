// Package mysql implements the MySQL adapter on go-sql-driver through
// database/sql, with the generic SQL engine providing the operation
// surface.
package mysql

import (
	"fmt"
	"strings"

	"github.com/omnidao/omnidao/internal/database/sqlcommon"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/schema"
)

type dialect struct{}

func (dialect) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.MySQL
}

func (dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (dialect) Placeholder(index int) string {
	return "?"
}

func (dialect) SanitizeValue(value interface{}) (interface{}, error) {
	return sqlcommon.SanitizeValue(value)
}

// RegexMatch returns REGEXP for both modes: matching is case-insensitive
// under the default collations, which covers the $options "i" contract.
func (dialect) RegexMatch(caseInsensitive bool) (string, bool) {
	return "REGEXP", true
}

func (dialect) LimitClause(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset > 0:
		// MySQL has no bare OFFSET; the documented idiom is a huge limit.
		return fmt.Sprintf("LIMIT 18446744073709551615 OFFSET %d", offset)
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
		return "INT", nil
	case schema.TypeBigInt:
		return "BIGINT", nil
	case schema.TypeFloat:
		return "DOUBLE", nil
	case schema.TypeBoolean:
		return "BOOLEAN", nil
	case schema.TypeDateTime:
		return "DATETIME", nil
	case schema.TypeJSON:
		return "JSON", nil
	case schema.TypeUUID:
		return "CHAR(36)", nil
	case schema.TypeBlob:
		return "BLOB", nil
	default:
		return "", fmt.Errorf("unknown field type %q", field.Type)
	}
}

func (dialect) AutoIncrementKeyword() string { return "AUTO_INCREMENT" }

func (dialect) BooleanLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (dialect) InlinePrimaryKey() bool { return false }

func (dialect) InsertStatement(table string, columns, placeholders []string) (string, bool) {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", ")), false
}

// UpsertStatement uses ON DUPLICATE KEY UPDATE. MySQL decides conflicts by
// the table's unique keys, so the conflict column list only determines which
// columns get re-asserted rather than updated.
func (dialect) UpsertStatement(table string, columns, placeholders, conflictColumns []string) (string, bool) {
	conflict := make(map[string]bool, len(conflictColumns))
	for _, c := range conflictColumns {
		conflict[c] = true
	}

	var updates []string
	for _, c := range columns {
		if !conflict[c] {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
	}
	if len(updates) == 0 {
		// Nothing besides the key itself; touch it so the statement stays valid.
		first := columns[0]
		updates = append(updates, fmt.Sprintf("%s = %s", first, first))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", ")), true
}

func (dialect) TableExistsQuery() string {
	return "SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

func (dialect) ListTablesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name"
}

func (dialect) TruncateStatement(table string) string {
	return "TRUNCATE TABLE " + table
}

func (dialect) AddColumnKeyword() string { return "ADD COLUMN" }

func (dialect) DropIndexStatement(index, table string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", index, table)
}
