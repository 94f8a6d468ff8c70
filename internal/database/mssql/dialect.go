// Package mssql implements the Microsoft SQL Server adapter on go-mssqldb
// through database/sql. SQL Server has neither a regex operator nor an
// atomic upsert clause usable through parameterized statements, so those
// fall back through the generic engine's documented paths.
package mssql

import (
	"fmt"
	"strings"

	"github.com/omnidao/omnidao/internal/database/sqlcommon"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/schema"
)

type dialect struct{}

func (dialect) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.SQLServer
}

func (dialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (dialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}

func (dialect) SanitizeValue(value interface{}) (interface{}, error) {
	return sqlcommon.SanitizeValue(value)
}

func (dialect) RegexMatch(caseInsensitive bool) (string, bool) {
	return "", false
}

// LimitClause renders OFFSET/FETCH. The engine guarantees an ORDER BY is
// present whenever paging is requested, which OFFSET requires here.
func (dialect) LimitClause(limit, offset int) string {
	switch {
	case limit > 0:
		return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
	case offset > 0:
		return fmt.Sprintf("OFFSET %d ROWS", offset)
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
		return fmt.Sprintf("NVARCHAR(%d)", length), nil
	case schema.TypeText:
		return "NVARCHAR(MAX)", nil
	case schema.TypeInteger:
		return "INT", nil
	case schema.TypeBigInt:
		return "BIGINT", nil
	case schema.TypeFloat:
		return "FLOAT", nil
	case schema.TypeBoolean:
		return "BIT", nil
	case schema.TypeDateTime:
		return "DATETIME2", nil
	case schema.TypeJSON:
		return "NVARCHAR(MAX)", nil
	case schema.TypeUUID:
		return "UNIQUEIDENTIFIER", nil
	case schema.TypeBlob:
		return "VARBINARY(MAX)", nil
	default:
		return "", fmt.Errorf("unknown field type %q", field.Type)
	}
}

func (dialect) AutoIncrementKeyword() string { return "IDENTITY(1,1)" }

func (dialect) BooleanLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (dialect) InlinePrimaryKey() bool { return false }

func (dialect) InsertStatement(table string, columns, placeholders []string) (string, bool) {
	return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.* VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", ")), true
}

// UpsertStatement reports no native upsert; the engine falls back to
// read-then-write.
func (dialect) UpsertStatement(table string, columns, placeholders, conflictColumns []string) (string, bool) {
	return "", false
}

func (dialect) TableExistsQuery() string {
	return "SELECT 1 FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @p1"
}

func (dialect) ListTablesQuery() string {
	return "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"
}

func (dialect) TruncateStatement(table string) string {
	return "TRUNCATE TABLE " + table
}

func (dialect) AddColumnKeyword() string { return "ADD" }

func (dialect) DropIndexStatement(index, table string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", index, table)
}
