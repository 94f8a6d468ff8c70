package sqlcommon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/schema"
)

// ========== SchemaOperator ==========

// CreateTable creates the table for a declared entity: columns with types,
// nullability, uniqueness and defaults, the primary key, and foreign keys
// either inline (dialects that forbid later constraint alteration) or as
// ALTER TABLE statements after creation.
func (e *Engine) CreateTable(ctx context.Context, entityName string) error {
	const op = "create_table"
	entity, err := e.entity(op, entityName)
	if err != nil {
		return err
	}

	var parts []string
	for _, field := range entity.Fields {
		def, err := e.columnDefinition(field, true)
		if err != nil {
			return adapter.NewValidationError(op, err.Error())
		}
		parts = append(parts, def)
	}

	if pk, ok := entity.PrimaryKey(); ok && !e.dialect.InlinePrimaryKey() {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", e.dialect.QuoteIdentifier(pk.Name)))
	}

	constraints := foreignKeyConstraints(entity)
	if e.caps.InlineForeignKeysOnly {
		for _, c := range constraints {
			parts = append(parts, e.renderConstraint(c))
		}
	}

	sql := fmt.Sprintf("CREATE TABLE %s (%s)", e.dialect.QuoteIdentifier(entityName), strings.Join(parts, ", "))
	if _, err := e.exec.Exec(ctx, sql); err != nil {
		return e.wrap(op, err)
	}

	if !e.caps.InlineForeignKeysOnly {
		for _, c := range constraints {
			alter := fmt.Sprintf("ALTER TABLE %s ADD %s", e.dialect.QuoteIdentifier(entityName), e.renderConstraint(c))
			if _, err := e.exec.Exec(ctx, alter); err != nil {
				return e.wrap(op, err)
			}
		}
	}
	return nil
}

// AddField adds a column to an existing table.
func (e *Engine) AddField(ctx context.Context, entityName string, field schema.Field) error {
	const op = "add_field"
	if _, err := e.entity(op, entityName); err != nil {
		return err
	}

	def, err := e.columnDefinition(field, false)
	if err != nil {
		return adapter.NewValidationError(op, err.Error())
	}

	sql := fmt.Sprintf("ALTER TABLE %s %s %s", e.dialect.QuoteIdentifier(entityName), e.dialect.AddColumnKeyword(), def)
	if _, err := e.exec.Exec(ctx, sql); err != nil {
		return e.wrap(op, err)
	}
	return nil
}

// DropTable removes a table. Missing tables are not an error.
func (e *Engine) DropTable(ctx context.Context, entityName string) error {
	sql := "DROP TABLE IF EXISTS " + e.dialect.QuoteIdentifier(entityName)
	if _, err := e.exec.Exec(ctx, sql); err != nil {
		return e.wrap("drop_table", err)
	}
	return nil
}

// TruncateTable removes all rows but keeps the table structure.
func (e *Engine) TruncateTable(ctx context.Context, entityName string) error {
	sql := e.dialect.TruncateStatement(e.dialect.QuoteIdentifier(entityName))
	if _, err := e.exec.Exec(ctx, sql); err != nil {
		return e.wrap("truncate_table", err)
	}
	return nil
}

// CreateIndex creates a secondary index from its definition.
func (e *Engine) CreateIndex(ctx context.Context, entityName string, index schema.Index) error {
	const op = "create_index"
	if _, err := e.entity(op, entityName); err != nil {
		return err
	}
	if index.Name == "" || len(index.Fields) == 0 {
		return adapter.NewValidationError(op, "index needs a name and at least one field")
	}

	unique := ""
	if index.Unique {
		unique = "UNIQUE "
	}
	sql := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique,
		e.dialect.QuoteIdentifier(index.Name),
		e.dialect.QuoteIdentifier(entityName),
		strings.Join(quoteAll(e.dialect, index.Fields), ", "))

	if _, err := e.exec.Exec(ctx, sql); err != nil {
		return e.wrap(op, err)
	}
	return nil
}

// DropIndex removes a secondary index.
func (e *Engine) DropIndex(ctx context.Context, entityName string, indexName string) error {
	sql := e.dialect.DropIndexStatement(e.dialect.QuoteIdentifier(indexName), e.dialect.QuoteIdentifier(entityName))
	if _, err := e.exec.Exec(ctx, sql); err != nil {
		return e.wrap("drop_index", err)
	}
	return nil
}

// TableExists reports whether the entity's table exists in the database.
func (e *Engine) TableExists(ctx context.Context, entityName string) (bool, error) {
	rows, err := e.exec.Query(ctx, e.dialect.TableExistsQuery(), entityName)
	if err != nil {
		return false, e.wrap("table_exists", err)
	}
	return len(rows) > 0, nil
}

// ListTables returns the names of all tables in the database.
func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	rows, err := e.exec.Query(ctx, e.dialect.ListTablesQuery())
	if err != nil {
		return nil, e.wrap("list_tables", err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		// Single-column result; the column alias varies by dialect.
		for _, v := range row {
			switch name := v.(type) {
			case string:
				names = append(names, name)
			case []byte:
				names = append(names, string(name))
			}
			break
		}
	}
	return names, nil
}

// ========== DDL helpers ==========

// columnDefinition renders one column clause. Inline primary keys are only
// emitted during CREATE TABLE, never for ALTER TABLE additions.
func (e *Engine) columnDefinition(field schema.Field, creating bool) (string, error) {
	if field.Name == "" {
		return "", fmt.Errorf("field with empty name")
	}

	columnType, err := e.dialect.MapFieldType(field)
	if err != nil {
		return "", err
	}

	parts := []string{e.dialect.QuoteIdentifier(field.Name), columnType}

	if creating && field.PrimaryKey && e.dialect.InlinePrimaryKey() {
		parts = append(parts, "PRIMARY KEY")
	}
	if field.AutoIncrement {
		if kw := e.dialect.AutoIncrementKeyword(); kw != "" {
			parts = append(parts, kw)
		}
	}
	if field.Required && !field.PrimaryKey {
		parts = append(parts, "NOT NULL")
	}
	if field.Unique && !field.PrimaryKey {
		parts = append(parts, "UNIQUE")
	}
	if field.Default != nil {
		literal, err := e.defaultLiteral(field.Default)
		if err != nil {
			return "", fmt.Errorf("field %q: %w", field.Name, err)
		}
		parts = append(parts, "DEFAULT "+literal)
	}

	return strings.Join(parts, " "), nil
}

func (e *Engine) defaultLiteral(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case bool:
		return e.dialect.BooleanLiteral(v), nil
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32, float64:
		return fmt.Sprintf("%v", v), nil
	case time.Time:
		return "'" + v.UTC().Format(time.RFC3339) + "'", nil
	default:
		return "", fmt.Errorf("unsupported default value type %T", value)
	}
}

// constraint is a normalized foreign key, collected from both field-level
// references and table-level foreign key declarations.
type constraint struct {
	name      string
	fields    []string
	refEntity string
	refFields []string
	onDelete  string
	onUpdate  string
}

func foreignKeyConstraints(entity schema.Entity) []constraint {
	var constraints []constraint
	for _, field := range entity.Fields {
		if field.Reference == nil {
			continue
		}
		constraints = append(constraints, constraint{
			name:      fmt.Sprintf("fk_%s_%s", entity.Name, field.Name),
			fields:    []string{field.Name},
			refEntity: field.Reference.Entity,
			refFields: []string{field.Reference.Field},
		})
	}
	for _, fk := range entity.ForeignKeys {
		name := fk.Name
		if name == "" {
			name = fmt.Sprintf("fk_%s_%s", entity.Name, strings.Join(fk.Fields, "_"))
		}
		constraints = append(constraints, constraint{
			name:      name,
			fields:    fk.Fields,
			refEntity: fk.RefEntity,
			refFields: fk.RefFields,
			onDelete:  fk.OnDelete,
			onUpdate:  fk.OnUpdate,
		})
	}
	return constraints
}

// renderConstraint renders a FOREIGN KEY clause usable both as a CREATE
// TABLE table element and after ALTER TABLE ... ADD.
func (e *Engine) renderConstraint(c constraint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		e.dialect.QuoteIdentifier(c.name),
		strings.Join(quoteAll(e.dialect, c.fields), ", "),
		e.dialect.QuoteIdentifier(c.refEntity),
		strings.Join(quoteAll(e.dialect, c.refFields), ", "))
	if c.onDelete != "" {
		fmt.Fprintf(&b, " ON DELETE %s", strings.ToUpper(c.onDelete))
	}
	if c.onUpdate != "" {
		fmt.Fprintf(&b, " ON UPDATE %s", strings.ToUpper(c.onUpdate))
	}
	return b.String()
}
