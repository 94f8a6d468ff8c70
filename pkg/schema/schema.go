// Package schema defines the database-neutral schema model used by the
// data-access layer: named entities with field, index and foreign key
// definitions, a declared semantic version, and the foreign-key-aware
// dependency resolver used to order table creation.
package schema

import "fmt"

// FieldType is the logical (backend-neutral) type of a field. Each dialect
// maps logical types to its own column types.
type FieldType string

const (
	TypeString   FieldType = "string"   // bounded text, uses Length
	TypeText     FieldType = "text"     // unbounded text
	TypeInteger  FieldType = "integer"  // 32-bit integer
	TypeBigInt   FieldType = "bigint"   // 64-bit integer
	TypeFloat    FieldType = "float"    // double precision
	TypeBoolean  FieldType = "boolean"  // true/false
	TypeDateTime FieldType = "datetime" // timestamp
	TypeJSON     FieldType = "json"     // serialized document
	TypeUUID     FieldType = "uuid"     // 128-bit identifier
	TypeBlob     FieldType = "blob"     // binary data
)

// Reference points a field at another entity's field (a single-column
// foreign key declared at field level).
type Reference struct {
	Entity string `yaml:"entity" json:"entity"`
	Field  string `yaml:"field" json:"field"`
}

// Field describes one column/attribute of an entity.
type Field struct {
	Name          string     `yaml:"name" json:"name"`
	Type          FieldType  `yaml:"type" json:"type"`
	Length        int        `yaml:"length,omitempty" json:"length,omitempty"`
	PrimaryKey    bool       `yaml:"primaryKey,omitempty" json:"primaryKey,omitempty"`
	Required      bool       `yaml:"required,omitempty" json:"required,omitempty"`
	Unique        bool       `yaml:"unique,omitempty" json:"unique,omitempty"`
	AutoIncrement bool       `yaml:"autoIncrement,omitempty" json:"autoIncrement,omitempty"`
	Default       any        `yaml:"default,omitempty" json:"default,omitempty"`
	Reference     *Reference `yaml:"reference,omitempty" json:"reference,omitempty"`
}

// Index describes a secondary index over one or more fields.
type Index struct {
	Name   string   `yaml:"name" json:"name"`
	Fields []string `yaml:"fields" json:"fields"`
	Unique bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
}

// ForeignKey describes a (possibly composite) foreign key constraint.
type ForeignKey struct {
	Name      string   `yaml:"name" json:"name"`
	Fields    []string `yaml:"fields" json:"fields"`
	RefEntity string   `yaml:"refEntity" json:"refEntity"`
	RefFields []string `yaml:"refFields" json:"refFields"`
	OnDelete  string   `yaml:"onDelete,omitempty" json:"onDelete,omitempty"`
	OnUpdate  string   `yaml:"onUpdate,omitempty" json:"onUpdate,omitempty"`
}

// Entity is one table/collection definition.
type Entity struct {
	Name        string       `yaml:"name" json:"name"`
	Fields      []Field      `yaml:"fields" json:"fields"`
	Indexes     []Index      `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreignKeys,omitempty" json:"foreignKeys,omitempty"`
}

// Schema is a named collection of entity definitions with a declared
// version (dot-separated integers). Entity order is preserved as declared;
// table creation respects it where dependencies allow.
type Schema struct {
	Name     string   `yaml:"name" json:"name"`
	Version  string   `yaml:"version" json:"version"`
	Entities []Entity `yaml:"entities" json:"entities"`
}

// Entity returns the entity definition with the given name.
func (s *Schema) Entity(name string) (Entity, bool) {
	for _, e := range s.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// EntityNames returns entity names in declaration order.
func (s *Schema) EntityNames() []string {
	names := make([]string, len(s.Entities))
	for i, e := range s.Entities {
		names[i] = e.Name
	}
	return names
}

// Field returns the field definition with the given name.
func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// PrimaryKey returns the entity's primary key field. Composite primary keys
// are not modeled; the first field flagged PrimaryKey wins.
func (e Entity) PrimaryKey() (Field, bool) {
	for _, f := range e.Fields {
		if f.PrimaryKey {
			return f, true
		}
	}
	return Field{}, false
}

// References collects every entity this entity depends on, from field-level
// references and table-level foreign keys, without duplicates.
func (e Entity) References() []string {
	seen := make(map[string]bool)
	var refs []string
	add := func(name string) {
		if name != "" && name != e.Name && !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}
	for _, f := range e.Fields {
		if f.Reference != nil {
			add(f.Reference.Entity)
		}
	}
	for _, fk := range e.ForeignKeys {
		add(fk.RefEntity)
	}
	return refs
}

// Validate checks structural soundness of the schema: non-empty names,
// at least one field per entity, resolvable references.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is empty")
	}
	if s.Version == "" {
		return fmt.Errorf("schema %q: version is empty", s.Name)
	}
	byName := make(map[string]Entity, len(s.Entities))
	for _, e := range s.Entities {
		if e.Name == "" {
			return fmt.Errorf("schema %q: entity with empty name", s.Name)
		}
		if _, dup := byName[e.Name]; dup {
			return fmt.Errorf("schema %q: duplicate entity %q", s.Name, e.Name)
		}
		if len(e.Fields) == 0 {
			return fmt.Errorf("schema %q: entity %q has no fields", s.Name, e.Name)
		}
		byName[e.Name] = e
	}
	for _, e := range s.Entities {
		for _, ref := range e.References() {
			if _, ok := byName[ref]; !ok {
				return fmt.Errorf("schema %q: entity %q references unknown entity %q", s.Name, e.Name, ref)
			}
		}
		for _, fk := range e.ForeignKeys {
			if len(fk.Fields) == 0 || len(fk.Fields) != len(fk.RefFields) {
				return fmt.Errorf("schema %q: entity %q: foreign key %q has mismatched field lists", s.Name, e.Name, fk.Name)
			}
		}
	}
	return nil
}
