package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/schema"
)

// VersionTable is the bookkeeping table holding one row per schema name. It
// is declared as a regular entity so version records flow through the same
// adapter contract as user data, on every backend.
const VersionTable = "_schema_versions"

// VersionAction is the decision produced by the compatibility check.
type VersionAction string

const (
	ActionCreateNew         VersionAction = "create_new"
	ActionNoAction          VersionAction = "no_action"
	ActionVersionConflict   VersionAction = "version_conflict"
	ActionMigrationRequired VersionAction = "migration_required"
)

// VersionDecision is the result of comparing a persisted schema version
// against the declared one. It is a decision, never an error: callers choose
// a migration strategy from it.
type VersionDecision struct {
	Action      VersionAction
	Compatible  bool
	Persisted   string
	Declared    string
	Explanation string
}

// CheckCompatibility decides what to do about a persisted version relative
// to a declared one. An empty persisted version means no record exists yet.
// The function never mutates anything.
func CheckCompatibility(persisted, declared string) VersionDecision {
	if persisted == "" {
		return VersionDecision{
			Action:      ActionCreateNew,
			Compatible:  true,
			Declared:    declared,
			Explanation: fmt.Sprintf("no persisted version; schema will be recorded at %s", declared),
		}
	}

	switch schema.CompareVersions(persisted, declared) {
	case 0:
		return VersionDecision{
			Action:      ActionNoAction,
			Compatible:  true,
			Persisted:   persisted,
			Declared:    declared,
			Explanation: "persisted and declared versions are equal",
		}
	case 1:
		return VersionDecision{
			Action:      ActionVersionConflict,
			Compatible:  false,
			Persisted:   persisted,
			Declared:    declared,
			Explanation: fmt.Sprintf("persisted version %s is newer than declared %s; refusing to move backwards", persisted, declared),
		}
	default:
		return VersionDecision{
			Action:      ActionMigrationRequired,
			Compatible:  false,
			Persisted:   persisted,
			Declared:    declared,
			Explanation: fmt.Sprintf("persisted version %s is older than declared %s; migration required", persisted, declared),
		}
	}
}

// versionEntity is the definition of the bookkeeping table.
func versionEntity() schema.Entity {
	return schema.Entity{
		Name: VersionTable,
		Fields: []schema.Field{
			{Name: "schema_name", Type: schema.TypeString, Length: 128, PrimaryKey: true, Required: true},
			{Name: "version", Type: schema.TypeString, Length: 64, Required: true},
			{Name: "status", Type: schema.TypeString, Length: 32, Required: true},
			{Name: "metadata", Type: schema.TypeJSON},
			{Name: "created_at", Type: schema.TypeDateTime, Required: true},
			{Name: "updated_at", Type: schema.TypeDateTime, Required: true},
		},
	}
}

// ensureVersionEntity returns a copy of the schema with the version
// bookkeeping entity appended, unless one is already declared.
func ensureVersionEntity(s *schema.Schema) *schema.Schema {
	if _, ok := s.Entity(VersionTable); ok {
		return s
	}
	withVersions := *s
	withVersions.Entities = make([]schema.Entity, 0, len(s.Entities)+1)
	withVersions.Entities = append(withVersions.Entities, s.Entities...)
	withVersions.Entities = append(withVersions.Entities, versionEntity())
	return &withVersions
}

// ensureVersionTable lazily creates the bookkeeping table.
func (d *DAO) ensureVersionTable(ctx context.Context) error {
	return d.withRetry(ctx, "ensure_version_table", func(conn adapter.Connection) error {
		ops := conn.SchemaOperations()
		exists, err := ops.TableExists(ctx, VersionTable)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		return ops.CreateTable(ctx, VersionTable)
	})
}

// PersistedVersion reads the stored version for this DAO's schema. Empty
// when no record exists.
func (d *DAO) PersistedVersion(ctx context.Context) (string, error) {
	if err := d.ensureVersionTable(ctx); err != nil {
		return "", err
	}

	record, err := d.FindByID(ctx, VersionTable, d.schema.Name)
	if adapter.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	version, _ := record["version"].(string)
	return version, nil
}

// CheckVersion compares the persisted schema version against the declared
// one and returns the decision.
func (d *DAO) CheckVersion(ctx context.Context) (VersionDecision, error) {
	persisted, err := d.PersistedVersion(ctx)
	if err != nil {
		return VersionDecision{}, err
	}
	return CheckCompatibility(persisted, d.schema.Version), nil
}

// SaveVersionInfo upserts the version record for this DAO's schema.
func (d *DAO) SaveVersionInfo(ctx context.Context, status string, metadata map[string]interface{}) error {
	if err := d.ensureVersionTable(ctx); err != nil {
		return err
	}

	serialized := ""
	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return adapter.NewValidationError("save_version_info", fmt.Sprintf("serialize metadata: %v", err))
		}
		serialized = string(encoded)
	}

	now := time.Now().UTC()
	_, err := d.FindByID(ctx, VersionTable, d.schema.Name)
	switch {
	case adapter.IsNotFound(err):
		_, err = d.Insert(ctx, VersionTable, adapter.Record{
			"schema_name": d.schema.Name,
			"version":     d.schema.Version,
			"status":      status,
			"metadata":    serialized,
			"created_at":  now,
			"updated_at":  now,
		})
		return err
	case err != nil:
		return err
	default:
		_, err = d.UpdateByID(ctx, VersionTable, d.schema.Name, adapter.Record{
			"version":    d.schema.Version,
			"status":     status,
			"metadata":   serialized,
			"updated_at": now,
		})
		return err
	}
}
