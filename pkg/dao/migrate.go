package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/omnidao/omnidao/pkg/adapter"
)

// MigrationStrategy selects how a schema version gap is closed.
type MigrationStrategy string

const (
	// StrategyBackupAndRecreate externalizes a full JSON backup of every
	// table before any destructive drop begins, then recreates the schema.
	StrategyBackupAndRecreate MigrationStrategy = "backup_and_recreate"

	// StrategyDropAndCreate drops and recreates everything with no backup.
	// Irreversible, so it requires explicit opt-in.
	StrategyDropAndCreate MigrationStrategy = "drop_and_create"

	// StrategyManual hands the DAO to a caller-supplied callback; any error
	// aborts and leaves the schema unmigrated.
	StrategyManual MigrationStrategy = "manual_migration"
)

// MigrationCallback is invoked with the façade for manual migrations.
type MigrationCallback func(*DAO) error

// MigrationOptions configures Migrate.
type MigrationOptions struct {
	Strategy MigrationStrategy

	// BackupWriter receives the JSON backup for backup_and_recreate.
	BackupWriter io.Writer

	// ConfirmDestructive must be set for drop_and_create.
	ConfirmDestructive bool

	// Callback runs the manual migration.
	Callback MigrationCallback
}

// Backup is the externalized shape written before destructive recreation.
type Backup struct {
	Schema  string                      `json:"schema"`
	Version string                      `json:"version"`
	TakenAt time.Time                   `json:"takenAt"`
	Tables  map[string][]adapter.Record `json:"tables"`
}

// Migrate closes the gap between the persisted and declared schema versions
// using the selected strategy, then records the declared version. A
// version_conflict decision always fails: versions never move backwards.
func (d *DAO) Migrate(ctx context.Context, opts MigrationOptions) error {
	decision, err := d.CheckVersion(ctx)
	if err != nil {
		return err
	}

	switch decision.Action {
	case ActionNoAction:
		return nil
	case ActionCreateNew:
		if err := d.SyncSchema(ctx); err != nil {
			return err
		}
		return d.SaveVersionInfo(ctx, "created", nil)
	case ActionVersionConflict:
		return fmt.Errorf("schema %s: %s", d.schema.Name, decision.Explanation)
	}

	// migration_required
	switch opts.Strategy {
	case StrategyBackupAndRecreate:
		return d.backupAndRecreate(ctx, opts.BackupWriter, decision)
	case StrategyDropAndCreate:
		if !opts.ConfirmDestructive {
			return adapter.NewValidationError("migrate", "drop_and_create is irreversible and requires ConfirmDestructive")
		}
		return d.dropAndCreate(ctx, decision)
	case StrategyManual:
		if opts.Callback == nil {
			return adapter.NewValidationError("migrate", "manual_migration requires a callback")
		}
		if err := opts.Callback(d); err != nil {
			return fmt.Errorf("manual migration for schema %s aborted: %w", d.schema.Name, err)
		}
		return d.SaveVersionInfo(ctx, "migrated", map[string]interface{}{
			"strategy": string(StrategyManual),
			"from":     decision.Persisted,
		})
	default:
		return adapter.NewValidationError("migrate", fmt.Sprintf("unknown migration strategy %q", opts.Strategy))
	}
}

// backupAndRecreate reads and externalizes every table before the first
// drop, then rebuilds the schema at the declared version.
func (d *DAO) backupAndRecreate(ctx context.Context, w io.Writer, decision VersionDecision) error {
	if w == nil {
		return adapter.NewValidationError("migrate", "backup_and_recreate requires a backup writer")
	}

	order, _ := d.schema.ResolveOrder(d.userEntityNames())

	backup := Backup{
		Schema:  d.schema.Name,
		Version: decision.Persisted,
		TakenAt: time.Now().UTC(),
		Tables:  make(map[string][]adapter.Record, len(order)),
	}
	for _, entity := range order {
		exists, err := d.TableExists(ctx, entity)
		if err != nil {
			return err
		}
		if !exists {
			backup.Tables[entity] = []adapter.Record{}
			continue
		}
		records, err := d.Find(ctx, entity, nil, nil)
		if err != nil {
			return err
		}
		backup.Tables[entity] = records
	}

	// The backup must be fully externalized before anything is dropped.
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("externalize backup for schema %s: %w", d.schema.Name, err)
	}

	if err := d.recreateTables(ctx, order); err != nil {
		return err
	}
	return d.SaveVersionInfo(ctx, "migrated", map[string]interface{}{
		"strategy": string(StrategyBackupAndRecreate),
		"from":     decision.Persisted,
	})
}

// dropAndCreate rebuilds the schema with no backup.
func (d *DAO) dropAndCreate(ctx context.Context, decision VersionDecision) error {
	order, _ := d.schema.ResolveOrder(d.userEntityNames())
	if err := d.recreateTables(ctx, order); err != nil {
		return err
	}
	return d.SaveVersionInfo(ctx, "migrated", map[string]interface{}{
		"strategy": string(StrategyDropAndCreate),
		"from":     decision.Persisted,
	})
}

// recreateTables drops in reverse dependency order and recreates in
// dependency order, indexes included.
func (d *DAO) recreateTables(ctx context.Context, order []string) error {
	return d.withRetry(ctx, "recreate_tables", func(conn adapter.Connection) error {
		ops := conn.SchemaOperations()

		for i := len(order) - 1; i >= 0; i-- {
			if err := ops.DropTable(ctx, order[i]); err != nil {
				return err
			}
			d.log.Infof("schema %s: dropped table %s", d.schema.Name, order[i])
		}
		for _, entityName := range order {
			if err := ops.CreateTable(ctx, entityName); err != nil {
				return err
			}
			entity, _ := d.schema.Entity(entityName)
			for _, index := range entity.Indexes {
				if err := ops.CreateIndex(ctx, entityName, index); err != nil {
					return err
				}
			}
			d.log.Infof("schema %s: recreated table %s", d.schema.Name, entityName)
		}
		return nil
	})
}

// userEntityNames lists declared entities without the version bookkeeping
// table, which migrations must never drop.
func (d *DAO) userEntityNames() []string {
	names := make([]string, 0, len(d.schema.Entities))
	for _, e := range d.schema.Entities {
		if e.Name == VersionTable {
			continue
		}
		names = append(names, e.Name)
	}
	return names
}
