package dao

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnidao/omnidao/pkg/adapter"
)

func seedOutdatedSchema(fake *fakeAdapter) {
	fake.store.seed(VersionTable, adapter.Record{
		"schema_name": "app",
		"version":     "0.9.0",
		"status":      "created",
	})
	fake.store.seed("users", adapter.Record{"id": int64(1), "email": "a@x.com", "name": "A"})
	fake.store.seed("posts", adapter.Record{"id": int64(1), "user_id": int64(1), "title": "hello"})
}

func TestMigrateCreateNewSyncsAndRecordsVersion(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)

	require.NoError(t, d.Migrate(context.Background(), MigrationOptions{}))

	assert.True(t, fake.store.tableCreated("users"))
	assert.True(t, fake.store.tableCreated("posts"))

	version, err := d.PersistedVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)
}

func TestMigrateNoActionWhenVersionsMatch(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)

	fake.store.seed(VersionTable, adapter.Record{
		"schema_name": "app",
		"version":     "1.0.0",
		"status":      "created",
	})
	fake.store.seed("users", adapter.Record{"id": int64(1), "email": "kept@x.com"})

	require.NoError(t, d.Migrate(context.Background(), MigrationOptions{Strategy: StrategyDropAndCreate}))

	assert.Len(t, fake.store.rows("users"), 1)
}

func TestMigrateRefusesVersionConflict(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)

	fake.store.seed(VersionTable, adapter.Record{
		"schema_name": "app",
		"version":     "2.0.0",
		"status":      "created",
	})

	err = d.Migrate(context.Background(), MigrationOptions{Strategy: StrategyDropAndCreate, ConfirmDestructive: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to move backwards")
}

func TestMigrateBackupAndRecreateExternalizesBeforeDropping(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)
	seedOutdatedSchema(fake)

	var buf bytes.Buffer
	require.NoError(t, d.Migrate(context.Background(), MigrationOptions{
		Strategy:     StrategyBackupAndRecreate,
		BackupWriter: &buf,
	}))

	var backup Backup
	require.NoError(t, json.Unmarshal(buf.Bytes(), &backup))
	assert.Equal(t, "app", backup.Schema)
	assert.Equal(t, "0.9.0", backup.Version)
	require.Len(t, backup.Tables["users"], 1)
	assert.Equal(t, "a@x.com", backup.Tables["users"][0]["email"])
	require.Len(t, backup.Tables["posts"], 1)

	// Tables were recreated empty, the bookkeeping row survived.
	assert.Empty(t, fake.store.rows("users"))
	assert.Empty(t, fake.store.rows("posts"))
	assert.True(t, fake.store.tableCreated("users"))

	version, err := d.PersistedVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)
}

func TestMigrateBackupRequiresWriter(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)
	seedOutdatedSchema(fake)

	err = d.Migrate(context.Background(), MigrationOptions{Strategy: StrategyBackupAndRecreate})
	assert.ErrorIs(t, err, adapter.ErrValidation)
	assert.Len(t, fake.store.rows("users"), 1)
}

func TestMigrateDropAndCreateRequiresConfirmation(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)
	seedOutdatedSchema(fake)

	err = d.Migrate(context.Background(), MigrationOptions{Strategy: StrategyDropAndCreate})
	assert.ErrorIs(t, err, adapter.ErrValidation)
	assert.Len(t, fake.store.rows("users"), 1)

	require.NoError(t, d.Migrate(context.Background(), MigrationOptions{
		Strategy:           StrategyDropAndCreate,
		ConfirmDestructive: true,
	}))
	assert.Empty(t, fake.store.rows("users"))

	version, err := d.PersistedVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)
}

func TestMigrateManualRunsCallback(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)
	seedOutdatedSchema(fake)

	var migrated *DAO
	require.NoError(t, d.Migrate(context.Background(), MigrationOptions{
		Strategy: StrategyManual,
		Callback: func(dao *DAO) error {
			migrated = dao
			return dao.AddField(context.Background(), "users", testUserSchema().Entities[0].Fields[2])
		},
	}))
	assert.Same(t, d, migrated)

	version, err := d.PersistedVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)
}

func TestMigrateManualAbortsOnCallbackError(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)
	seedOutdatedSchema(fake)

	boom := errors.New("backfill failed")
	err = d.Migrate(context.Background(), MigrationOptions{
		Strategy: StrategyManual,
		Callback: func(*DAO) error { return boom },
	})
	require.ErrorIs(t, err, boom)

	// The persisted version is untouched after an aborted migration.
	version, verr := d.PersistedVersion(context.Background())
	require.NoError(t, verr)
	assert.Equal(t, "0.9.0", version)
}

func TestMigrateManualRequiresCallback(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)
	seedOutdatedSchema(fake)

	err = d.Migrate(context.Background(), MigrationOptions{Strategy: StrategyManual})
	assert.ErrorIs(t, err, adapter.ErrValidation)
}

func TestMigrateRejectsUnknownStrategy(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)
	seedOutdatedSchema(fake)

	err = d.Migrate(context.Background(), MigrationOptions{Strategy: "yolo"})
	assert.ErrorIs(t, err, adapter.ErrValidation)
}
