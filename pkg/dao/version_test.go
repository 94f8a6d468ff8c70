package dao

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnidao/omnidao/pkg/adapter"
)

func TestCheckCompatibilityDecisions(t *testing.T) {
	tests := []struct {
		name       string
		persisted  string
		declared   string
		action     VersionAction
		compatible bool
	}{
		{"no persisted record", "", "1.0.0", ActionCreateNew, true},
		{"equal versions", "1.2.0", "1.2.0", ActionNoAction, true},
		{"equal with padding", "1.2", "1.2.0", ActionNoAction, true},
		{"persisted older", "1.0.0", "2.0.0", ActionMigrationRequired, false},
		{"persisted newer", "2.1.0", "2.0.0", ActionVersionConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := CheckCompatibility(tt.persisted, tt.declared)
			assert.Equal(t, tt.action, decision.Action)
			assert.Equal(t, tt.compatible, decision.Compatible)
			assert.Equal(t, tt.declared, decision.Declared)
			assert.NotEmpty(t, decision.Explanation)
		})
	}
}

func TestPersistedVersionEmptyWhenNoRecord(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)

	version, err := d.PersistedVersion(context.Background())
	require.NoError(t, err)
	assert.Empty(t, version)

	// The bookkeeping table is created lazily on first access.
	assert.True(t, fake.store.tableCreated(VersionTable))
}

func TestCheckVersionAfterSave(t *testing.T) {
	c, _ := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)
	ctx := context.Background()

	decision, err := d.CheckVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionCreateNew, decision.Action)

	require.NoError(t, d.SaveVersionInfo(ctx, "created", nil))

	decision, err = d.CheckVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionNoAction, decision.Action)
	assert.Equal(t, "1.0.0", decision.Persisted)
}

func TestSaveVersionInfoUpdatesWithoutClobberingCreatedAt(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.SaveVersionInfo(ctx, "created", nil))

	record, err := d.FindByID(ctx, VersionTable, "app")
	require.NoError(t, err)
	createdAt, ok := record["created_at"].(time.Time)
	require.True(t, ok)

	require.NoError(t, d.SaveVersionInfo(ctx, "migrated", map[string]interface{}{"from": "0.9.0"}))

	record, err = d.FindByID(ctx, VersionTable, "app")
	require.NoError(t, err)
	assert.Equal(t, "migrated", record["status"])
	assert.Equal(t, createdAt, record["created_at"])
	assert.Contains(t, record["metadata"], "0.9.0")

	// Still exactly one bookkeeping row for this schema.
	assert.Len(t, fake.store.rows(VersionTable), 1)
}

func TestCheckVersionDetectsOlderPersisted(t *testing.T) {
	c, fake := newTestContext()
	d, err := mustDAO(c, testUserSchema())
	require.NoError(t, err)

	fake.store.seed(VersionTable, adapter.Record{
		"schema_name": "app",
		"version":     "0.5.0",
		"status":      "created",
	})

	decision, err := d.CheckVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionMigrationRequired, decision.Action)
	assert.Equal(t, "0.5.0", decision.Persisted)
	assert.Equal(t, "1.0.0", decision.Declared)
}
