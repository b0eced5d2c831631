package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/accessdeploy/lib/transport"
	"github.com/accessdeploy/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRollbackFixture() (*RollbackService, *fakeAdapter, *memBackups, *memRollbacks) {
	adapter := newFakeAdapter()
	registry := transport.NewRegistry()
	registry.Register(models.PlatformCMSAPI, adapter)
	backups := &memBackups{}
	records := &memRollbacks{}
	connections := &memConnections{
		credentials: map[string]models.CredentialData{"cred-1": {"token": "secret"}},
	}
	return NewRollbackService(registry, connections, backups, records), adapter, backups, records
}

func deployedAsset(key string) models.AssetResult {
	return models.AssetResult{AssetKey: key, AppliedAt: time.Now().UTC()}
}

func storedBackup(t *testing.T, backups *memBackups, deploymentID, key string, content *string) {
	t.Helper()
	_, err := backups.Create(models.Backup{
		ID:              key + "-backup",
		DeploymentID:    deploymentID,
		AssetKey:        key,
		OriginalContent: content,
	})
	require.NoError(t, err)
}

func TestExecuteRestoresMutatedAssetsOnly(t *testing.T) {
	svc, adapter, backups, _ := newRollbackFixture()

	original := "body { color: red; }"
	storedBackup(t, backups, "dep-1", "assets/theme.css", &original)
	storedBackup(t, backups, "dep-1", "assets/untouched.css", &original)
	storedBackup(t, backups, "dep-1", "assets/new.css", nil)

	adapter.remote["assets/theme.css"] = "body { color: #222; }"
	adapter.remote["assets/new.css"] = "freshly created"

	deployment := models.Deployment{
		ID:     "dep-1",
		Status: models.DeploymentStatusRollingBack,
		DeployedAssets: models.AssetResults{
			deployedAsset("assets/theme.css"),
			deployedAsset("assets/new.css"),
		},
		// assets/untouched.css failed to apply, so it must not be restored
		FailedAssets: models.AssetResults{
			{AssetKey: "assets/untouched.css", Error: "apply failed"},
		},
	}

	record, err := svc.Execute(context.Background(), deployment, cmsConnection(), models.RollbackTriggerAutomatic, "health_check_failures")
	require.NoError(t, err)
	assert.True(t, record.Success)
	assert.False(t, record.RequiresManualIntervention)
	assert.Equal(t, "health_check_failures", record.Reason)
	assert.Len(t, record.RestoredAssets, 2)

	assert.Equal(t, original, adapter.remote["assets/theme.css"])
	_, exists := adapter.remote["assets/new.css"]
	assert.False(t, exists, "asset absent before deployment must be deleted")
	assert.NotContains(t, adapter.restored(), "assets/untouched.css")
}

func TestExecuteCollectsRestoreFailures(t *testing.T) {
	svc, adapter, backups, _ := newRollbackFixture()

	original := "original"
	storedBackup(t, backups, "dep-1", "assets/a.css", &original)
	storedBackup(t, backups, "dep-1", "assets/b.css", &original)
	adapter.failRestore["assets/b.css"] = true

	deployment := models.Deployment{
		ID:     "dep-1",
		Status: models.DeploymentStatusRollingBack,
		DeployedAssets: models.AssetResults{
			deployedAsset("assets/a.css"),
			deployedAsset("assets/b.css"),
		},
	}

	record, err := svc.Execute(context.Background(), deployment, cmsConnection(), models.RollbackTriggerManual, "operator request")
	require.NoError(t, err)
	assert.False(t, record.Success)
	assert.True(t, record.RequiresManualIntervention)
	assert.Len(t, record.RestoredAssets, 1)

	// The failure detail is preserved on the record
	var notes map[string][]string
	require.NoError(t, json.Unmarshal(record.Notes, &notes))
	require.Len(t, notes["failures"], 1)
	assert.Contains(t, notes["failures"][0], "assets/b.css")
}

func TestExecuteIsIdempotentAfterRollback(t *testing.T) {
	svc, adapter, backups, records := newRollbackFixture()

	original := "original"
	storedBackup(t, backups, "dep-1", "assets/a.css", &original)

	deployment := models.Deployment{
		ID:             "dep-1",
		Status:         models.DeploymentStatusRollingBack,
		DeployedAssets: models.AssetResults{deployedAsset("assets/a.css")},
	}
	first, err := svc.Execute(context.Background(), deployment, cmsConnection(), models.RollbackTriggerAutomatic, "health_check_failures")
	require.NoError(t, err)
	require.Equal(t, 1, records.count())
	restoredOnce := len(adapter.restored())

	// Once rolled back, executing again returns the prior record and makes
	// zero transport calls
	deployment.Status = models.DeploymentStatusRolledBack
	second, err := svc.Execute(context.Background(), deployment, cmsConnection(), models.RollbackTriggerManual, "asked again")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, records.count())
	assert.Len(t, adapter.restored(), restoredOnce)
}

func TestExecuteWithNothingMutated(t *testing.T) {
	svc, adapter, backups, _ := newRollbackFixture()

	original := "original"
	storedBackup(t, backups, "dep-1", "assets/a.css", &original)

	deployment := models.Deployment{ID: "dep-1", Status: models.DeploymentStatusRollingBack}
	record, err := svc.Execute(context.Background(), deployment, cmsConnection(), models.RollbackTriggerAutomatic, "verification_critical")
	require.NoError(t, err)
	assert.True(t, record.Success)
	assert.Empty(t, record.RestoredAssets)
	assert.Empty(t, adapter.restored())
}
