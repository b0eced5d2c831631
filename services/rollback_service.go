package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/accessdeploy/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// rollbackStore is the persistence the rollback executor needs
type rollbackStore interface {
	Create(record models.RollbackRecord) (models.RollbackRecord, error)
	FindByDeploymentID(deploymentID string) (models.RollbackRecord, error)
}

// RollbackService replays a deployment's backups through the same transport
// adapter that performed the mutations.
type RollbackService struct {
	adapters adapterSource
	creds    credentialResolver
	backups  backupStore
	records  rollbackStore
}

// NewRollbackService creates a rollback executor
func NewRollbackService(adapters adapterSource, creds credentialResolver, backups backupStore, records rollbackStore) *RollbackService {
	return &RollbackService{
		adapters: adapters,
		creds:    creds,
		backups:  backups,
		records:  records,
	}
}

// Execute restores every mutated asset of the deployment from its backups.
// Idempotent: if the deployment has already been rolled back, the prior
// record is returned and no transport call is made. Restoration failures are
// collected, never silently dropped; any failure marks the record as needing
// manual intervention.
func (s *RollbackService) Execute(ctx context.Context, deployment models.Deployment, conn models.Connection, trigger models.RollbackTrigger, reason string) (models.RollbackRecord, error) {
	// A deployment that already reached rolled_back keeps its original record
	if deployment.Status == models.DeploymentStatusRolledBack {
		prior, err := s.records.FindByDeploymentID(deployment.ID)
		if err == nil {
			return prior, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RollbackRecord{}, err
		}
	}

	adapter, err := s.adapters.Get(conn.Platform)
	if err != nil {
		return models.RollbackRecord{}, err
	}

	backups, err := s.backups.FindByDeploymentID(deployment.ID)
	if err != nil {
		return models.RollbackRecord{}, fmt.Errorf("loading backups: %w", err)
	}

	// Only assets that were actually mutated need restoring
	mutated := make(map[string]bool, len(deployment.DeployedAssets))
	for _, asset := range deployment.DeployedAssets {
		mutated[asset.AssetKey] = true
	}

	record := models.RollbackRecord{
		ID:           uuid.NewString(),
		DeploymentID: deployment.ID,
		Trigger:      trigger,
		Reason:       reason,
	}

	var failures []string
	for _, backup := range backups {
		if !mutated[backup.AssetKey] {
			continue
		}

		creds, err := s.creds.ResolveCredential(conn.CredentialRef)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: resolving credentials: %v", backup.AssetKey, err))
			continue
		}

		result, err := adapter.Restore(ctx, conn, creds, backup)
		if err != nil {
			log.Printf("Restore failed for asset %s (deployment %s): %v", backup.AssetKey, deployment.ID, err)
			failures = append(failures, fmt.Sprintf("%s: %v", backup.AssetKey, err))
			continue
		}
		record.RestoredAssets = append(record.RestoredAssets, result)
	}

	record.Success = len(failures) == 0
	record.RequiresManualIntervention = !record.Success
	if len(failures) > 0 {
		if notes, err := json.Marshal(map[string]interface{}{"failures": failures}); err == nil {
			record.Notes = datatypes.JSON(notes)
		}
	}

	created, err := s.records.Create(record)
	if err != nil {
		return record, fmt.Errorf("persisting rollback record: %w", err)
	}
	return created, nil
}
