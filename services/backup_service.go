package services

import (
	"context"
	"fmt"
	"log"

	"github.com/accessdeploy/lib/transport"
	"github.com/accessdeploy/models"
	"github.com/accessdeploy/utils"
	"github.com/google/uuid"
)

// credentialResolver resolves a credential reference to secret material.
// Results are used for one transport call and discarded.
type credentialResolver interface {
	ResolveCredential(ref string) (models.CredentialData, error)
}

// adapterSource hands out the transport adapter for a platform
type adapterSource interface {
	Get(platform models.Platform) (transport.Adapter, error)
}

// backupStore is the persistence the backup manager needs
type backupStore interface {
	Create(backup models.Backup) (models.Backup, error)
	FindByDeploymentID(deploymentID string) ([]models.Backup, error)
}

// BackupService snapshots every asset a patch will touch before any mutation.
// Snapshotting is all-or-nothing: a single failed capture fails the whole
// set, because partial backup coverage would leave rollback incomplete.
type BackupService struct {
	adapters adapterSource
	creds    credentialResolver
	store    backupStore
}

// NewBackupService creates a backup manager
func NewBackupService(adapters adapterSource, creds credentialResolver, store backupStore) *BackupService {
	return &BackupService{adapters: adapters, creds: creds, store: store}
}

// CreateBackups captures and durably persists one backup per asset the
// changes will touch. Returns an error before any mutation has happened if
// any capture fails; the caller must then fail the deployment with the
// target site untouched. Assets that do not exist remotely are recorded as
// absent so rollback deletes instead of overwriting.
func (s *BackupService) CreateBackups(ctx context.Context, conn models.Connection, deploymentID string, changes []models.FileChange) ([]models.Backup, error) {
	adapter, err := s.adapters.Get(conn.Platform)
	if err != nil {
		return nil, err
	}

	backups := make([]models.Backup, 0, len(changes))
	seen := make(map[string]bool, len(changes))
	for _, change := range changes {
		if seen[change.Path] {
			continue
		}
		seen[change.Path] = true

		creds, err := s.creds.ResolveCredential(conn.CredentialRef)
		if err != nil {
			return nil, fmt.Errorf("resolving credentials: %w", err)
		}

		content, err := adapter.Read(ctx, conn, creds, change.Path)
		if err != nil {
			return nil, fmt.Errorf("capturing backup for %s: %w", change.Path, err)
		}

		backup := models.Backup{
			ID:              uuid.NewString(),
			DeploymentID:    deploymentID,
			AssetKey:        change.Path,
			OriginalContent: content,
		}
		if content != nil {
			backup.Checksum = utils.Checksum(*content)
		} else {
			backup.Checksum = utils.Checksum("")
		}

		// Persist before moving on; a backup that is not durable does not count
		created, err := s.store.Create(backup)
		if err != nil {
			return nil, fmt.Errorf("persisting backup for %s: %w", change.Path, err)
		}
		backups = append(backups, created)
	}

	log.Printf("Captured %d backups for deployment %s", len(backups), deploymentID)
	return backups, nil
}
