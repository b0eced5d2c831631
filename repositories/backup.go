package repositories

import (
	"github.com/accessdeploy/database"
	"github.com/accessdeploy/models"
)

// BackupRepository handles database operations for backups
type BackupRepository struct{}

// NewBackupRepository creates a new backup repository instance
func NewBackupRepository() *BackupRepository {
	return &BackupRepository{}
}

// Create inserts a new backup into the database
func (r *BackupRepository) Create(backup models.Backup) (models.Backup, error) {
	result := database.DB.Create(&backup)
	return backup, result.Error
}

// FindByDeploymentID retrieves all backups for a deployment
func (r *BackupRepository) FindByDeploymentID(deploymentID string) ([]models.Backup, error) {
	var backups []models.Backup
	result := database.DB.Where("deployment_id = ?", deploymentID).
		Order("created_at ASC").
		Find(&backups)
	return backups, result.Error
}

// DeleteByDeploymentID removes all backups for a deployment. Used by the
// retention sweep once a terminal deployment ages out.
func (r *BackupRepository) DeleteByDeploymentID(deploymentID string) error {
	return database.DB.Where("deployment_id = ?", deploymentID).
		Delete(&models.Backup{}).Error
}
