package repositories

import (
	"github.com/accessdeploy/database"
	"github.com/accessdeploy/models"
)

// RollbackRepository handles database operations for rollback records
type RollbackRepository struct{}

// NewRollbackRepository creates a new rollback repository instance
func NewRollbackRepository() *RollbackRepository {
	return &RollbackRepository{}
}

// Create inserts a new rollback record into the database
func (r *RollbackRepository) Create(record models.RollbackRecord) (models.RollbackRecord, error) {
	result := database.DB.Create(&record)
	return record, result.Error
}

// FindByDeploymentID retrieves the latest rollback record for a deployment
func (r *RollbackRepository) FindByDeploymentID(deploymentID string) (models.RollbackRecord, error) {
	var record models.RollbackRecord
	result := database.DB.Where("deployment_id = ?", deploymentID).
		Order("created_at DESC").
		First(&record)
	return record, result.Error
}
