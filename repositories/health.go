package repositories

import (
	"github.com/accessdeploy/database"
	"github.com/accessdeploy/models"
)

// HealthRepository handles database operations for health samples
type HealthRepository struct{}

// NewHealthRepository creates a new health repository instance
func NewHealthRepository() *HealthRepository {
	return &HealthRepository{}
}

// Create inserts a new health sample into the database
func (r *HealthRepository) Create(sample models.HealthSample) (models.HealthSample, error) {
	result := database.DB.Create(&sample)
	return sample, result.Error
}

// FindRecent retrieves the most recent samples for a deployment, newest first
func (r *HealthRepository) FindRecent(deploymentID string, limit int) ([]models.HealthSample, error) {
	var samples []models.HealthSample
	result := database.DB.Where("deployment_id = ?", deploymentID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&samples)
	return samples, result.Error
}

// DeleteByDeploymentID removes all samples for a deployment
func (r *HealthRepository) DeleteByDeploymentID(deploymentID string) error {
	return database.DB.Where("deployment_id = ?", deploymentID).
		Delete(&models.HealthSample{}).Error
}
