package repositories

import (
	"time"

	"github.com/accessdeploy/database"
	"github.com/accessdeploy/models"
)

// activeStatuses are the non-terminal states counted for admission and
// conflict detection.
var activeStatuses = []models.DeploymentStatus{
	models.DeploymentStatusPending,
	models.DeploymentStatusValidating,
	models.DeploymentStatusBackingUp,
	models.DeploymentStatusDeploying,
	models.DeploymentStatusVerifying,
	models.DeploymentStatusMonitoring,
	models.DeploymentStatusRollingBack,
}

// DeploymentRepository handles database operations for deployments
type DeploymentRepository struct{}

// NewDeploymentRepository creates a new deployment repository instance
func NewDeploymentRepository() *DeploymentRepository {
	return &DeploymentRepository{}
}

// Create inserts a new deployment into the database
func (r *DeploymentRepository) Create(deployment models.Deployment) (models.Deployment, error) {
	result := database.DB.Create(&deployment)
	return deployment, result.Error
}

// FindByID retrieves a deployment by its ID
func (r *DeploymentRepository) FindByID(id string) (models.Deployment, error) {
	var deployment models.Deployment
	result := database.DB.First(&deployment, "id = ?", id)
	return deployment, result.Error
}

// Save persists the full deployment record
func (r *DeploymentRepository) Save(deployment models.Deployment) error {
	return database.DB.Save(&deployment).Error
}

// UpdateStatus updates the status of a deployment
func (r *DeploymentRepository) UpdateStatus(id string, status models.DeploymentStatus) error {
	var updates = map[string]interface{}{
		"status": status,
	}

	// Terminal states close out the record
	if status.IsTerminal() {
		now := time.Now()
		updates["end_time"] = &now
	}

	result := database.DB.Model(&models.Deployment{}).
		Where("id = ?", id).
		Updates(updates)

	return result.Error
}

// CountActive counts deployments in any non-terminal state, excluding one ID
func (r *DeploymentRepository) CountActive(excludeID string) (int64, error) {
	var count int64
	result := database.DB.Model(&models.Deployment{}).
		Where("status IN ? AND id <> ?", activeStatuses, excludeID).
		Count(&count)
	return count, result.Error
}

// CountActiveBySiteURL counts non-terminal deployments targeting a site,
// excluding one ID
func (r *DeploymentRepository) CountActiveBySiteURL(siteURL, excludeID string) (int64, error) {
	var count int64
	result := database.DB.Model(&models.Deployment{}).
		Where("site_url = ? AND status IN ? AND id <> ?", siteURL, activeStatuses, excludeID).
		Count(&count)
	return count, result.Error
}

// FindActive retrieves all deployments in a non-terminal state
func (r *DeploymentRepository) FindActive() ([]models.Deployment, error) {
	var deployments []models.Deployment
	result := database.DB.Where("status IN ?", activeStatuses).
		Order("created_at DESC").
		Find(&deployments)
	return deployments, result.Error
}

// FindByUserID retrieves a user's deployment history, newest first
func (r *DeploymentRepository) FindByUserID(userID string, limit int) ([]models.Deployment, error) {
	var deployments []models.Deployment
	result := database.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deployments)
	return deployments, result.Error
}

// FindTerminalBefore retrieves terminal deployments that ended before cutoff
func (r *DeploymentRepository) FindTerminalBefore(cutoff time.Time) ([]models.Deployment, error) {
	var deployments []models.Deployment
	result := database.DB.Where("status NOT IN ? AND end_time < ?", activeStatuses, cutoff).
		Find(&deployments)
	return deployments, result.Error
}
