package repositories

import (
	"github.com/accessdeploy/database"
	"github.com/accessdeploy/models"
)

// PatchRepository handles database operations for patch packages
type PatchRepository struct{}

// NewPatchRepository creates a new patch repository instance
func NewPatchRepository() *PatchRepository {
	return &PatchRepository{}
}

// Create inserts a new patch package into the database
func (r *PatchRepository) Create(patch models.PatchPackage) (models.PatchPackage, error) {
	result := database.DB.Create(&patch)
	return patch, result.Error
}

// FindByID retrieves a patch package by its ID
func (r *PatchRepository) FindByID(id string) (models.PatchPackage, error) {
	var patch models.PatchPackage
	result := database.DB.First(&patch, "id = ?", id)
	return patch, result.Error
}

// FindBySourceScanID retrieves the latest patch package for a scan
func (r *PatchRepository) FindBySourceScanID(scanID string) (models.PatchPackage, error) {
	var patch models.PatchPackage
	result := database.DB.Where("source_scan_id = ?", scanID).
		Order("created_at DESC").
		First(&patch)
	return patch, result.Error
}
