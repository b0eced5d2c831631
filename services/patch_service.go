package services

import (
	"github.com/accessdeploy/dto"
	"github.com/accessdeploy/models"
	"github.com/accessdeploy/repositories"
	"github.com/google/uuid"
)

// PatchService is the intake side of the patch source: the external analysis
// step pushes packages here, the orchestrator consumes them read-only.
type PatchService struct {
	patches *repositories.PatchRepository
}

// NewPatchService creates a new patch service
func NewPatchService() *PatchService {
	return &PatchService{patches: repositories.NewPatchRepository()}
}

// Create stores a patch package produced by the analysis step
func (s *PatchService) Create(request dto.PatchRequest) (models.PatchPackage, error) {
	patch := models.PatchPackage{
		ID:             uuid.NewString(),
		TargetPlatform: request.TargetPlatform,
		SourceScanID:   request.SourceScanID,
		Changes:        request.Changes,
		RiskScore:      request.RiskScore,
	}
	return s.patches.Create(patch)
}

// Get retrieves a patch package by ID
func (s *PatchService) Get(id string) (models.PatchPackage, error) {
	return s.patches.FindByID(id)
}
