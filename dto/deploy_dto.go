package dto

import (
	"time"

	"github.com/accessdeploy/models"
)

// DeployRequest starts a deployment of a patch package against a site.
// Either PatchID or ScanID must be set; ScanID resolves to the latest patch
// package produced for that scan.
type DeployRequest struct {
	PatchID string `json:"patchId"`
	ScanID  string `json:"scanId"`
	SiteID  string `json:"siteId" binding:"required"`
}

// DeployResponse acknowledges an accepted deployment. Risk is assessed
// asynchronously during validation and surfaces on the deployment snapshot.
type DeployResponse struct {
	DeploymentID string `json:"deploymentId"`
	Status       string `json:"status"`
	Message      string `json:"message"`
	CreatedAt    string `json:"createdAt"`
}

// DeploymentResponse is an immutable snapshot of a deployment record
type DeploymentResponse struct {
	ID             string              `json:"id"`
	PatchID        string              `json:"patchId"`
	ConnectionID   string              `json:"connectionId"`
	SiteURL        string              `json:"siteUrl"`
	Status         string              `json:"status"`
	RiskLevel      string              `json:"riskLevel,omitempty"`
	DeployedAssets models.AssetResults `json:"deployedAssets"`
	FailedAssets   models.AssetResults `json:"failedAssets"`
	Logs           models.LogEntries   `json:"logs"`
	StartTime      time.Time           `json:"startTime"`
	EndTime        *time.Time          `json:"endTime,omitempty"`
	RollbackID     *string             `json:"rollbackId,omitempty"`
}

// NewDeploymentResponseFromModel creates a snapshot from a models.Deployment.
// Slices are copied so callers never alias the orchestrator's live record.
func NewDeploymentResponseFromModel(deployment models.Deployment) DeploymentResponse {
	resp := DeploymentResponse{
		ID:           deployment.ID,
		PatchID:      deployment.PatchID,
		ConnectionID: deployment.ConnectionID,
		SiteURL:      deployment.SiteURL,
		Status:       string(deployment.Status),
		RiskLevel:    deployment.RiskLevel,
		StartTime:    deployment.StartTime,
		EndTime:      deployment.EndTime,
		RollbackID:   deployment.RollbackID,
	}
	resp.DeployedAssets = append(models.AssetResults{}, deployment.DeployedAssets...)
	resp.FailedAssets = append(models.AssetResults{}, deployment.FailedAssets...)
	resp.Logs = append(models.LogEntries{}, deployment.Logs...)
	return resp
}

// ValidationResult is the safety validator's go/no-go verdict
type ValidationResult struct {
	Safe      bool     `json:"safe"`
	Blockers  []string `json:"blockers"`
	RiskScore float64  `json:"riskScore"`
	RiskLevel string   `json:"riskLevel"`
}

// RollbackRequest triggers a manual rollback
type RollbackRequest struct {
	Reason string `json:"reason"`
}

// StatusEvent is one incremental update delivered to deployment subscribers
type StatusEvent struct {
	DeploymentID string               `json:"deploymentId"`
	Status       string               `json:"status"`
	Terminal     bool                 `json:"terminal"`
	Log          *models.LogEntry     `json:"log,omitempty"`
	Sample       *models.HealthSample `json:"sample,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}
