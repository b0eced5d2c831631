package dto

import "github.com/accessdeploy/models"

// ConnectionRequest registers a site connection. Credentials are write-only:
// they are stored behind a reference and never returned by any endpoint.
type ConnectionRequest struct {
	SiteURL     string            `json:"siteUrl" binding:"required,url"`
	Platform    models.Platform   `json:"platform" binding:"required"`
	Endpoint    string            `json:"endpoint" binding:"required"`
	Credentials map[string]string `json:"credentials" binding:"required"`
}

// PatchRequest pushes a patch package produced by the analysis step
type PatchRequest struct {
	TargetPlatform models.Platform    `json:"targetPlatform" binding:"required"`
	SourceScanID   string             `json:"sourceScanId" binding:"required"`
	Changes        models.FileChanges `json:"changes" binding:"required,min=1"`
	RiskScore      float64            `json:"riskScore" binding:"gte=0,lte=10"`
}
