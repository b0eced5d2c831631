package models

import "time"

// HealthStatus classifies one health sample
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusCritical HealthStatus = "critical"
)

// HealthSample is one point-in-time automated assessment of site well-being.
// Sub-scores and the overall score are all 0-100.
type HealthSample struct {
	ID                 string       `json:"id" gorm:"primaryKey;type:uuid"`
	DeploymentID       string       `json:"deploymentId" gorm:"type:uuid;not null;index"`
	Timestamp          time.Time    `json:"timestamp" gorm:"not null;index"`
	ConnectivityScore  float64      `json:"connectivityScore"`
	PerformanceScore   float64      `json:"performanceScore"`
	FunctionalityScore float64      `json:"functionalityScore"`
	OverallScore       float64      `json:"overallScore"`
	Status             HealthStatus `json:"status" gorm:"type:varchar(10);not null"`
	Detail             string       `json:"detail,omitempty"`
}
