package models

import (
	"time"

	"gorm.io/datatypes"
)

// RollbackTrigger distinguishes operator-initiated from engine-initiated rollbacks
type RollbackTrigger string

const (
	RollbackTriggerManual    RollbackTrigger = "manual"
	RollbackTriggerAutomatic RollbackTrigger = "automatic"
)

// RollbackRecord is the durable outcome of one rollback attempt
type RollbackRecord struct {
	ID                         string          `json:"id" gorm:"primaryKey;type:uuid"`
	DeploymentID               string          `json:"deploymentId" gorm:"type:uuid;not null;index"`
	Trigger                    RollbackTrigger `json:"trigger" gorm:"type:varchar(10);not null"`
	Reason                     string          `json:"reason" gorm:"not null"`
	RestoredAssets             AssetResults    `json:"restoredAssets" gorm:"type:jsonb"`
	Success                    bool            `json:"success" gorm:"not null"`
	RequiresManualIntervention bool            `json:"requiresManualIntervention" gorm:"not null;default:false"`
	Notes                      datatypes.JSON  `json:"notes,omitempty" gorm:"type:jsonb"`
	CreatedAt                  time.Time       `json:"createdAt"`
}
