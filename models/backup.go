package models

import "time"

// Backup is a durable pre-mutation snapshot of one asset. A nil
// OriginalContent means the asset did not exist remotely, so restoration
// deletes instead of overwriting. Backups are created once, read many times
// by the rollback executor, and never mutated.
type Backup struct {
	ID              string    `json:"id" gorm:"primaryKey;type:uuid"`
	DeploymentID    string    `json:"deploymentId" gorm:"type:uuid;not null;uniqueIndex:idx_backup_deployment_asset"`
	AssetKey        string    `json:"assetKey" gorm:"not null;uniqueIndex:idx_backup_deployment_asset"`
	OriginalContent *string   `json:"-" gorm:"type:text"`
	Checksum        string    `json:"checksum" gorm:"not null"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Absent reports whether the asset did not exist when the backup was taken
func (b *Backup) Absent() bool {
	return b.OriginalContent == nil
}
