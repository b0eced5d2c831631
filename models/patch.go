package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ChangeKind describes how a FileChange mutates its target asset
type ChangeKind string

const (
	ChangeKindCreate ChangeKind = "create"
	ChangeKindModify ChangeKind = "modify"
	ChangeKindDelete ChangeKind = "delete"
)

// FileChange is a single proposed asset mutation inside a patch package
type FileChange struct {
	Path     string     `json:"path"`
	Selector string     `json:"selector,omitempty"`
	Kind     ChangeKind `json:"changeKind"`
	Before   string     `json:"before,omitempty"`
	After    string     `json:"after,omitempty"`
}

// FileChanges custom type for JSON storage
type FileChanges []FileChange

func (f FileChanges) Value() (driver.Value, error) {
	return json.Marshal(f)
}

func (f *FileChanges) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, f)
}

// PatchPackage is an immutable set of proposed accessibility fixes for one
// site, produced by the external analysis step. The engine never mutates it.
type PatchPackage struct {
	ID             string      `json:"id" gorm:"primaryKey;type:uuid"`
	TargetPlatform Platform    `json:"targetPlatform" gorm:"type:varchar(20);not null"`
	SourceScanID   string      `json:"sourceScanId" gorm:"not null;index"`
	Changes        FileChanges `json:"changes" gorm:"type:jsonb;not null"`
	RiskScore      float64     `json:"riskScore" gorm:"not null;default:0"` // 0-10, higher = riskier
	CreatedAt      time.Time   `json:"createdAt"`
}
