package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// DeploymentStatus represents a state in the deployment state machine
type DeploymentStatus string

const (
	DeploymentStatusPending        DeploymentStatus = "pending"
	DeploymentStatusValidating     DeploymentStatus = "validating"
	DeploymentStatusBlocked        DeploymentStatus = "blocked"
	DeploymentStatusBackingUp      DeploymentStatus = "backing_up"
	DeploymentStatusDeploying      DeploymentStatus = "deploying"
	DeploymentStatusVerifying      DeploymentStatus = "verifying"
	DeploymentStatusMonitoring     DeploymentStatus = "monitoring"
	DeploymentStatusCompleted      DeploymentStatus = "completed"
	DeploymentStatusCompletedWarn  DeploymentStatus = "completed_with_warnings"
	DeploymentStatusFailed         DeploymentStatus = "failed"
	DeploymentStatusCancelled      DeploymentStatus = "cancelled"
	DeploymentStatusRollingBack    DeploymentStatus = "rolling_back"
	DeploymentStatusRolledBack     DeploymentStatus = "rolled_back"
	DeploymentStatusRollbackFailed DeploymentStatus = "rollback_failed"
)

// IsTerminal reports whether the status admits no further transitions
func (s DeploymentStatus) IsTerminal() bool {
	switch s {
	case DeploymentStatusBlocked, DeploymentStatusCompleted, DeploymentStatusCompletedWarn,
		DeploymentStatusFailed, DeploymentStatusCancelled, DeploymentStatusRolledBack,
		DeploymentStatusRollbackFailed:
		return true
	}
	return false
}

// validTransitions lists every legal edge in the state machine. Cancelled is
// additionally reachable from any non-terminal state.
var validTransitions = map[DeploymentStatus][]DeploymentStatus{
	DeploymentStatusPending:     {DeploymentStatusValidating},
	DeploymentStatusValidating:  {DeploymentStatusBlocked, DeploymentStatusBackingUp, DeploymentStatusFailed},
	DeploymentStatusBackingUp:   {DeploymentStatusDeploying, DeploymentStatusFailed},
	DeploymentStatusDeploying:   {DeploymentStatusVerifying, DeploymentStatusFailed, DeploymentStatusRollingBack},
	DeploymentStatusVerifying:   {DeploymentStatusMonitoring, DeploymentStatusRollingBack},
	DeploymentStatusMonitoring:  {DeploymentStatusCompleted, DeploymentStatusCompletedWarn, DeploymentStatusRollingBack},
	DeploymentStatusRollingBack: {DeploymentStatusRolledBack, DeploymentStatusRollbackFailed},
}

// CanTransitionTo reports whether moving from s to next is a legal edge
func (s DeploymentStatus) CanTransitionTo(next DeploymentStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == DeploymentStatusCancelled {
		return true
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AssetResult records the outcome of one asset mutation or restoration
type AssetResult struct {
	AssetKey  string    `json:"assetKey"`
	AppliedAt time.Time `json:"appliedAt"`
	Error     string    `json:"error,omitempty"`
}

// AssetResults custom type for JSON storage
type AssetResults []AssetResult

func (a AssetResults) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *AssetResults) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, a)
}

// LogLevel for deployment-scoped log entries
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry is one timestamped line in a deployment's log
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   LogLevel  `json:"level"`
	Message string    `json:"message"`
}

// LogEntries custom type for JSON storage
type LogEntries []LogEntry

func (l LogEntries) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *LogEntries) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, l)
}

// Deployment is the aggregate root of one deployment attempt. It is owned by
// the orchestrator goroutine for its lifetime and read-only once terminal.
type Deployment struct {
	ID             string           `json:"id" gorm:"primaryKey;type:uuid"`
	PatchID        string           `json:"patchId" gorm:"type:uuid;not null;index"`
	ConnectionID   string           `json:"connectionId" gorm:"type:uuid;not null;index"`
	UserID         string           `json:"userId" gorm:"type:uuid;index"`
	SiteURL        string           `json:"siteUrl" gorm:"not null;index"`
	Status         DeploymentStatus `json:"status" gorm:"type:varchar(30);not null;index"`
	RiskLevel      string           `json:"riskLevel" gorm:"type:varchar(10)"`
	DeployedAssets AssetResults     `json:"deployedAssets" gorm:"type:jsonb"`
	FailedAssets   AssetResults     `json:"failedAssets" gorm:"type:jsonb"`
	Logs           LogEntries       `json:"logs" gorm:"type:jsonb"`
	WarningSamples int              `json:"warningSamples" gorm:"default:0"`
	StartTime      time.Time        `json:"startTime"`
	EndTime        *time.Time       `json:"endTime"`
	RollbackID     *string          `json:"rollbackId" gorm:"type:uuid"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt   `json:"-" gorm:"index"`
}

// AppendLog adds a timestamped entry to the deployment's log
func (d *Deployment) AppendLog(level LogLevel, message string) {
	d.Logs = append(d.Logs, LogEntry{
		Time:    time.Now().UTC(),
		Level:   level,
		Message: message,
	})
}
