package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Platform represents the transport family used to reach a site
type Platform string

const (
	PlatformCMSAPI       Platform = "cms_api"       // content-management REST API
	PlatformFileTransfer Platform = "file_transfer" // SFTP
	PlatformShellSession Platform = "shell_session" // SSH
)

// IsValid checks whether the platform is one the engine can deploy to
func (p Platform) IsValid() bool {
	switch p {
	case PlatformCMSAPI, PlatformFileTransfer, PlatformShellSession:
		return true
	}
	return false
}

// CredentialData holds the secret material behind a credential reference.
// Stored as JSONB and only ever read inside a transport adapter call.
type CredentialData map[string]string

func (c CredentialData) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *CredentialData) Scan(value interface{}) error {
	if value == nil {
		*c = make(map[string]string)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, c)
}

// Credential is the stored secret a Connection refers to by CredentialRef.
// It is never serialized into API responses.
type Credential struct {
	Ref       string         `json:"-" gorm:"primaryKey;type:uuid"`
	Data      CredentialData `json:"-" gorm:"type:jsonb;default:'{}'"`
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
}

// Connection resolves an opaque site identifier to platform, endpoint and
// credential reference. The raw secret never travels with the connection.
type Connection struct {
	ID            string         `json:"id" gorm:"primaryKey;type:uuid"`
	SiteURL       string         `json:"siteUrl" gorm:"not null;index"`
	Platform      Platform       `json:"platform" gorm:"type:varchar(20);not null"`
	Endpoint      string         `json:"endpoint" gorm:"not null"`
	CredentialRef string         `json:"credentialRef" gorm:"type:uuid;not null"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}
