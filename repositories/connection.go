package repositories

import (
	"github.com/accessdeploy/database"
	"github.com/accessdeploy/models"
	"gorm.io/gorm"
)

// ConnectionRepository resolves site connections and their credentials.
// Credentials are looked up per call and never cached.
type ConnectionRepository struct{}

// NewConnectionRepository creates a new connection repository instance
func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{}
}

// Create inserts a connection and its credential in one transaction
func (r *ConnectionRepository) Create(connection models.Connection, credential models.Credential) (models.Connection, error) {
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&credential).Error; err != nil {
			return err
		}
		return tx.Create(&connection).Error
	})
	return connection, err
}

// Resolve retrieves a connection by site identifier
func (r *ConnectionRepository) Resolve(siteID string) (models.Connection, error) {
	var connection models.Connection
	result := database.DB.First(&connection, "id = ?", siteID)
	return connection, result.Error
}

// ResolveCredential retrieves the secret material behind a credential
// reference. Callers must not hold the result beyond one transport call.
func (r *ConnectionRepository) ResolveCredential(ref string) (models.CredentialData, error) {
	var credential models.Credential
	result := database.DB.First(&credential, "ref = ?", ref)
	return credential.Data, result.Error
}
