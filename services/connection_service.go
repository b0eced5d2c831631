package services

import (
	"errors"
	"fmt"

	"github.com/accessdeploy/dto"
	"github.com/accessdeploy/models"
	"github.com/accessdeploy/repositories"
	"github.com/google/uuid"
)

// ConnectionService manages the thin connection store the engine resolves
// sites through.
type ConnectionService struct {
	connections *repositories.ConnectionRepository
}

// NewConnectionService creates a new connection service
func NewConnectionService() *ConnectionService {
	return &ConnectionService{connections: repositories.NewConnectionRepository()}
}

// Create registers a connection. The submitted credentials are stored behind
// a freshly minted opaque reference; the connection carries only the ref.
func (s *ConnectionService) Create(request dto.ConnectionRequest) (models.Connection, error) {
	if !request.Platform.IsValid() {
		return models.Connection{}, fmt.Errorf("unsupported platform %q", request.Platform)
	}
	if len(request.Credentials) == 0 {
		return models.Connection{}, errors.New("credentials are required")
	}

	credential := models.Credential{
		Ref:  uuid.NewString(),
		Data: models.CredentialData(request.Credentials),
	}
	connection := models.Connection{
		ID:            uuid.NewString(),
		SiteURL:       request.SiteURL,
		Platform:      request.Platform,
		Endpoint:      request.Endpoint,
		CredentialRef: credential.Ref,
	}
	return s.connections.Create(connection, credential)
}

// Get resolves a connection by ID. Secrets never ride along.
func (s *ConnectionService) Get(id string) (models.Connection, error) {
	return s.connections.Resolve(id)
}
