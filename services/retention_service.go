package services

import (
	"context"
	"log"
	"time"

	"github.com/accessdeploy/config"
	"github.com/accessdeploy/repositories"
	"k8s.io/apimachinery/pkg/util/wait"
)

// RetentionService garbage-collects backups and health samples of terminal
// deployments once they age past the retention window. Deployment records
// themselves are kept as the append-only audit log.
type RetentionService struct {
	cfg         config.EngineConfig
	deployments *repositories.DeploymentRepository
	backups     *repositories.BackupRepository
	samples     *repositories.HealthRepository
}

// NewRetentionService creates a retention sweeper
func NewRetentionService(cfg config.EngineConfig) *RetentionService {
	return &RetentionService{
		cfg:         cfg,
		deployments: repositories.NewDeploymentRepository(),
		backups:     repositories.NewBackupRepository(),
		samples:     repositories.NewHealthRepository(),
	}
}

// Run sweeps periodically until ctx is cancelled
func (s *RetentionService) Run(ctx context.Context) {
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		s.sweep()
	}, time.Hour)
}

func (s *RetentionService) sweep() {
	cutoff := time.Now().Add(-s.cfg.BackupRetention)
	expired, err := s.deployments.FindTerminalBefore(cutoff)
	if err != nil {
		log.Println("Retention sweep query failed:", err)
		return
	}
	for _, deployment := range expired {
		if err := s.backups.DeleteByDeploymentID(deployment.ID); err != nil {
			log.Printf("Retention: error deleting backups for %s: %v", deployment.ID, err)
			continue
		}
		if err := s.samples.DeleteByDeploymentID(deployment.ID); err != nil {
			log.Printf("Retention: error deleting samples for %s: %v", deployment.ID, err)
		}
	}
	if len(expired) > 0 {
		log.Printf("Retention sweep cleaned %d expired deployments", len(expired))
	}
}
