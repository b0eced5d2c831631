package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/accessdeploy/config"
	"github.com/accessdeploy/dto"
	"github.com/accessdeploy/models"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrDeploymentNotActive is returned when a control operation targets a
	// deployment that is no longer running.
	ErrDeploymentNotActive = errors.New("deployment is not active")

	// ErrRollbackUnavailable is returned when a manual rollback is requested
	// in a state that does not permit one.
	ErrRollbackUnavailable = errors.New("rollback is only available while the deployment is monitoring")
)

// deploymentStore is the persistence the orchestrator needs
type deploymentStore interface {
	Create(deployment models.Deployment) (models.Deployment, error)
	FindByID(id string) (models.Deployment, error)
	Save(deployment models.Deployment) error
	FindActive() ([]models.Deployment, error)
	FindByUserID(userID string, limit int) ([]models.Deployment, error)
}

// patchSource supplies patch packages produced by the analysis step
type patchSource interface {
	FindByID(id string) (models.PatchPackage, error)
	FindBySourceScanID(scanID string) (models.PatchPackage, error)
}

// connectionRegistry resolves site identifiers and credentials
type connectionRegistry interface {
	Resolve(siteID string) (models.Connection, error)
	ResolveCredential(ref string) (models.CredentialData, error)
}

// activeDeployment is the orchestrator's handle on one running deployment
type activeDeployment struct {
	cancel     context.CancelFunc
	rollbackCh chan string // buffered; carries the manual rollback reason
}

// DeploymentService is the orchestrator: it owns each deployment record for
// its lifetime, drives the state machine, and keeps the registry of active
// deployments (insert on start, remove on terminal state).
type DeploymentService struct {
	cfg         config.EngineConfig
	deployments deploymentStore
	patches     patchSource
	connections connectionRegistry
	validator   *ValidatorService
	backups     *BackupService
	adapters    adapterSource
	health      *HealthService
	rollback    *RollbackService
	hub         *StatusHub

	mu     sync.Mutex
	active map[string]*activeDeployment
}

// NewDeploymentService wires the orchestrator
func NewDeploymentService(
	cfg config.EngineConfig,
	deployments deploymentStore,
	patches patchSource,
	connections connectionRegistry,
	validator *ValidatorService,
	backups *BackupService,
	adapters adapterSource,
	health *HealthService,
	rollback *RollbackService,
	hub *StatusHub,
) *DeploymentService {
	return &DeploymentService{
		cfg:         cfg,
		deployments: deployments,
		patches:     patches,
		connections: connections,
		validator:   validator,
		backups:     backups,
		adapters:    adapters,
		health:      health,
		rollback:    rollback,
		hub:         hub,
		active:      make(map[string]*activeDeployment),
	}
}

// Deploy accepts a deployment request, creates the record, and starts the
// orchestration in its own goroutine.
func (s *DeploymentService) Deploy(userID string, request dto.DeployRequest) (dto.DeployResponse, error) {
	var patch models.PatchPackage
	var err error
	switch {
	case request.PatchID != "":
		patch, err = s.patches.FindByID(request.PatchID)
	case request.ScanID != "":
		patch, err = s.patches.FindBySourceScanID(request.ScanID)
	default:
		return dto.DeployResponse{}, errors.New("either patchId or scanId is required")
	}
	if err != nil {
		return dto.DeployResponse{}, fmt.Errorf("resolving patch package: %w", err)
	}

	connection, err := s.connections.Resolve(request.SiteID)
	if err != nil {
		return dto.DeployResponse{}, fmt.Errorf("resolving connection: %w", err)
	}

	deployment := models.Deployment{
		ID:           uuid.NewString(),
		PatchID:      patch.ID,
		ConnectionID: connection.ID,
		UserID:       userID,
		SiteURL:      connection.SiteURL,
		Status:       models.DeploymentStatusPending,
		StartTime:    time.Now().UTC(),
	}
	deployment.AppendLog(models.LogLevelInfo, fmt.Sprintf("deployment created for patch %s (%d changes)", patch.ID, len(patch.Changes)))

	deployment, err = s.deployments.Create(deployment)
	if err != nil {
		return dto.DeployResponse{}, fmt.Errorf("creating deployment record: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctl := &activeDeployment{
		cancel:     cancel,
		rollbackCh: make(chan string, 1),
	}
	s.mu.Lock()
	s.active[deployment.ID] = ctl
	s.mu.Unlock()

	go s.run(ctx, ctl, deployment, patch, connection)

	return dto.DeployResponse{
		DeploymentID: deployment.ID,
		Status:       string(deployment.Status),
		Message:      "Deployment started",
		CreatedAt:    deployment.CreatedAt.Format(time.RFC3339),
	}, nil
}

// run drives one deployment through the state machine. It is the single
// writer of the deployment record until a terminal state is reached.
func (s *DeploymentService) run(ctx context.Context, ctl *activeDeployment, deployment models.Deployment, patch models.PatchPackage, connection models.Connection) {
	defer s.finish(&deployment)

	log.Printf("Deployment %s: starting for site %s", deployment.ID, deployment.SiteURL)

	// Validating
	if !s.step(ctx, &deployment, models.DeploymentStatusValidating) {
		return
	}
	verdict, err := s.validator.Validate(ctx, deployment.ID, patch, connection)
	if err != nil {
		deployment.AppendLog(models.LogLevelError, fmt.Sprintf("validation error: %v", err))
		s.terminate(&deployment, models.DeploymentStatusFailed)
		return
	}
	deployment.RiskLevel = verdict.RiskLevel
	if !verdict.Safe {
		for _, blocker := range verdict.Blockers {
			deployment.AppendLog(models.LogLevelWarn, "blocked: "+blocker)
		}
		s.terminate(&deployment, models.DeploymentStatusBlocked)
		return
	}
	deployment.AppendLog(models.LogLevelInfo, fmt.Sprintf("validation passed, risk %s (%.1f)", verdict.RiskLevel, verdict.RiskScore))

	// BackingUp: all-or-nothing; failure leaves the site untouched
	if !s.step(ctx, &deployment, models.DeploymentStatusBackingUp) {
		return
	}
	backups, err := s.backups.CreateBackups(ctx, connection, deployment.ID, patch.Changes)
	if err != nil {
		deployment.AppendLog(models.LogLevelError, fmt.Sprintf("backup failed, no mutations applied: %v", err))
		s.terminate(&deployment, models.DeploymentStatusFailed)
		return
	}
	deployment.AppendLog(models.LogLevelInfo, fmt.Sprintf("%d backups captured", len(backups)))

	// Deploying: assets are independent, one failure does not abort the rest
	if !s.step(ctx, &deployment, models.DeploymentStatusDeploying) {
		return
	}
	s.applyChanges(ctx, &deployment, patch, connection)

	if ctx.Err() != nil {
		deployment.AppendLog(models.LogLevelWarn, "cancelled during deployment, applied assets left in place")
		s.terminate(&deployment, models.DeploymentStatusCancelled)
		return
	}
	if len(deployment.DeployedAssets) == 0 {
		// Nothing changed, so nothing to roll back
		deployment.AppendLog(models.LogLevelError, "no assets deployed")
		s.terminate(&deployment, models.DeploymentStatusFailed)
		return
	}
	if len(deployment.FailedAssets) > 0 {
		deployment.AppendLog(models.LogLevelWarn, fmt.Sprintf("partial deployment: %d applied, %d failed", len(deployment.DeployedAssets), len(deployment.FailedAssets)))
	}

	// Verifying: critical is a hard gate, warning is advisory
	if !s.step(ctx, &deployment, models.DeploymentStatusVerifying) {
		return
	}
	sample := s.health.CheckHealth(ctx, deployment.SiteURL)
	sample.DeploymentID = deployment.ID
	if _, err := s.health.samples.Create(sample); err != nil {
		log.Println("Error persisting verification sample:", err)
	}
	deployment.AppendLog(models.LogLevelInfo, fmt.Sprintf("verification health %s (%.0f)", sample.Status, sample.OverallScore))
	if sample.Status == models.HealthStatusCritical {
		s.runRollback(ctx, &deployment, connection, models.RollbackTriggerAutomatic, "verification_critical")
		return
	}
	if sample.Status == models.HealthStatusWarning {
		deployment.WarningSamples++
	}

	// Monitoring: bounded window of periodic samples
	if !s.step(ctx, &deployment, models.DeploymentStatusMonitoring) {
		return
	}
	s.monitor(ctx, ctl, &deployment, connection)
}

// applyChanges fans the patch's file changes out over the transport adapter
// with bounded concurrency. Cancellation stops new assets from launching but
// never interrupts one mid-mutation.
func (s *DeploymentService) applyChanges(ctx context.Context, deployment *models.Deployment, patch models.PatchPackage, connection models.Connection) {
	adapter, err := s.adapters.Get(connection.Platform)
	if err != nil {
		deployment.AppendLog(models.LogLevelError, err.Error())
		return
	}

	sem := semaphore.NewWeighted(int64(s.cfg.AssetConcurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, change := range patch.Changes {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(context.Background(), 1); err != nil {
			break
		}
		wg.Add(1)
		go func(change models.FileChange) {
			defer wg.Done()
			defer sem.Release(1)

			creds, err := s.connections.ResolveCredential(connection.CredentialRef)
			if err == nil {
				var result models.AssetResult
				// Mutations run to completion once started; no ctx here
				result, err = adapter.Apply(context.Background(), connection, creds, change)
				if err == nil {
					mu.Lock()
					deployment.DeployedAssets = append(deployment.DeployedAssets, result)
					mu.Unlock()
					return
				}
			}
			mu.Lock()
			deployment.FailedAssets = append(deployment.FailedAssets, models.AssetResult{
				AssetKey:  change.Path,
				AppliedAt: time.Now().UTC(),
				Error:     err.Error(),
			})
			deployment.AppendLog(models.LogLevelError, fmt.Sprintf("apply %s: %v", change.Path, err))
			mu.Unlock()
		}(change)
	}
	wg.Wait()
}

// monitor runs the bounded monitoring window and reacts to breaches,
// expiry, cancellation, and manual rollback requests.
func (s *DeploymentService) monitor(ctx context.Context, ctl *activeDeployment, deployment *models.Deployment, connection models.Connection) {
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()

	type monitorResult struct {
		outcome    MonitorOutcome
		sawWarning bool
	}
	resultCh := make(chan monitorResult, 1)

	go func() {
		outcome, sawWarning := s.health.Monitor(monitorCtx, deployment.ID, deployment.SiteURL, func(sample models.HealthSample) {
			s.hub.Publish(dto.StatusEvent{
				DeploymentID: deployment.ID,
				Status:       string(models.DeploymentStatusMonitoring),
				Sample:       &sample,
			})
		})
		resultCh <- monitorResult{outcome, sawWarning}
	}()

	select {
	case reason := <-ctl.rollbackCh:
		stopMonitor()
		<-resultCh // wait for the in-flight sample to finish
		deployment.AppendLog(models.LogLevelWarn, "manual rollback requested: "+reason)
		s.runRollback(ctx, deployment, connection, models.RollbackTriggerManual, reason)
		return
	case result := <-resultCh:
		switch result.outcome {
		case MonitorBreached:
			deployment.AppendLog(models.LogLevelError, fmt.Sprintf("%d consecutive critical health samples", s.cfg.FailureThreshold))
			s.runRollback(ctx, deployment, connection, models.RollbackTriggerAutomatic, "health_check_failures")
		case MonitorCancelled:
			deployment.AppendLog(models.LogLevelWarn, "cancelled during monitoring")
			s.terminate(deployment, models.DeploymentStatusCancelled)
		default:
			if result.sawWarning || deployment.WarningSamples > 0 {
				s.terminate(deployment, models.DeploymentStatusCompletedWarn)
			} else {
				s.terminate(deployment, models.DeploymentStatusCompleted)
			}
		}
	}
}

// runRollback transitions to rolling_back and replays the backups. A failed
// restoration is escalated, never retried automatically.
func (s *DeploymentService) runRollback(ctx context.Context, deployment *models.Deployment, connection models.Connection, trigger models.RollbackTrigger, reason string) {
	s.setStatus(deployment, models.DeploymentStatusRollingBack)

	// The rollback itself must run even if the deployment was cancelled
	record, err := s.rollback.Execute(context.Background(), *deployment, connection, trigger, reason)
	if err != nil {
		deployment.AppendLog(models.LogLevelError, fmt.Sprintf("rollback error: %v", err))
		s.terminate(deployment, models.DeploymentStatusRollbackFailed)
		return
	}
	deployment.RollbackID = &record.ID

	if !record.Success {
		deployment.AppendLog(models.LogLevelError, "rollback incomplete, manual intervention required")
		log.Printf("ESCALATION: deployment %s rollback failed, operator intervention required", deployment.ID)
		s.terminate(deployment, models.DeploymentStatusRollbackFailed)
		return
	}
	deployment.AppendLog(models.LogLevelInfo, fmt.Sprintf("rollback complete, %d assets restored", len(record.RestoredAssets)))
	s.terminate(deployment, models.DeploymentStatusRolledBack)
}

// step transitions to the next working state, honoring cancellation between
// steps. Returns false if the deployment ended instead.
func (s *DeploymentService) step(ctx context.Context, deployment *models.Deployment, next models.DeploymentStatus) bool {
	if ctx.Err() != nil {
		deployment.AppendLog(models.LogLevelWarn, "cancelled")
		s.terminate(deployment, models.DeploymentStatusCancelled)
		return false
	}
	s.setStatus(deployment, next)
	return true
}

// setStatus applies a state transition, persists it, and notifies subscribers
func (s *DeploymentService) setStatus(deployment *models.Deployment, next models.DeploymentStatus) {
	if !deployment.Status.CanTransitionTo(next) {
		// A rejected edge is a programming error; log loudly and refuse
		log.Printf("Deployment %s: illegal transition %s -> %s refused", deployment.ID, deployment.Status, next)
		return
	}
	deployment.Status = next
	if next.IsTerminal() && deployment.EndTime == nil {
		now := time.Now().UTC()
		deployment.EndTime = &now
	}
	if err := s.deployments.Save(*deployment); err != nil {
		log.Printf("Deployment %s: error persisting status %s: %v", deployment.ID, next, err)
	}

	event := dto.StatusEvent{
		DeploymentID: deployment.ID,
		Status:       string(next),
		Terminal:     next.IsTerminal(),
	}
	if n := len(deployment.Logs); n > 0 {
		entry := deployment.Logs[n-1]
		event.Log = &entry
	}
	s.hub.Publish(event)
}

// terminate moves the deployment to a terminal state
func (s *DeploymentService) terminate(deployment *models.Deployment, status models.DeploymentStatus) {
	s.setStatus(deployment, status)
	log.Printf("Deployment %s: %s", deployment.ID, status)
}

// finish removes the deployment from the active registry once its goroutine
// exits. The hub has already closed subscriber channels on the terminal event.
func (s *DeploymentService) finish(deployment *models.Deployment) {
	s.mu.Lock()
	if ctl, ok := s.active[deployment.ID]; ok {
		ctl.cancel()
		delete(s.active, deployment.ID)
	}
	s.mu.Unlock()
}

// Cancel requests cooperative cancellation of an active deployment. It is
// honored between steps; the in-flight step always completes first.
func (s *DeploymentService) Cancel(deploymentID string) error {
	s.mu.Lock()
	ctl, ok := s.active[deploymentID]
	s.mu.Unlock()
	if !ok {
		return ErrDeploymentNotActive
	}
	ctl.cancel()
	return nil
}

// TriggerRollback requests a manual rollback. For a deployment that already
// rolled back it returns the prior record without touching the target again.
// Otherwise it is only honored while the deployment is monitoring.
func (s *DeploymentService) TriggerRollback(deploymentID, reason string) (models.RollbackRecord, error) {
	deployment, err := s.deployments.FindByID(deploymentID)
	if err != nil {
		return models.RollbackRecord{}, err
	}

	if deployment.Status == models.DeploymentStatusRolledBack {
		return s.rollback.records.FindByDeploymentID(deploymentID)
	}

	if deployment.Status != models.DeploymentStatusMonitoring {
		return models.RollbackRecord{}, ErrRollbackUnavailable
	}

	s.mu.Lock()
	ctl, ok := s.active[deploymentID]
	s.mu.Unlock()
	if !ok {
		return models.RollbackRecord{}, ErrDeploymentNotActive
	}

	if reason == "" {
		reason = "manual rollback"
	}
	select {
	case ctl.rollbackCh <- reason:
	default:
		// A rollback request is already pending
	}
	return models.RollbackRecord{DeploymentID: deploymentID, Trigger: models.RollbackTriggerManual, Reason: reason}, nil
}

// Snapshot returns an immutable view of one deployment
func (s *DeploymentService) Snapshot(deploymentID string) (dto.DeploymentResponse, error) {
	deployment, err := s.deployments.FindByID(deploymentID)
	if err != nil {
		return dto.DeploymentResponse{}, err
	}
	return dto.NewDeploymentResponseFromModel(deployment), nil
}

// ListActive returns snapshots of every non-terminal deployment
func (s *DeploymentService) ListActive() ([]dto.DeploymentResponse, error) {
	deployments, err := s.deployments.FindActive()
	if err != nil {
		return nil, err
	}
	responses := make([]dto.DeploymentResponse, 0, len(deployments))
	for _, deployment := range deployments {
		responses = append(responses, dto.NewDeploymentResponseFromModel(deployment))
	}
	return responses, nil
}

// GetHistory returns a user's deployment history, newest first
func (s *DeploymentService) GetHistory(userID string, limit int) ([]dto.DeploymentResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	deployments, err := s.deployments.FindByUserID(userID, limit)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.DeploymentResponse, 0, len(deployments))
	for _, deployment := range deployments {
		responses = append(responses, dto.NewDeploymentResponseFromModel(deployment))
	}
	return responses, nil
}

// Subscribe returns the status event stream for one deployment
func (s *DeploymentService) Subscribe(deploymentID string) (<-chan dto.StatusEvent, func()) {
	return s.hub.Subscribe(deploymentID)
}
