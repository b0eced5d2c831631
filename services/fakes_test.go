package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/accessdeploy/models"
	"gorm.io/gorm"
)

// fakeAdapter is an in-memory transport.Adapter that records every call and
// can be told to fail specific assets.
type fakeAdapter struct {
	mu           sync.Mutex
	remote       map[string]string
	failApply    map[string]bool
	failRead     map[string]bool
	failRestore  map[string]bool
	applyCalls   []string
	readCalls    []string
	restoreCalls []string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		remote:      map[string]string{},
		failApply:   map[string]bool{},
		failRead:    map[string]bool{},
		failRestore: map[string]bool{},
	}
}

func (a *fakeAdapter) Apply(_ context.Context, _ models.Connection, _ models.CredentialData, change models.FileChange) (models.AssetResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applyCalls = append(a.applyCalls, change.Path)
	if a.failApply[change.Path] {
		return models.AssetResult{}, fmt.Errorf("apply failed for %s", change.Path)
	}
	if change.Kind == models.ChangeKindDelete {
		delete(a.remote, change.Path)
	} else {
		a.remote[change.Path] = change.After
	}
	return models.AssetResult{AssetKey: change.Path, AppliedAt: time.Now().UTC()}, nil
}

func (a *fakeAdapter) Restore(_ context.Context, _ models.Connection, _ models.CredentialData, backup models.Backup) (models.AssetResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.restoreCalls = append(a.restoreCalls, backup.AssetKey)
	if a.failRestore[backup.AssetKey] {
		return models.AssetResult{}, fmt.Errorf("restore failed for %s", backup.AssetKey)
	}
	if backup.Absent() {
		delete(a.remote, backup.AssetKey)
	} else {
		a.remote[backup.AssetKey] = *backup.OriginalContent
	}
	return models.AssetResult{AssetKey: backup.AssetKey, AppliedAt: time.Now().UTC()}, nil
}

func (a *fakeAdapter) Read(_ context.Context, _ models.Connection, _ models.CredentialData, path string) (*string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readCalls = append(a.readCalls, path)
	if a.failRead[path] {
		return nil, fmt.Errorf("network error reading %s", path)
	}
	content, ok := a.remote[path]
	if !ok {
		return nil, nil
	}
	return &content, nil
}

func (a *fakeAdapter) applied() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.applyCalls...)
}

func (a *fakeAdapter) restored() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.restoreCalls...)
}

// memDeployments is an in-memory deployment store that also serves as the
// validator's admission counter.
type memDeployments struct {
	mu       sync.Mutex
	records  map[string]models.Deployment
	countErr error
}

func newMemDeployments() *memDeployments {
	return &memDeployments{records: map[string]models.Deployment{}}
}

func (m *memDeployments) Create(deployment models.Deployment) (models.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deployment.CreatedAt = time.Now().UTC()
	m.records[deployment.ID] = deployment
	return deployment, nil
}

func (m *memDeployments) FindByID(id string) (models.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deployment, ok := m.records[id]
	if !ok {
		return models.Deployment{}, gorm.ErrRecordNotFound
	}
	return deployment, nil
}

func (m *memDeployments) Save(deployment models.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[deployment.ID] = deployment
	return nil
}

func (m *memDeployments) FindActive() ([]models.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []models.Deployment
	for _, deployment := range m.records {
		if !deployment.Status.IsTerminal() {
			active = append(active, deployment)
		}
	}
	return active, nil
}

func (m *memDeployments) FindByUserID(userID string, limit int) ([]models.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []models.Deployment
	for _, deployment := range m.records {
		if deployment.UserID == userID && len(matches) < limit {
			matches = append(matches, deployment)
		}
	}
	return matches, nil
}

func (m *memDeployments) CountActive(excludeID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	var count int64
	for id, deployment := range m.records {
		if id != excludeID && !deployment.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (m *memDeployments) CountActiveBySiteURL(siteURL, excludeID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, deployment := range m.records {
		if id != excludeID && deployment.SiteURL == siteURL && !deployment.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

// status polls the current status of a deployment
func (m *memDeployments) status(id string) models.DeploymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id].Status
}

// memBackups is an in-memory backup store
type memBackups struct {
	mu      sync.Mutex
	records []models.Backup
	failAll bool
}

func (m *memBackups) Create(backup models.Backup) (models.Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return models.Backup{}, errors.New("backup store unavailable")
	}
	backup.CreatedAt = time.Now().UTC()
	m.records = append(m.records, backup)
	return backup, nil
}

func (m *memBackups) FindByDeploymentID(deploymentID string) ([]models.Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []models.Backup
	for _, backup := range m.records {
		if backup.DeploymentID == deploymentID {
			matches = append(matches, backup)
		}
	}
	return matches, nil
}

// memRollbacks is an in-memory rollback record store
type memRollbacks struct {
	mu      sync.Mutex
	records []models.RollbackRecord
}

func (m *memRollbacks) Create(record models.RollbackRecord) (models.RollbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.CreatedAt = time.Now().UTC()
	m.records = append(m.records, record)
	return record, nil
}

func (m *memRollbacks) FindByDeploymentID(deploymentID string) (models.RollbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].DeploymentID == deploymentID {
			return m.records[i], nil
		}
	}
	return models.RollbackRecord{}, gorm.ErrRecordNotFound
}

func (m *memRollbacks) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memSamples is an in-memory health sample store
type memSamples struct {
	mu      sync.Mutex
	records []models.HealthSample
}

func (m *memSamples) Create(sample models.HealthSample) (models.HealthSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, sample)
	return sample, nil
}

func (m *memSamples) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memPatches is an in-memory patch source
type memPatches struct {
	patches map[string]models.PatchPackage
}

func (m *memPatches) FindByID(id string) (models.PatchPackage, error) {
	patch, ok := m.patches[id]
	if !ok {
		return models.PatchPackage{}, gorm.ErrRecordNotFound
	}
	return patch, nil
}

func (m *memPatches) FindBySourceScanID(scanID string) (models.PatchPackage, error) {
	for _, patch := range m.patches {
		if patch.SourceScanID == scanID {
			return patch, nil
		}
	}
	return models.PatchPackage{}, gorm.ErrRecordNotFound
}

// memConnections is an in-memory connection registry
type memConnections struct {
	connections map[string]models.Connection
	credentials map[string]models.CredentialData
}

func (m *memConnections) Resolve(siteID string) (models.Connection, error) {
	connection, ok := m.connections[siteID]
	if !ok {
		return models.Connection{}, gorm.ErrRecordNotFound
	}
	return connection, nil
}

func (m *memConnections) ResolveCredential(ref string) (models.CredentialData, error) {
	creds, ok := m.credentials[ref]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return creds, nil
}

// stubBaseline returns a canned baseline health sample
type stubBaseline struct {
	sample models.HealthSample
}

func (s stubBaseline) CheckHealth(context.Context, string) models.HealthSample {
	return s.sample
}
