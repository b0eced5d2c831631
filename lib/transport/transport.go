// Package transport contains the per-platform mutation executors. One adapter
// exists per platform family; all of them sit behind the Adapter contract so
// the orchestrator and rollback executor never dispatch on platform strings.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/accessdeploy/models"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Adapter applies or restores a single asset change on a remote site.
// Credentials are resolved by the caller per invocation and must not be
// retained by the adapter beyond the call.
type Adapter interface {
	// Apply executes one file change against the remote site.
	Apply(ctx context.Context, conn models.Connection, creds models.CredentialData, change models.FileChange) (models.AssetResult, error)

	// Restore replays one backup through the same transport that deployed it.
	Restore(ctx context.Context, conn models.Connection, creds models.CredentialData, backup models.Backup) (models.AssetResult, error)

	// Read fetches the current remote content of an asset. A nil result with
	// no error means the asset does not exist.
	Read(ctx context.Context, conn models.Connection, creds models.CredentialData, path string) (*string, error)
}

// Registry maps platforms to adapters. Populated once at startup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.Platform]Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.Platform]Adapter)}
}

// Register binds an adapter to a platform family
func (r *Registry) Register(platform models.Platform, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[platform] = adapter
}

// Get returns the adapter for a platform
func (r *Registry) Get(platform models.Platform) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("no transport adapter registered for platform %q", platform)
	}
	return adapter, nil
}

// Has reports whether a platform has a registered adapter. The safety
// validator uses this as its backup-strategy check.
func (r *Registry) Has(platform models.Platform) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[platform]
	return ok
}

// DefaultRegistry builds the registry with every production adapter
func DefaultRegistry(retryAttempts int) *Registry {
	registry := NewRegistry()
	registry.Register(models.PlatformCMSAPI, NewCMSAPIAdapter(retryAttempts))
	registry.Register(models.PlatformFileTransfer, NewFileTransferAdapter(retryAttempts))
	registry.Register(models.PlatformShellSession, NewShellSessionAdapter(retryAttempts))
	return registry
}

// retryBackoff returns the backoff schedule shared by all adapters:
// exponential, starting at 500ms, capped at the configured attempt count.
func retryBackoff(attempts int) wait.Backoff {
	return wait.Backoff{
		Duration: 500 * time.Millisecond,
		Factor:   2.0,
		Jitter:   0.1,
		Steps:    attempts,
	}
}

// withRetry runs op under the adapter backoff policy. Only errors the caller
// marks retryable are retried; everything else propagates immediately. The
// context is checked between attempts so cancellation is honored at step
// boundaries, never mid-operation.
func withRetry(ctx context.Context, attempts int, retryable func(error) bool, op func() error) error {
	var lastErr error
	backoff := retryBackoff(attempts)
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		lastErr = op()
		if lastErr == nil {
			return true, nil
		}
		if !retryable(lastErr) {
			return false, lastErr
		}
		return false, nil
	})
	if err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
