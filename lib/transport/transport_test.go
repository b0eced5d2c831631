package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/accessdeploy/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopAdapter struct{}

func (nopAdapter) Apply(context.Context, models.Connection, models.CredentialData, models.FileChange) (models.AssetResult, error) {
	return models.AssetResult{}, nil
}

func (nopAdapter) Restore(context.Context, models.Connection, models.CredentialData, models.Backup) (models.AssetResult, error) {
	return models.AssetResult{}, nil
}

func (nopAdapter) Read(context.Context, models.Connection, models.CredentialData, string) (*string, error) {
	return nil, nil
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	registry.Register(models.PlatformCMSAPI, nopAdapter{})

	adapter, err := registry.Get(models.PlatformCMSAPI)
	require.NoError(t, err)
	assert.NotNil(t, adapter)
	assert.True(t, registry.Has(models.PlatformCMSAPI))

	_, err = registry.Get(models.PlatformShellSession)
	assert.Error(t, err)
	assert.False(t, registry.Has(models.PlatformShellSession))
}

func TestDefaultRegistryCoversEveryPlatform(t *testing.T) {
	registry := DefaultRegistry(3)
	for _, platform := range []models.Platform{
		models.PlatformCMSAPI,
		models.PlatformFileTransfer,
		models.PlatformShellSession,
	} {
		assert.True(t, registry.Has(platform), "missing adapter for %s", platform)
	}
}

func TestWithRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	transient := errors.New("transient")
	err := withRetry(context.Background(), 5, func(error) bool { return true }, func() error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryPermanentErrorFailsImmediately(t *testing.T) {
	calls := 0
	permanent := errors.New("permanent")
	err := withRetry(context.Background(), 5, func(error) bool { return false }, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	transient := errors.New("still down")
	err := withRetry(context.Background(), 2, func(error) bool { return true }, func() error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 2, calls)
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transient := errors.New("transient")
	calls := 0
	err := withRetry(ctx, 10, func(error) bool { return true }, func() error {
		calls++
		cancel()
		return transient
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2, "cancellation must stop further attempts")
}
