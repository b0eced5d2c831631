package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeploymentStatusIsTerminal(t *testing.T) {
	terminal := []DeploymentStatus{
		DeploymentStatusBlocked,
		DeploymentStatusCompleted,
		DeploymentStatusCompletedWarn,
		DeploymentStatusFailed,
		DeploymentStatusCancelled,
		DeploymentStatusRolledBack,
		DeploymentStatusRollbackFailed,
	}
	for _, status := range terminal {
		assert.True(t, status.IsTerminal(), "expected %s to be terminal", status)
	}

	working := []DeploymentStatus{
		DeploymentStatusPending,
		DeploymentStatusValidating,
		DeploymentStatusBackingUp,
		DeploymentStatusDeploying,
		DeploymentStatusVerifying,
		DeploymentStatusMonitoring,
		DeploymentStatusRollingBack,
	}
	for _, status := range working {
		assert.False(t, status.IsTerminal(), "expected %s to be non-terminal", status)
	}
}

func TestDeploymentStatusTransitions(t *testing.T) {
	cases := []struct {
		from    DeploymentStatus
		to      DeploymentStatus
		allowed bool
	}{
		{DeploymentStatusPending, DeploymentStatusValidating, true},
		{DeploymentStatusValidating, DeploymentStatusBlocked, true},
		{DeploymentStatusValidating, DeploymentStatusBackingUp, true},
		{DeploymentStatusValidating, DeploymentStatusFailed, true},
		{DeploymentStatusBackingUp, DeploymentStatusDeploying, true},
		{DeploymentStatusBackingUp, DeploymentStatusFailed, true},
		{DeploymentStatusDeploying, DeploymentStatusVerifying, true},
		{DeploymentStatusDeploying, DeploymentStatusRollingBack, true},
		{DeploymentStatusVerifying, DeploymentStatusMonitoring, true},
		{DeploymentStatusVerifying, DeploymentStatusRollingBack, true},
		{DeploymentStatusMonitoring, DeploymentStatusCompleted, true},
		{DeploymentStatusMonitoring, DeploymentStatusCompletedWarn, true},
		{DeploymentStatusMonitoring, DeploymentStatusRollingBack, true},
		{DeploymentStatusRollingBack, DeploymentStatusRolledBack, true},
		{DeploymentStatusRollingBack, DeploymentStatusRollbackFailed, true},

		// Skipping states is not allowed
		{DeploymentStatusPending, DeploymentStatusDeploying, false},
		{DeploymentStatusValidating, DeploymentStatusMonitoring, false},
		{DeploymentStatusBackingUp, DeploymentStatusRollingBack, false},
		{DeploymentStatusMonitoring, DeploymentStatusVerifying, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCancelledReachableFromAnyNonTerminalState(t *testing.T) {
	for from := range validTransitions {
		assert.True(t, from.CanTransitionTo(DeploymentStatusCancelled), "%s -> cancelled", from)
	}
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	all := []DeploymentStatus{
		DeploymentStatusPending, DeploymentStatusValidating, DeploymentStatusBlocked,
		DeploymentStatusBackingUp, DeploymentStatusDeploying, DeploymentStatusVerifying,
		DeploymentStatusMonitoring, DeploymentStatusCompleted, DeploymentStatusCompletedWarn,
		DeploymentStatusFailed, DeploymentStatusCancelled, DeploymentStatusRollingBack,
		DeploymentStatusRolledBack, DeploymentStatusRollbackFailed,
	}
	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "terminal %s must not transition to %s", from, to)
		}
	}
}

func TestBackupAbsent(t *testing.T) {
	content := "body { color: black }"
	assert.False(t, (&Backup{OriginalContent: &content}).Absent())
	assert.True(t, (&Backup{}).Absent())
}

func TestAppendLog(t *testing.T) {
	var deployment Deployment
	deployment.AppendLog(LogLevelInfo, "first")
	deployment.AppendLog(LogLevelError, "second")

	assert.Len(t, deployment.Logs, 2)
	assert.Equal(t, LogLevelInfo, deployment.Logs[0].Level)
	assert.Equal(t, "second", deployment.Logs[1].Message)
	assert.False(t, deployment.Logs[0].Time.IsZero())
}
