package services

import (
	"context"
	"fmt"

	"github.com/accessdeploy/config"
	"github.com/accessdeploy/dto"
	"github.com/accessdeploy/models"
)

// admissionCounter exposes the active-deployment counts the validator needs.
// excludeID keeps the deployment being validated out of its own counts.
type admissionCounter interface {
	CountActive(excludeID string) (int64, error)
	CountActiveBySiteURL(siteURL, excludeID string) (int64, error)
}

// baselineChecker probes the live site before any mutation is considered
type baselineChecker interface {
	CheckHealth(ctx context.Context, siteURL string) models.HealthSample
}

// strategyRegistry answers whether a platform has a restore path
type strategyRegistry interface {
	Has(platform models.Platform) bool
}

// ValidatorService runs the pre-flight safety checks. It is pure read/query:
// a validation never mutates anything, so re-validating later is always safe.
type ValidatorService struct {
	cfg      config.EngineConfig
	counts   admissionCounter
	baseline baselineChecker
	adapters strategyRegistry
}

// NewValidatorService creates a safety validator
func NewValidatorService(cfg config.EngineConfig, counts admissionCounter, baseline baselineChecker, adapters strategyRegistry) *ValidatorService {
	return &ValidatorService{
		cfg:      cfg,
		counts:   counts,
		baseline: baseline,
		adapters: adapters,
	}
}

// Validate produces the go/no-go verdict for deploying patch over connection.
// Every blocker found is reported; deployment must not proceed unless Safe.
// deploymentID identifies the attempt under validation so it does not count
// against itself.
func (s *ValidatorService) Validate(ctx context.Context, deploymentID string, patch models.PatchPackage, connection models.Connection) (dto.ValidationResult, error) {
	result := dto.ValidationResult{Blockers: []string{}}

	// Concurrency admission: backpressure, not a queue
	active, err := s.counts.CountActive(deploymentID)
	if err != nil {
		return result, fmt.Errorf("counting active deployments: %w", err)
	}
	if active >= int64(s.cfg.MaxActiveDeployments) {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("active deployment limit reached (%d), try again later", s.cfg.MaxActiveDeployments))
	}

	// At most one in-flight deployment per site
	siteActive, err := s.counts.CountActiveBySiteURL(connection.SiteURL, deploymentID)
	if err != nil {
		return result, fmt.Errorf("checking site conflicts: %w", err)
	}
	if siteActive > 0 {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("another deployment is already in flight for %s", connection.SiteURL))
	}

	// A backup strategy must exist for the target platform
	if !s.adapters.Has(connection.Platform) {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("no backup strategy for platform %q", connection.Platform))
	}
	if len(patch.Changes) == 0 {
		result.Blockers = append(result.Blockers, "patch package contains no changes")
	}

	// The site must be reachable and non-critical before we touch it
	baseline := s.baseline.CheckHealth(ctx, connection.SiteURL)
	if baseline.Status == models.HealthStatusCritical {
		result.Blockers = append(result.Blockers,
			fmt.Sprintf("baseline health check is critical (score %.0f): %s", baseline.OverallScore, baseline.Detail))
	}

	result.RiskScore = riskScore(patch, connection.Platform)
	result.RiskLevel = riskLevel(result.RiskScore)
	result.Safe = len(result.Blockers) == 0
	return result, nil
}

// riskScore combines the upstream analysis score with patch size, a
// DOM-complexity hint, and the platform weight. CMS mutations touch rendered
// markup and score higher than static file pushes.
func riskScore(patch models.PatchPackage, platform models.Platform) float64 {
	score := patch.RiskScore * 0.5

	// Patch size component, capped
	size := float64(len(patch.Changes)) * 0.4
	if size > 2.5 {
		size = 2.5
	}
	score += size

	// DOM-complexity hint: selector-targeted changes touch live markup
	selectors := 0
	for _, change := range patch.Changes {
		if change.Selector != "" {
			selectors++
		}
	}
	dom := float64(selectors) * 0.3
	if dom > 1.5 {
		dom = 1.5
	}
	score += dom

	switch platform {
	case models.PlatformCMSAPI:
		score += 1.5
	case models.PlatformShellSession:
		score += 1.0
	case models.PlatformFileTransfer:
		score += 0.5
	}

	if score > 10 {
		score = 10
	}
	return score
}

// riskLevel buckets a 0-10 risk score
func riskLevel(score float64) string {
	switch {
	case score < 3:
		return "low"
	case score < 7:
		return "medium"
	default:
		return "high"
	}
}
