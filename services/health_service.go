package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/accessdeploy/config"
	"github.com/accessdeploy/models"
	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Sub-score weights for the overall health score
const (
	connectivityWeight  = 0.4
	performanceWeight   = 0.3
	functionalityWeight = 0.3
)

// sampleStore is the persistence the health monitor needs
type sampleStore interface {
	Create(sample models.HealthSample) (models.HealthSample, error)
}

// MonitorOutcome is how a monitoring window ended
type MonitorOutcome int

const (
	// MonitorElapsed means the window expired with no failure breach
	MonitorElapsed MonitorOutcome = iota
	// MonitorBreached means consecutive critical samples crossed the threshold
	MonitorBreached
	// MonitorCancelled means the deployment was cancelled mid-window
	MonitorCancelled
)

// HealthService scores live-site health from indirect signals and runs the
// post-deployment monitoring window.
type HealthService struct {
	cfg     config.EngineConfig
	client  *http.Client
	samples sampleStore
}

// NewHealthService creates a health service backed by the given sample store
func NewHealthService(cfg config.EngineConfig, samples sampleStore) *HealthService {
	return &HealthService{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.ProbeTimeout},
		samples: samples,
	}
}

// CheckHealth probes the live site once and scores the result. A probe that
// cannot reach the site at all yields a critical sample, never an error: a
// dead site is a finding, not a monitoring failure.
func (s *HealthService) CheckHealth(ctx context.Context, siteURL string) models.HealthSample {
	sample := models.HealthSample{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		sample.Detail = fmt.Sprintf("invalid site URL: %v", err)
		sample.Status = models.HealthStatusCritical
		return sample
	}

	resp, err := s.client.Do(req)
	if err != nil {
		sample.Detail = fmt.Sprintf("probe failed: %v", err)
		sample.Status = models.HealthStatusCritical
		return sample
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	sample.ConnectivityScore = scoreConnectivity(resp.StatusCode)
	sample.PerformanceScore = scorePerformance(latency)
	sample.FunctionalityScore = scoreFunctionality(string(body))
	sample.OverallScore = connectivityWeight*sample.ConnectivityScore +
		performanceWeight*sample.PerformanceScore +
		functionalityWeight*sample.FunctionalityScore
	sample.Status = s.statusFor(sample.OverallScore)
	sample.Detail = fmt.Sprintf("status=%d latency=%s", resp.StatusCode, latency.Round(time.Millisecond))
	return sample
}

// statusFor classifies an overall score against the configured cutoffs
func (s *HealthService) statusFor(score float64) models.HealthStatus {
	switch {
	case score >= s.cfg.HealthyThreshold:
		return models.HealthStatusHealthy
	case score >= s.cfg.CriticalThreshold:
		return models.HealthStatusWarning
	default:
		return models.HealthStatusCritical
	}
}

// Monitor samples the site periodically until the window elapses, the
// failure threshold is breached, or ctx is cancelled. Every sample is
// persisted and handed to onSample. Returns the outcome and whether any
// warning samples occurred during the window.
func (s *HealthService) Monitor(ctx context.Context, deploymentID, siteURL string, onSample func(models.HealthSample)) (MonitorOutcome, bool) {
	windowCtx, cancel := context.WithTimeout(ctx, s.cfg.MonitorWindow)
	defer cancel()

	consecutiveCritical := 0
	sawWarning := false
	breached := false

	err := wait.PollUntilContextCancel(windowCtx, s.cfg.MonitorInterval, true, func(pollCtx context.Context) (bool, error) {
		sample := s.CheckHealth(pollCtx, siteURL)
		sample.DeploymentID = deploymentID
		if _, err := s.samples.Create(sample); err != nil {
			log.Println("Error persisting health sample:", err)
		}
		if onSample != nil {
			onSample(sample)
		}

		switch sample.Status {
		case models.HealthStatusCritical:
			consecutiveCritical++
		case models.HealthStatusWarning:
			sawWarning = true
			consecutiveCritical = 0
		default:
			consecutiveCritical = 0
		}

		if consecutiveCritical >= s.cfg.FailureThreshold {
			breached = true
			return true, nil
		}
		return false, nil
	})

	if breached {
		return MonitorBreached, sawWarning
	}
	// Parent cancellation means the deployment was cancelled; only the
	// window timeout counts as a clean expiry.
	if ctx.Err() != nil {
		return MonitorCancelled, sawWarning
	}
	if err != nil && windowCtx.Err() == context.DeadlineExceeded {
		return MonitorElapsed, sawWarning
	}
	return MonitorElapsed, sawWarning
}

// scoreConnectivity maps the response status class to 0-100
func scoreConnectivity(statusCode int) float64 {
	switch {
	case statusCode >= 200 && statusCode < 400:
		return 100
	case statusCode >= 400 && statusCode < 500:
		return 50
	default:
		return 10
	}
}

// scorePerformance maps response latency to 0-100: full marks under 500ms,
// dropping linearly to zero at 10s.
func scorePerformance(latency time.Duration) float64 {
	const fast = 500 * time.Millisecond
	const slow = 10 * time.Second
	if latency <= fast {
		return 100
	}
	if latency >= slow {
		return 0
	}
	return 100 * float64(slow-latency) / float64(slow-fast)
}

// scoreFunctionality applies heuristic content checks: the page rendered to
// completion and carries no obvious server-side error markers.
func scoreFunctionality(body string) float64 {
	score := 0.0
	if len(strings.TrimSpace(body)) > 0 {
		score += 40
	}
	lower := strings.ToLower(body)
	if strings.Contains(lower, "</html>") || strings.Contains(lower, "</body>") {
		score += 30
	}
	errorMarkers := []string{"fatal error", "internal server error", "stack trace", "database error"}
	hasError := false
	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			hasError = true
			break
		}
	}
	if !hasError {
		score += 30
	}
	return score
}
