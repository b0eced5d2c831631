package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from .env file
func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}
}

// GetEnv gets an environment variable or returns a default value if not present
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// GetEnvInt gets an integer environment variable or returns a default value
func GetEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

// GetEnvFloat gets a float environment variable or returns a default value
func GetEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Warning: invalid float for %s, using default %v", key, fallback)
	}
	return fallback
}

// GetEnvDuration gets a duration environment variable or returns a default value
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: invalid duration for %s, using default %s", key, fallback)
	}
	return fallback
}

// EngineConfig holds the deployment engine tunables. The health thresholds
// and failure counts are heuristic defaults carried over from the product,
// overridable per environment rather than hard-coded.
type EngineConfig struct {
	// Admission
	MaxActiveDeployments int

	// Per-deployment fan-out during the deploying state
	AssetConcurrency int

	// Transport retry
	RetryAttempts int

	// Verification and monitoring
	MonitorWindow     time.Duration
	MonitorInterval   time.Duration
	FailureThreshold  int // consecutive critical samples before auto-rollback
	HealthyThreshold  float64
	CriticalThreshold float64
	ProbeTimeout      time.Duration

	// Backup retention for terminal deployments
	BackupRetention time.Duration
}

// Engine builds the engine configuration from the environment
func Engine() EngineConfig {
	return EngineConfig{
		MaxActiveDeployments: GetEnvInt("MAX_ACTIVE_DEPLOYMENTS", 5),
		AssetConcurrency:     GetEnvInt("ASSET_CONCURRENCY", 4),
		RetryAttempts:        GetEnvInt("TRANSPORT_RETRY_ATTEMPTS", 3),
		MonitorWindow:        GetEnvDuration("MONITOR_WINDOW", 24*time.Hour),
		MonitorInterval:      GetEnvDuration("MONITOR_INTERVAL", 60*time.Second),
		FailureThreshold:     GetEnvInt("MONITOR_FAILURE_THRESHOLD", 3),
		HealthyThreshold:     GetEnvFloat("HEALTH_HEALTHY_THRESHOLD", 80),
		CriticalThreshold:    GetEnvFloat("HEALTH_CRITICAL_THRESHOLD", 60),
		ProbeTimeout:         GetEnvDuration("HEALTH_PROBE_TIMEOUT", 10*time.Second),
		BackupRetention:      GetEnvDuration("BACKUP_RETENTION", 720*time.Hour),
	}
}
