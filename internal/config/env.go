// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Directories
	DataDir string

	// Network
	ListenAddress string
	APIPort       int

	// API
	APIMaxBodyBytes int

	// Auth
	AdminToken string

	// Retention
	RetentionSchedule string
	RetentionMaxAge   time.Duration

	// Dashboard
	DashboardCacheTTL      time.Duration
	DashboardCacheCapacity int
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any required variable is missing or any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.DataDir = envStr("WATERLINE_DATA_DIR", "/var/lib/waterline")
	cfg.ListenAddress = strings.TrimSpace(envStr("WATERLINE_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.APIPort = envInt("WATERLINE_API_PORT", 8490, &errs)
	cfg.APIMaxBodyBytes = envInt("WATERLINE_API_MAX_BODY_BYTES", 8<<20, &errs)

	// Auth (must be defined; empty means auth disabled)
	adminToken, hasAdminToken := os.LookupEnv("WATERLINE_ADMIN_TOKEN")
	cfg.AdminToken = adminToken

	cfg.RetentionSchedule = envStr("WATERLINE_RETENTION_SCHEDULE", "0 * * * *")
	cfg.RetentionMaxAge = envDuration("WATERLINE_RETENTION_MAX_AGE", 7*24*time.Hour, &errs)

	cfg.DashboardCacheTTL = envDuration("WATERLINE_DASHBOARD_CACHE_TTL", 5*time.Second, &errs)
	cfg.DashboardCacheCapacity = envInt("WATERLINE_DASHBOARD_CACHE_CAPACITY", 64, &errs)

	// --- Validation ---
	if !hasAdminToken {
		errs = append(errs, "WATERLINE_ADMIN_TOKEN must be defined (can be empty)")
	}
	if cfg.DataDir == "" {
		errs = append(errs, "WATERLINE_DATA_DIR must not be empty")
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, "WATERLINE_LISTEN_ADDRESS must not be empty")
	}
	validatePort("WATERLINE_API_PORT", cfg.APIPort, &errs)
	validatePositive("WATERLINE_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)
	if _, err := cron.ParseStandard(cfg.RetentionSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("WATERLINE_RETENTION_SCHEDULE: invalid cron expression %q: %v", cfg.RetentionSchedule, err))
	}
	if cfg.RetentionMaxAge < 0 {
		errs = append(errs, "WATERLINE_RETENTION_MAX_AGE must not be negative")
	}
	if cfg.DashboardCacheTTL <= 0 {
		errs = append(errs, "WATERLINE_DASHBOARD_CACHE_TTL must be positive")
	}
	validatePositive("WATERLINE_DASHBOARD_CACHE_CAPACITY", cfg.DashboardCacheCapacity, &errs)

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(key string, port int, errs *[]string) {
	if port < 1 || port > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: invalid port %d", key, port))
	}
}

func validatePositive(key string, n int, errs *[]string) {
	if n <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be positive", key))
	}
}
