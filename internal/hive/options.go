package hive

import (
	"time"

	"hivekit/internal/assign"
	"hivekit/internal/verify"
)

// hiveConfig holds optional configuration for a Hive.
type hiveConfig struct {
	assignConfig        assign.Config
	verifyConfig        verify.Config
	maintenanceInterval time.Duration
	capabilityPatterns  []string
}

// Option configures a Hive.
type Option func(*hiveConfig)

// WithAssignConfig sets the assignment engine configuration. Zero
// fields fall back to engine defaults.
func WithAssignConfig(cfg assign.Config) Option {
	return func(c *hiveConfig) { c.assignConfig = cfg }
}

// WithVerifyConfig sets the verification coordinator configuration.
// A zero config uses the coordinator defaults.
func WithVerifyConfig(cfg verify.Config) Option {
	return func(c *hiveConfig) { c.verifyConfig = cfg }
}

// WithMaintenanceInterval sets how often the maintenance loop runs.
// A value of 0 uses DefaultMaintenanceInterval.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(c *hiveConfig) { c.maintenanceInterval = d }
}

// WithCapabilityPatterns restricts capability names to the given glob
// patterns. Empty means any name is allowed.
func WithCapabilityPatterns(patterns []string) Option {
	return func(c *hiveConfig) { c.capabilityPatterns = patterns }
}
