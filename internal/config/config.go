package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"hivekit/internal/assign"
	"hivekit/internal/task"
	"hivekit/internal/verify"
)

// Config represents the complete hivekit configuration
type Config struct {
	Verification VerificationConfig `mapstructure:"verification"`
	Assignment   AssignmentConfig   `mapstructure:"assignment"`
	Maintenance  MaintenanceConfig  `mapstructure:"maintenance"`
	Capabilities CapabilitiesConfig `mapstructure:"capabilities"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Paths        PathsConfig        `mapstructure:"paths"`
}

// VerificationConfig controls the verification coordinator
type VerificationConfig struct {
	// VerifiedThreshold is the goal alignment at or above which a result can be verified
	VerifiedThreshold float64 `mapstructure:"verified_threshold"`
	// QualityThreshold is the quality a result must also reach to be verified
	QualityThreshold float64 `mapstructure:"quality_threshold"`
	// PartialThreshold is the goal alignment at or above which a result is partially verified
	PartialThreshold float64 `mapstructure:"partial_threshold"`
	// ReviewThreshold is the confidence below which a failing result goes to human review
	ReviewThreshold float64 `mapstructure:"review_threshold"`
	// AgreementTolerance bounds how far two comprehensive passes may disagree
	AgreementTolerance float64 `mapstructure:"agreement_tolerance"`
	// MaxAttempts bounds inconclusive retries (default: 2)
	MaxAttempts int `mapstructure:"max_attempts"`
	// TimeoutMultiplier scales a task's estimated duration into its verification timeout
	TimeoutMultiplier int `mapstructure:"timeout_multiplier"`
	// TimeoutSeconds applies when a task carries no duration estimate
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// DefaultLevel is the verification level for workload tasks that name none
	// Options: "none", "basic", "standard", "comprehensive"
	DefaultLevel string `mapstructure:"default_level"`
}

// ToVerify converts the section into a coordinator configuration.
func (c *VerificationConfig) ToVerify() verify.Config {
	return verify.Config{
		VerifiedThreshold:  c.VerifiedThreshold,
		QualityThreshold:   c.QualityThreshold,
		PartialThreshold:   c.PartialThreshold,
		ReviewThreshold:    c.ReviewThreshold,
		AgreementTolerance: c.AgreementTolerance,
		MaxAttempts:        c.MaxAttempts,
		TimeoutMultiplier:  c.TimeoutMultiplier,
		Timeout:            time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

// AssignmentConfig controls the assignment engine
type AssignmentConfig struct {
	// MinFit is the minimum capability fit score for eligibility (0 to 1)
	MinFit float64 `mapstructure:"min_fit"`
	// MinEnergy is the minimum agent energy for eligibility (0 to 100)
	MinEnergy float64 `mapstructure:"min_energy"`
	// StaleClaimTimeoutSeconds bounds how long a queue claim may go unconsumed
	StaleClaimTimeoutSeconds int `mapstructure:"stale_claim_timeout_seconds"`
}

// ToAssign converts the section into an engine configuration.
func (c *AssignmentConfig) ToAssign() assign.Config {
	return assign.Config{
		MinFit:            c.MinFit,
		MinEnergy:         c.MinEnergy,
		StaleClaimTimeout: time.Duration(c.StaleClaimTimeoutSeconds) * time.Second,
	}
}

// MaintenanceConfig controls the hive maintenance loop
type MaintenanceConfig struct {
	// IntervalSeconds is how often the hive recovers agent energy,
	// releases stale claims and retries deferred verifications
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// Interval returns the maintenance interval as a time.Duration
func (c *MaintenanceConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// CapabilitiesConfig controls the capability catalog
type CapabilitiesConfig struct {
	// Patterns restricts capability names to these glob patterns.
	// Empty means any name is allowed.
	// Examples: ["lang.*", "infra.*", "review"]
	Patterns []string `mapstructure:"patterns"`
}

// LoggingConfig controls structured logging behavior
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// PathsConfig controls where hivekit stores data
type PathsConfig struct {
	// DataDir is the directory for logs and the database.
	// If empty, defaults to ".hivekit" relative to the working directory.
	// Supports ~ for home directory expansion.
	DataDir string `mapstructure:"data_dir"`
	// DatabaseFile is the SQLite database filename inside DataDir.
	// Empty disables persistence.
	DatabaseFile string `mapstructure:"database_file"`
}

// ResolveDataDir returns the resolved data directory path.
func (p *PathsConfig) ResolveDataDir(baseDir string) string {
	if p.DataDir == "" {
		return filepath.Join(baseDir, ".hivekit")
	}

	path := p.DataDir
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	} else if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// DatabasePath returns the full database path, or "" when persistence
// is disabled.
func (p *PathsConfig) DatabasePath(baseDir string) string {
	if p.DatabaseFile == "" {
		return ""
	}
	return filepath.Join(p.ResolveDataDir(baseDir), p.DatabaseFile)
}

// DefaultVerificationLevel returns the configured default verification
// level, falling back to none on an invalid value.
func (c *Config) DefaultVerificationLevel() task.VerificationLevel {
	level, err := task.ParseVerificationLevel(c.Verification.DefaultLevel)
	if err != nil {
		return task.VerificationNone
	}
	return level
}

// Default returns a Config with sensible default values
func Default() *Config {
	vd := verify.DefaultConfig()
	ad := assign.DefaultConfig()
	return &Config{
		Verification: VerificationConfig{
			VerifiedThreshold:  vd.VerifiedThreshold,
			QualityThreshold:   vd.QualityThreshold,
			PartialThreshold:   vd.PartialThreshold,
			ReviewThreshold:    vd.ReviewThreshold,
			AgreementTolerance: vd.AgreementTolerance,
			MaxAttempts:        vd.MaxAttempts,
			TimeoutMultiplier:  vd.TimeoutMultiplier,
			TimeoutSeconds:     int(vd.Timeout / time.Second),
			DefaultLevel:       "none",
		},
		Assignment: AssignmentConfig{
			MinFit:                   ad.MinFit,
			MinEnergy:                ad.MinEnergy,
			StaleClaimTimeoutSeconds: int(ad.StaleClaimTimeout / time.Second),
		},
		Maintenance: MaintenanceConfig{
			IntervalSeconds: 30,
		},
		Capabilities: CapabilitiesConfig{
			Patterns: []string{},
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Paths: PathsConfig{
			DataDir:      "", // Empty means use default: .hivekit
			DatabaseFile: "hive.db",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Verification defaults
	viper.SetDefault("verification.verified_threshold", defaults.Verification.VerifiedThreshold)
	viper.SetDefault("verification.quality_threshold", defaults.Verification.QualityThreshold)
	viper.SetDefault("verification.partial_threshold", defaults.Verification.PartialThreshold)
	viper.SetDefault("verification.review_threshold", defaults.Verification.ReviewThreshold)
	viper.SetDefault("verification.agreement_tolerance", defaults.Verification.AgreementTolerance)
	viper.SetDefault("verification.max_attempts", defaults.Verification.MaxAttempts)
	viper.SetDefault("verification.timeout_multiplier", defaults.Verification.TimeoutMultiplier)
	viper.SetDefault("verification.timeout_seconds", defaults.Verification.TimeoutSeconds)
	viper.SetDefault("verification.default_level", defaults.Verification.DefaultLevel)

	// Assignment defaults
	viper.SetDefault("assignment.min_fit", defaults.Assignment.MinFit)
	viper.SetDefault("assignment.min_energy", defaults.Assignment.MinEnergy)
	viper.SetDefault("assignment.stale_claim_timeout_seconds", defaults.Assignment.StaleClaimTimeoutSeconds)

	// Maintenance defaults
	viper.SetDefault("maintenance.interval_seconds", defaults.Maintenance.IntervalSeconds)

	// Capability defaults
	viper.SetDefault("capabilities.patterns", defaults.Capabilities.Patterns)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Paths defaults
	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)
	viper.SetDefault("paths.database_file", defaults.Paths.DatabaseFile)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hivekit")
	}
	// Fall back to ~/.config/hivekit
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hivekit"
	}
	return filepath.Join(home, ".config", "hivekit")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
