package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hivekit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or validate hivekit configuration",
	Long: `View or validate hivekit configuration.

Without arguments, displays the current configuration.
Use subcommands to validate the config file or create a default one.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the effective configuration, including values from the
config file and HIVEKIT_* environment variables. Exits non-zero and
lists every violation if the configuration is invalid.`,
	RunE: runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/hivekit/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("verification:")
	fmt.Printf("  verified_threshold: %.2f\n", cfg.Verification.VerifiedThreshold)
	fmt.Printf("  quality_threshold: %.2f\n", cfg.Verification.QualityThreshold)
	fmt.Printf("  partial_threshold: %.2f\n", cfg.Verification.PartialThreshold)
	fmt.Printf("  review_threshold: %.2f\n", cfg.Verification.ReviewThreshold)
	fmt.Printf("  agreement_tolerance: %.2f\n", cfg.Verification.AgreementTolerance)
	fmt.Printf("  max_attempts: %d\n", cfg.Verification.MaxAttempts)
	fmt.Printf("  timeout_multiplier: %d\n", cfg.Verification.TimeoutMultiplier)
	fmt.Printf("  timeout_seconds: %d\n", cfg.Verification.TimeoutSeconds)
	fmt.Printf("  default_level: %s\n", cfg.Verification.DefaultLevel)

	fmt.Println("assignment:")
	fmt.Printf("  min_fit: %.2f\n", cfg.Assignment.MinFit)
	fmt.Printf("  min_energy: %.2f\n", cfg.Assignment.MinEnergy)
	fmt.Printf("  stale_claim_timeout_seconds: %d\n", cfg.Assignment.StaleClaimTimeoutSeconds)

	fmt.Println("maintenance:")
	fmt.Printf("  interval_seconds: %d\n", cfg.Maintenance.IntervalSeconds)

	fmt.Println("capabilities:")
	if len(cfg.Capabilities.Patterns) == 0 {
		fmt.Printf("  patterns: (none - all capability names allowed)\n")
	} else {
		fmt.Printf("  patterns: %s\n", strings.Join(cfg.Capabilities.Patterns, ", "))
	}

	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)

	fmt.Println("paths:")
	fmt.Printf("  data_dir: %s\n", cfg.Paths.DataDir)
	fmt.Printf("  database_file: %s\n", cfg.Paths.DatabaseFile)

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(); err != nil {
		return err
	}

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Configuration is valid (%s)\n", viper.ConfigFileUsed())
	} else {
		fmt.Println("Configuration is valid (defaults)")
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Hivekit Configuration

# Verification disposition thresholds and retry behavior
verification:
  # Goal alignment at or above this can verify the result
  verified_threshold: 0.8
  # Quality the result must also reach to be verified outright
  quality_threshold: 0.7
  # Goal alignment at or above this (but below verified) is a partial pass
  partial_threshold: 0.5
  # Confidence below this parks a failing result for human review
  review_threshold: 0.4
  # Max allowed spread between repeated comprehensive checks
  agreement_tolerance: 0.15
  # Verification attempts before escalating to review
  max_attempts: 2
  # Verification deadline as a multiple of the task's estimated duration
  timeout_multiplier: 3
  # Verification deadline when the task has no estimate
  timeout_seconds: 30
  # Level used when a workload task does not set one
  # Options: none, basic, standard, comprehensive
  default_level: none

# Task assignment settings
assignment:
  # Minimum capability fit for an agent to take a task
  min_fit: 0.5
  # Minimum agent energy to take on work (agents rest at 100)
  min_energy: 10
  # How long a queue claim may sit unconsumed before recovery
  stale_claim_timeout_seconds: 120

# Background maintenance (energy recovery, deferred verification retries)
maintenance:
  interval_seconds: 30

# Capability name allow-list (glob patterns; empty allows everything)
capabilities:
  patterns: []

# Logging settings
logging:
  enabled: true
  # Options: debug, info, warn, error
  level: info

# Data and persistence paths
paths:
  # Directory for logs and the database (relative paths resolve
  # against the working directory)
  data_dir: .hivekit
  # Database file name inside data_dir; empty disables persistence
  database_file: hive.db
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	fmt.Println("Edit this file to customize hivekit's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Println("\nSearch paths:")
	fmt.Printf("  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Printf("  2. $HOME/.config/hivekit/config.yaml\n")
	fmt.Printf("  3. ./config.yaml (current directory)\n")
	fmt.Println("\nEnvironment variables: HIVEKIT_* (e.g., HIVEKIT_VERIFICATION_MAX_ATTEMPTS)")

	return nil
}
