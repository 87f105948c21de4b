package config

import (
	"fmt"
	"slices"
	"strings"

	"hivekit/internal/capability"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "verification.verified_threshold")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidVerificationLevels returns the list of valid verification levels
func ValidVerificationLevels() []string {
	return []string{"none", "basic", "standard", "comprehensive"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateVerification()...)
	errors = append(errors, c.validateAssignment()...)
	errors = append(errors, c.validateMaintenance()...)
	errors = append(errors, c.validateCapabilities()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateVerification() []ValidationError {
	var errors []ValidationError
	v := c.Verification

	thresholds := []struct {
		field string
		value float64
	}{
		{"verification.verified_threshold", v.VerifiedThreshold},
		{"verification.quality_threshold", v.QualityThreshold},
		{"verification.partial_threshold", v.PartialThreshold},
		{"verification.review_threshold", v.ReviewThreshold},
	}
	inRange := true
	for _, th := range thresholds {
		if th.value <= 0 || th.value > 1 {
			errors = append(errors, ValidationError{
				Field:   th.field,
				Value:   th.value,
				Message: "must be between 0 and 1",
			})
			inRange = false
		}
	}
	if inRange {
		if v.PartialThreshold >= v.VerifiedThreshold {
			errors = append(errors, ValidationError{
				Field:   "verification.partial_threshold",
				Value:   v.PartialThreshold,
				Message: "must be below verification.verified_threshold",
			})
		}
		if v.ReviewThreshold >= v.PartialThreshold {
			errors = append(errors, ValidationError{
				Field:   "verification.review_threshold",
				Value:   v.ReviewThreshold,
				Message: "must be below verification.partial_threshold",
			})
		}
	}

	if v.AgreementTolerance < 0 || v.AgreementTolerance > 1 {
		errors = append(errors, ValidationError{
			Field:   "verification.agreement_tolerance",
			Value:   v.AgreementTolerance,
			Message: "must be between 0 and 1",
		})
	}
	if v.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "verification.max_attempts",
			Value:   v.MaxAttempts,
			Message: "must be at least 1",
		})
	}
	if v.TimeoutMultiplier < 1 {
		errors = append(errors, ValidationError{
			Field:   "verification.timeout_multiplier",
			Value:   v.TimeoutMultiplier,
			Message: "must be at least 1",
		})
	}
	if v.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "verification.timeout_seconds",
			Value:   v.TimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	if !slices.Contains(ValidVerificationLevels(), v.DefaultLevel) {
		errors = append(errors, ValidationError{
			Field:   "verification.default_level",
			Value:   v.DefaultLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidVerificationLevels(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateAssignment() []ValidationError {
	var errors []ValidationError
	a := c.Assignment

	if a.MinFit < 0 || a.MinFit > 1 {
		errors = append(errors, ValidationError{
			Field:   "assignment.min_fit",
			Value:   a.MinFit,
			Message: "must be between 0 and 1",
		})
	}
	if a.MinEnergy < 0 || a.MinEnergy > 100 {
		errors = append(errors, ValidationError{
			Field:   "assignment.min_energy",
			Value:   a.MinEnergy,
			Message: "must be between 0 and 100",
		})
	}
	if a.StaleClaimTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "assignment.stale_claim_timeout_seconds",
			Value:   a.StaleClaimTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateMaintenance() []ValidationError {
	var errors []ValidationError

	if c.Maintenance.IntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "maintenance.interval_seconds",
			Value:   c.Maintenance.IntervalSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateCapabilities() []ValidationError {
	var errors []ValidationError

	if _, err := capability.NewRegistry(c.Capabilities.Patterns); err != nil {
		errors = append(errors, ValidationError{
			Field:   "capabilities.patterns",
			Value:   c.Capabilities.Patterns,
			Message: "contains an invalid glob pattern",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
