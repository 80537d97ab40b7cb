package config

import (
	"fmt"
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
	"github.com/sebader/iotedge-end2end/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the monitor-side configuration.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	errs := validateShared(cfg)

	if cfg.Destinations == "" {
		errs = append(errs, ValidationError{Field: "DESTINATIONS", Message: "required"})
	} else if _, err := domain.ParseDestinations(cfg.Destinations); err != nil {
		errs = append(errs, ValidationError{Field: "DESTINATIONS", Message: err.Error()})
	}

	if cfg.HubAPIURL == "" {
		errs = append(errs, ValidationError{Field: "HUB_API_URL", Message: "required"})
	}

	errs = appendDurationErrs(errs, "INVOKE_TIMEOUT", cfg.InvokeTimeoutStr)
	errs = appendDurationErrs(errs, "RESPONSE_TIMEOUT", cfg.ResponseTimeoutStr)
	errs = appendDurationErrs(errs, "TRIGGER_INTERVAL", cfg.TriggerIntervalStr)
	errs = appendDurationErrs(errs, "ROUNDTRIP_THRESHOLD", cfg.RoundTripThresholdStr)
	errs = appendDurationErrs(errs, "SWEEP_INTERVAL", cfg.SweepIntervalStr)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateEdge checks the forwarder-side configuration.
func ValidateEdge(cfg Config) error {
	errs := validateShared(cfg)

	if cfg.HubIngestURL == "" {
		errs = append(errs, ValidationError{Field: "HUB_INGEST_URL", Message: "required"})
	}

	errs = appendDurationErrs(errs, "FORWARD_TIMEOUT", cfg.ForwardTimeoutStr)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateShared(cfg Config) ValidationErrors {
	var errs ValidationErrors

	if _, err := logging.ParseLevel(cfg.LogLevelStr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "LOG_LEVEL",
			Message: "must be one of fatal, error, warn, info, debug, verbose",
		})
	}

	return errs
}

func appendDurationErrs(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}
	if d <= 0 {
		return append(errs, ValidationError{Field: field, Message: "must be positive"})
	}
	return errs
}
