package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

var validSeverities = map[string]bool{
	"Critical": true, "Concerning": true, "Moderate": true, "Good": true, "Excellent": true,
}

var validPriorities = map[string]bool{
	"Urgent": true, "High": true, "Medium": true, "Low": true,
}

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Auth.TokenSecret) < 32 {
		errs = append(errs, "AUTH_TOKEN_SECRET must be at least 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// External service URLs
	if _, err := url.ParseRequestURI(c.Extraction.BaseURL); err != nil {
		errs = append(errs, "EXTRACTION_BASE_URL must be a valid URL")
	}
	if _, err := url.ParseRequestURI(c.Inference.BaseURL); err != nil {
		errs = append(errs, "INFERENCE_BASE_URL must be a valid URL")
	}

	// Fallback policy values must come from the fixed vocabularies
	if !validSeverities[c.Inference.DefaultSeverity] {
		errs = append(errs, fmt.Sprintf("INFERENCE_DEFAULT_SEVERITY %q is not a known severity", c.Inference.DefaultSeverity))
	}
	if !validSeverities[c.Inference.ElevatedSeverity] {
		errs = append(errs, fmt.Sprintf("INFERENCE_ELEVATED_SEVERITY %q is not a known severity", c.Inference.ElevatedSeverity))
	}
	if !validPriorities[c.Inference.DefaultPriority] {
		errs = append(errs, fmt.Sprintf("INFERENCE_DEFAULT_PRIORITY %q is not a known priority", c.Inference.DefaultPriority))
	}
	if c.Inference.DefaultConfidence < 0 || c.Inference.DefaultConfidence > 100 {
		errs = append(errs, fmt.Sprintf("INFERENCE_DEFAULT_CONFIDENCE must be 0-100, got %d", c.Inference.DefaultConfidence))
	}

	if c.Pipeline.TokenBudget < 1 {
		errs = append(errs, fmt.Sprintf("PIPELINE_TOKEN_BUDGET must be positive, got %d", c.Pipeline.TokenBudget))
	}
	if c.Pipeline.CompactionThreshold < 1 {
		errs = append(errs, fmt.Sprintf("PIPELINE_COMPACTION_THRESHOLD must be positive, got %d", c.Pipeline.CompactionThreshold))
	}

	if !c.NATS.Enabled {
		slog.Warn("NATS_ENABLED is false, feedback events will not be consumed")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
