package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log.format: %s (must be: text or json)", c.Log.Format))
	}

	if c.Chip.Height <= 0 || c.Chip.Width <= 0 {
		errors = append(errors, fmt.Sprintf("chip.height and chip.width must be > 0, got: %dx%d", c.Chip.Height, c.Chip.Width))
	}

	if c.Inference.URL == "" {
		errors = append(errors, "inference.url is required")
	} else if u, err := url.Parse(c.Inference.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("inference.url is not an absolute URL: %s", c.Inference.URL))
	}
	if c.Inference.ConfidenceThreshold < 0 || c.Inference.ConfidenceThreshold > 100 {
		errors = append(errors, fmt.Sprintf("inference.confidence_threshold must be between 0 and 100, got: %.2f", c.Inference.ConfidenceThreshold))
	}
	if c.Inference.BatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("inference.batch_size must be > 0, got: %d", c.Inference.BatchSize))
	}
	if c.Inference.MaxInFlight <= 0 {
		errors = append(errors, fmt.Sprintf("inference.max_in_flight must be > 0, got: %d", c.Inference.MaxInFlight))
	}
	if c.Inference.Timeout <= 0 {
		errors = append(errors, fmt.Sprintf("inference.timeout must be > 0, got: %v", c.Inference.Timeout))
	}

	if c.Resample.Enabled {
		if c.Resample.TargetGSDcm <= 0 {
			errors = append(errors, fmt.Sprintf("resample.target_gsd_cm must be > 0, got: %.2f", c.Resample.TargetGSDcm))
		}
		if c.Resample.SensorsFile == "" || c.Resample.Sensor == "" {
			errors = append(errors, "resample.sensors_file and resample.sensor are required when resampling is enabled")
		}
		if c.Resample.FlightAGLm <= 0 {
			errors = append(errors, fmt.Sprintf("resample.flight_agl_m must be > 0, got: %.2f", c.Resample.FlightAGLm))
		}
	}

	if c.Output.Thickness <= 0 {
		errors = append(errors, fmt.Sprintf("output.thickness must be > 0, got: %d", c.Output.Thickness))
	}

	for _, ext := range c.ApprovedTypes {
		if !strings.HasPrefix(ext, ".") {
			errors = append(errors, fmt.Sprintf("approved_types entry %q must start with a dot", ext))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
