// Package config loads the geochip YAML configuration.
//
// A minimal file only needs the fields that differ from Default:
//
//	inference:
//	  url: http://localhost:8501/v1/models/efficientdet-d0:predict
//	  confidence_threshold: 40
//	chip:
//	  discard_blank: true
//
// Durations use Go syntax ("30s", "2m").
package config
