package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/geochip/internal/logger"
)

// Environment variables read by Load.
const (
	EnvConfigPath = "GEOCHIP_CONFIG"
	EnvLogLevel   = "GEOCHIP_LOG_LEVEL"
)

// Config represents the application configuration
type Config struct {
	Log           logger.LogConfig `yaml:"log"`
	Chip          ChipConfig       `yaml:"chip"`
	Inference     InferenceConfig  `yaml:"inference"`
	Resample      ResampleConfig   `yaml:"resample"`
	Labels        LabelsConfig     `yaml:"labels"`
	Output        OutputConfig     `yaml:"output"`
	Store         StoreConfig      `yaml:"store"`
	ApprovedTypes []string         `yaml:"approved_types"`
}

// ChipConfig controls tiling.
type ChipConfig struct {
	Height       int   `yaml:"height"`
	Width        int   `yaml:"width"`
	NoData       uint8 `yaml:"nodata"`
	DiscardBlank bool  `yaml:"discard_blank"`
	// OnDisk writes chips to the project tmp directory instead of memory.
	OnDisk bool `yaml:"on_disk"`
}

// InferenceConfig contains model serving configuration
type InferenceConfig struct {
	URL           string `yaml:"url"`
	SignatureName string `yaml:"signature_name"`
	// ConfidenceThreshold is a percentage, 0-100.
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	BatchSize           int           `yaml:"batch_size"`
	MaxInFlight         int           `yaml:"max_in_flight"`
	Timeout             time.Duration `yaml:"timeout"`
}

// ResampleConfig enables downsampling images to a target ground sample
// distance before chipping.
type ResampleConfig struct {
	Enabled     bool    `yaml:"enabled"`
	TargetGSDcm float64 `yaml:"target_gsd_cm"`
	SensorsFile string  `yaml:"sensors_file"`
	Sensor      string  `yaml:"sensor"`
	FlightAGLm  float64 `yaml:"flight_agl_m"`
}

// LabelsConfig points at the class name and colour files. Both are
// optional.
type LabelsConfig struct {
	LabelMap string `yaml:"label_map"`
	ColorMap string `yaml:"color_map"`
}

// OutputConfig controls where results go and how plots look.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Plot      bool   `yaml:"plot"`
	Thickness int    `yaml:"thickness"`
}

// StoreConfig locates the job history database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: logger.LogConfig{Level: "info", Format: "text", Output: "stderr"},
		Chip: ChipConfig{
			Height: 512,
			Width:  512,
		},
		Inference: InferenceConfig{
			URL:                 "http://tf-server:8501/v1/models/efficientdet-d0:predict",
			SignatureName:       "serving_default",
			ConfidenceThreshold: 30,
			BatchSize:           1,
			MaxInFlight:         8,
			Timeout:             30 * time.Second,
		},
		Resample: ResampleConfig{TargetGSDcm: 2.0},
		Output: OutputConfig{
			Dir:       "./results",
			Plot:      true,
			Thickness: 4,
		},
		Store:         StoreConfig{Path: "./data/geochip.db"},
		ApprovedTypes: []string{".jpg", ".jpeg", ".png", ".tif", ".tiff"},
	}
}

// Load reads and parses the configuration file.
//
// Values missing from the file keep their Default value. An empty path
// falls back to $GEOCHIP_CONFIG and then to the usual locations; if none
// exists the defaults are returned as-is. $GEOCHIP_LOG_LEVEL overrides
// log.level.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration: %w", err)
		}
	}

	cfg.setDefaults()
	cfg.applyEnv()

	return cfg, nil
}

// getDefaultConfigPath returns the first configuration file found, or ""
func getDefaultConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}

	paths := []string{
		"./geochip.yaml",
		"./config/geochip.yaml",
		"/etc/geochip/config.yaml",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// setDefaults fills values a file may have blanked out explicitly.
func (c *Config) setDefaults() {
	d := Default()

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.Output == "" {
		c.Log.Output = d.Log.Output
	}

	if c.Inference.SignatureName == "" {
		c.Inference.SignatureName = d.Inference.SignatureName
	}
	if c.Inference.BatchSize == 0 {
		c.Inference.BatchSize = d.Inference.BatchSize
	}
	if c.Inference.MaxInFlight == 0 {
		c.Inference.MaxInFlight = d.Inference.MaxInFlight
	}
	if c.Inference.Timeout == 0 {
		c.Inference.Timeout = d.Inference.Timeout
	}

	if c.Output.Dir == "" {
		c.Output.Dir = d.Output.Dir
	}
	if c.Output.Thickness == 0 {
		c.Output.Thickness = d.Output.Thickness
	}
	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}
	if len(c.ApprovedTypes) == 0 {
		c.ApprovedTypes = d.ApprovedTypes
	}
}

func (c *Config) applyEnv() {
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		c.Log.Level = lvl
	}
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
