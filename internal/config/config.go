// Package config builds the effective pipeline configuration from
// defaults, an optional YAML file and HOLOCAM_* environment variables.
// Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/teslashibe/go-holocam/pkg/pipeline"
)

// DefaultPath is read when no path is given and the file exists.
const DefaultPath = "holocam.yaml"

// Environment variables that override the file.
const (
	EnvSegmentURL    = "HOLOCAM_SEGMENT_URL"
	EnvCaptureDevice = "HOLOCAM_CAPTURE_DEVICE"
	EnvOutputDevice  = "HOLOCAM_OUTPUT_DEVICE"
	EnvBackground    = "HOLOCAM_BACKGROUND"
	EnvFallback      = "HOLOCAM_FALLBACK"
)

// Load returns defaults overlaid with the YAML file at path and the
// environment. An empty path falls back to DefaultPath when present.
// The result is not validated.
func Load(path string) (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	ApplyEnv(&cfg, os.Getenv)
	return cfg, nil
}

func loadFile(path string, cfg *pipeline.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from getenv. Unset or empty variables are ignored.
func ApplyEnv(cfg *pipeline.Config, getenv func(string) string) {
	if v := getenv(EnvSegmentURL); v != "" {
		cfg.Segment.BaseURL = v
	}
	if v := getenv(EnvCaptureDevice); v != "" {
		cfg.Capture.Device = v
	}
	if v := getenv(EnvOutputDevice); v != "" {
		cfg.Output.Device = v
	}
	if v := getenv(EnvBackground); v != "" {
		cfg.Background = v
	}
	if v := getenv(EnvFallback); v != "" {
		cfg.Fallback = pipeline.Fallback(v)
	}
}

// Marshal renders cfg as YAML, the same format Load reads.
func Marshal(cfg pipeline.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
