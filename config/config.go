package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP/WebSocket state surface.
type ServerConfig struct {
	Listen string `yaml:"listen" validate:"required"`
}

// FeedConfig configures the inbound authoritative agent feed.
type FeedConfig struct {
	URL string `yaml:"url" validate:"omitempty,uri"`
	// RedialInterval is the pause between connection attempts.
	RedialIntervalMS int `yaml:"redialIntervalMS" validate:"gte=0"`
}

// MotionConfig tunes the reconciler and the frame cadence. The thresholds
// mirror core.MotionConfig; they are tunables, not calibrated constants.
type MotionConfig struct {
	Deadband       float64 `yaml:"deadband" validate:"gte=0"`
	CorrectionGain float64 `yaml:"correctionGain" validate:"gte=0,lt=1"`
	SnapJump       float64 `yaml:"snapJump" validate:"gte=0"`
	MaxFPS         int     `yaml:"maxFPS" validate:"gt=0,lte=240"`
}

// TopologyConfig points at the network description consumed at load.
type TopologyConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// Config is the root configuration for the visualizer service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Feed     FeedConfig     `yaml:"feed"`
	Motion   MotionConfig   `yaml:"motion"`
	Topology TopologyConfig `yaml:"topology"`
}

// Default returns the configuration used when a field is left unset.
func Default() Config {
	return Config{
		Server:   ServerConfig{Listen: ":8080"},
		Feed:     FeedConfig{RedialIntervalMS: 2000},
		Motion:   MotionConfig{Deadband: 0.1, CorrectionGain: 0.15, SnapJump: 100, MaxFPS: 30},
		Topology: TopologyConfig{Path: "configs/network.json"},
	}
}

// Load reads the YAML configuration at path, fills unset fields with
// defaults, and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults, and validates a YAML configuration document.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// FrameInterval derives the frame pacing interval from MaxFPS.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Motion.MaxFPS)
}

// RedialInterval returns the feed redial pause as a duration.
func (c Config) RedialInterval() time.Duration {
	return time.Duration(c.Feed.RedialIntervalMS) * time.Millisecond
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if c.Feed.RedialIntervalMS == 0 {
		c.Feed.RedialIntervalMS = d.Feed.RedialIntervalMS
	}
	if c.Motion.Deadband == 0 {
		c.Motion.Deadband = d.Motion.Deadband
	}
	if c.Motion.CorrectionGain == 0 {
		c.Motion.CorrectionGain = d.Motion.CorrectionGain
	}
	if c.Motion.SnapJump == 0 {
		c.Motion.SnapJump = d.Motion.SnapJump
	}
	if c.Motion.MaxFPS == 0 {
		c.Motion.MaxFPS = d.Motion.MaxFPS
	}
	if c.Topology.Path == "" {
		c.Topology.Path = d.Topology.Path
	}
}
