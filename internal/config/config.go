package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete recorder configuration.
type Config struct {
	Source SourceConfig `yaml:"source"`
	Motion MotionConfig `yaml:"motion"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
}

// SourceConfig selects the frame source. File and URL take precedence over
// the camera device.
type SourceConfig struct {
	Device int    `yaml:"device"`
	File   string `yaml:"file"`
	URL    string `yaml:"url"`
}

type MotionConfig struct {
	Threshold float64       `yaml:"threshold"` // kinetic energy, depends on resolution
	Extension time.Duration `yaml:"extension"` // recording window reset on every trigger
}

type OutputConfig struct {
	Dir     string  `yaml:"dir"`
	FPS     float64 `yaml:"fps"`
	Codec   string  `yaml:"codec"`
	Overlay bool    `yaml:"overlay"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// MQTTConfig enables session notifications when Broker is set.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

func Default() *Config {
	return &Config{
		Source: SourceConfig{Device: 0},
		Motion: MotionConfig{
			Threshold: 1000,
			Extension: 30 * time.Second,
		},
		Output: OutputConfig{
			Dir:   ".",
			FPS:   10,
			Codec: "MJPG",
		},
		Log: LogConfig{Level: "info"},
		MQTT: MQTTConfig{
			ClientID:    "motion-recorder",
			TopicPrefix: "motion-recorder",
		},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Source.File != "" && c.Source.URL != "" {
		return errors.New("source: file and url are mutually exclusive")
	}
	if c.Source.Device < 0 {
		return fmt.Errorf("source: invalid device %d", c.Source.Device)
	}
	if !(c.Motion.Threshold > 0) {
		return fmt.Errorf("motion: threshold must be positive, got %v", c.Motion.Threshold)
	}
	if c.Motion.Extension <= 0 {
		return fmt.Errorf("motion: extension must be positive, got %v", c.Motion.Extension)
	}
	if !(c.Output.FPS > 0) {
		return fmt.Errorf("output: fps must be positive, got %v", c.Output.FPS)
	}
	if len(c.Output.Codec) != 4 {
		return fmt.Errorf("output: codec must be a fourcc, got %q", c.Output.Codec)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}
