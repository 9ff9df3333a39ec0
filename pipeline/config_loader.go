package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MQTTConfig holds MQTT connection settings for progress publishing.
// Leaving broker empty disables MQTT entirely.
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty" json:"publishPrefix,omitempty"`
	ClientID      string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config represents the full configuration file.
type Config struct {
	// Endpoints overrides geometry URLs per tier name (PROVINCE, CMA, ...).
	Endpoints map[string]string `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`

	// StatBaseURL overrides the statistics service root.
	StatBaseURL string `yaml:"statBaseUrl,omitempty" json:"statBaseUrl,omitempty"`

	// BatchSize is the stream batch capacity (default 50, observed useful
	// range 50-100).
	BatchSize int `yaml:"batchSize,omitempty" json:"batchSize,omitempty"`

	// BufferFraction expands the viewport before filtering (default 0.15).
	BufferFraction float64 `yaml:"bufferFraction,omitempty" json:"bufferFraction,omitempty"`

	// InitialZoom seeds the LOD machine (default 4.5, CMA).
	InitialZoom float64 `yaml:"initialZoom,omitempty" json:"initialZoom,omitempty"`

	MQTT MQTTConfig `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		BufferFraction: DefaultBufferFraction,
		InitialZoom:    4.5,
	}
}

// LoadConfig loads the pipeline configuration from a YAML file and applies
// defaults for unset fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if config.BatchSize < 0 {
		return nil, fmt.Errorf("batchSize must be positive, got %d", config.BatchSize)
	}
	if config.BufferFraction < 0 || config.BufferFraction > 1 {
		return nil, fmt.Errorf("bufferFraction must be in [0, 1], got %g", config.BufferFraction)
	}
	for name := range config.Endpoints {
		if _, err := ParseTier(name); err != nil {
			return nil, fmt.Errorf("endpoints: %w", err)
		}
	}

	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BufferFraction == 0 {
		config.BufferFraction = DefaultBufferFraction
	}
	if config.InitialZoom == 0 {
		config.InitialZoom = 4.5
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
