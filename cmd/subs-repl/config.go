package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "250ms" or "1.5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config holds the subs-repl configuration file contents.
// Command-line flags override file values.
type Config struct {
	// ReadyLatency is the simulated provider's acquisition latency.
	ReadyLatency Duration `yaml:"readyLatency"`

	// LogFile, when set, receives the CBOR lifecycle event stream.
	LogFile string `yaml:"logFile"`

	// LogLevel is the console log level: debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	// MaxEntries and MaxClientsPerEntry cap the registry (0 = unlimited).
	MaxEntries         int `yaml:"maxEntries"`
	MaxClientsPerEntry int `yaml:"maxClientsPerEntry"`

	// DefaultClient is the client id used when a command names none.
	// Auto-generated when empty.
	DefaultClient string `yaml:"defaultClient"`

	// Preregister lists subscriptions to establish at startup.
	Preregister []Preregister `yaml:"preregister"`
}

// Preregister describes one subscription to establish at startup.
type Preregister struct {
	Name       string   `yaml:"name"`
	Args       []any    `yaml:"args"`
	Client     string   `yaml:"client"`
	Permanent  bool     `yaml:"permanent"`
	UnsubDelay Duration `yaml:"unsubDelay"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	for i, pre := range cfg.Preregister {
		if pre.Name == "" {
			return nil, fmt.Errorf("preregister entry %d: name is required", i)
		}
	}
	return &cfg, nil
}
