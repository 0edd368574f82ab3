// Package config loads the saluran daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// Config holds the complete daemon configuration.
type Config struct {
	Socket   SocketConfig   `yaml:"socket"`
	Endpoint EndpointConfig `yaml:"endpoint"`
	Logging  LogConfig      `yaml:"logging"`
}

type SocketConfig struct {
	// Path of the UNIX domain socket the daemon binds.
	Path string `yaml:"path"`
}

type EndpointConfig struct {
	// BlockSize caps the size of one outbound fragment, header included.
	BlockSize Size `yaml:"block_size"`
	// RingCapacity is the initial capacity of in-process ring links.
	RingCapacity Size `yaml:"ring_capacity"`
	// ConnectTimeout bounds how long clients retry the daemon socket.
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Size is a byte count that unmarshals from strings like "64KiB" or "1MB"
// as well as plain integers.
type Size datasize.ByteSize

func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	var bs datasize.ByteSize
	if err := bs.UnmarshalText([]byte(raw)); err != nil {
		return fmt.Errorf("invalid size %q: %w", raw, err)
	}
	*s = Size(bs)
	return nil
}

func (s Size) MarshalYAML() (interface{}, error) {
	return datasize.ByteSize(s).String(), nil
}

// Bytes returns the size as an int byte count.
func (s Size) Bytes() int {
	return int(datasize.ByteSize(s).Bytes())
}

// Duration is a time.Duration that supports YAML string unmarshaling.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Socket: SocketConfig{
			Path: "/tmp/saluran.sock",
		},
		Endpoint: EndpointConfig{
			BlockSize:      Size(datasize.GB),
			RingCapacity:   Size(64 * datasize.KB),
			ConnectTimeout: Duration(15 * time.Second),
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load reads config from a YAML file, applying defaults for missing values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Socket.Path == "" {
		return fmt.Errorf("socket.path is required")
	}
	if c.Endpoint.BlockSize.Bytes() < 16 {
		return fmt.Errorf("endpoint.block_size must be at least 16 bytes, got %d", c.Endpoint.BlockSize.Bytes())
	}
	if c.Endpoint.RingCapacity.Bytes() < 1 {
		return fmt.Errorf("endpoint.ring_capacity must be positive")
	}
	if c.Endpoint.ConnectTimeout.Duration() <= 0 {
		return fmt.Errorf("endpoint.connect_timeout must be positive")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'text', got %q", c.Logging.Format)
	}
	return nil
}
