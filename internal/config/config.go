package config

import (
	"fmt"
	"os"

	"github.com/dhruv3/CudaCode/internal/device"
	"github.com/dhruv3/CudaCode/internal/probe"
	"github.com/dhruv3/CudaCode/internal/sieve"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBound       = 102
	DefaultDevice      = device.BackendAuto
	DefaultMemoryLimit = device.DefaultHostMemory
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
)

type Config struct {
	Bound       int          `yaml:"bound"`
	Device      string       `yaml:"device"`
	Workers     int          `yaml:"workers"`
	MemoryLimit uint64       `yaml:"memory_limit"`
	LaneWidth   int          `yaml:"lane_width"`
	MaxBound    int          `yaml:"max_bound"`
	LogLevel    string       `yaml:"log_level"`
	LogFormat   string       `yaml:"log_format"`
	Probe       probe.Policy `yaml:"probe"`
}

func DefaultConfig() *Config {
	return &Config{
		Bound:       DefaultBound,
		Device:      DefaultDevice,
		MemoryLimit: DefaultMemoryLimit,
		MaxBound:    sieve.DefaultMaxBound,
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		Probe:       probe.DefaultPolicy(),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Bound < 2 {
		return fmt.Errorf("bound must be at least 2, got %d", c.Bound)
	}
	if c.MaxBound > 0 && c.Bound > c.MaxBound {
		return fmt.Errorf("bound %d exceeds max_bound %d", c.Bound, c.MaxBound)
	}
	switch c.Device {
	case device.BackendAuto, device.BackendHost, device.BackendCUDA:
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.LaneWidth < 0 {
		return fmt.Errorf("lane_width must not be negative, got %d", c.LaneWidth)
	}
	if c.Probe.WideWidth < 1 || c.Probe.NarrowWidth < 1 {
		return fmt.Errorf("probe widths must be positive, got wide=%d narrow=%d",
			c.Probe.WideWidth, c.Probe.NarrowWidth)
	}
	return nil
}

// HostOptions returns the options for a host device built from c.
func (c *Config) HostOptions() []device.HostOption {
	opts := []device.HostOption{}
	if c.Workers > 0 {
		opts = append(opts, device.WithWorkers(c.Workers))
	}
	if c.MemoryLimit > 0 {
		opts = append(opts, device.WithMemoryLimit(c.MemoryLimit))
	}
	return opts
}

// EngineOptions returns the sieve options described by c.
func (c *Config) EngineOptions() []sieve.Option {
	opts := []sieve.Option{sieve.WithPolicy(c.Probe)}
	if c.LaneWidth > 0 {
		opts = append(opts, sieve.WithLaneWidth(c.LaneWidth))
	}
	if c.MaxBound > 0 {
		opts = append(opts, sieve.WithMaxBound(c.MaxBound))
	}
	return opts
}
