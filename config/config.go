// Package config loads toxcall runtime options.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/toxcall/bridge"
	"github.com/opd-ai/toxcall/call"
)

// ErrInvalidOptions indicates an option value out of range.
var ErrInvalidOptions = errors.New("invalid options")

// Options contains the configuration for a toxcall client.
type Options struct {
	// Call timing
	TickInterval   time.Duration `yaml:"tick_interval"`
	RingTimeout    time.Duration `yaml:"ring_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// EventURL is the backend event socket. Empty disables the bridge.
	EventURL        string `yaml:"event_url"`
	FrameQueueDepth int    `yaml:"frame_queue_depth"`

	// DeviceSysRoot prefixes the procfs and sysfs paths used for device
	// enumeration.
	DeviceSysRoot string `yaml:"device_sys_root"`
	// LoadCameraDriver loads the UVC driver at startup when a camera is
	// attached without it.
	LoadCameraDriver bool `yaml:"load_camera_driver"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// FrameDumpDir receives a PNG of the last frame of each source on exit.
	FrameDumpDir string `yaml:"frame_dump_dir"`
	// MetricsAddr serves /metrics when set.
	MetricsAddr string `yaml:"metrics_addr"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	defaults := call.DefaultConfig()
	return &Options{
		TickInterval:    defaults.TickInterval,
		RingTimeout:     defaults.RingTimeout,
		CommandTimeout:  defaults.CommandTimeout,
		FrameQueueDepth: bridge.DefaultConfig().FrameQueueDepth,
		DeviceSysRoot:   "/",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads YAML options from path over the defaults.
func Load(path string) (*Options, error) {
	opts := NewOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"path":     path,
	}).Debug("Loaded configuration file")
	return opts, opts.Validate()
}

// Validate checks option ranges.
func (o *Options) Validate() error {
	switch {
	case o.TickInterval <= 0:
		return fmt.Errorf("%w: tick_interval must be positive, got %v", ErrInvalidOptions, o.TickInterval)
	case o.RingTimeout <= 0:
		return fmt.Errorf("%w: ring_timeout must be positive, got %v", ErrInvalidOptions, o.RingTimeout)
	case o.CommandTimeout <= 0:
		return fmt.Errorf("%w: command_timeout must be positive, got %v", ErrInvalidOptions, o.CommandTimeout)
	case o.FrameQueueDepth <= 0:
		return fmt.Errorf("%w: frame_queue_depth must be positive, got %d", ErrInvalidOptions, o.FrameQueueDepth)
	}
	if _, err := logrus.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidOptions, err)
	}
	if o.LogFormat != "text" && o.LogFormat != "json" {
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidOptions, o.LogFormat)
	}
	return nil
}

// CallConfig returns the controller settings.
func (o *Options) CallConfig() call.Config {
	return call.Config{
		TickInterval:   o.TickInterval,
		RingTimeout:    o.RingTimeout,
		CommandTimeout: o.CommandTimeout,
	}
}

// BridgeConfig returns the event bridge settings.
func (o *Options) BridgeConfig() bridge.Config {
	return bridge.Config{FrameQueueDepth: o.FrameQueueDepth}
}

// ConfigureLogging applies the log level and format to the standard logger.
func (o *Options) ConfigureLogging() error {
	level, err := logrus.ParseLevel(o.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidOptions, err)
	}
	logrus.SetLevel(level)
	if o.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
