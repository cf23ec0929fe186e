package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"gosrix/buttons"
	"gosrix/eventpipe"
	"gosrix/indicator"
	"gosrix/mqtt"
	"gosrix/reader"
)

const defaultConfigFile = "gosrix.cfg"

// Config is the main configuration structure for gosrix.
type Config struct {
	// General settings
	ClientID  string `yaml:"client_id"`
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // console or json
	LogFile   string `yaml:"log_file"`   // defaults to stderr, or gosrix.log with the TUI
	TUI       bool   `yaml:"tui"`
	AutoRead  bool   `yaml:"auto_read"` // read a tag as soon as it enters the field
	PollMS    int    `yaml:"poll_ms"`   // tag presence poll interval
	PingSecs  int    `yaml:"ping_secs"`

	// Reader configuration
	Reader reader.Config `yaml:"reader"`

	// MQTT connection settings
	MQTT mqtt.Config `yaml:"mqtt"`

	// Indicator configuration
	Indicator indicator.Config `yaml:"indicator"`

	// Physical navigation buttons
	Buttons buttons.Config `yaml:"buttons"`

	// Named pipe command channel
	EventPipe eventpipe.Config `yaml:"event_pipe"`
}

// loadConfig reads path. A missing default config file yields the defaults.
func loadConfig(path string, explicit bool) (Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("open config: %w", err)
	}

	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.ClientID == "" {
		if host, err := os.Hostname(); err == nil {
			c.ClientID = host
		} else {
			c.ClientID = "gosrix"
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PollMS <= 0 {
		c.PollMS = 500
	}
	if c.PingSecs <= 0 {
		c.PingSecs = 120
	}
}

func (c Config) pollInterval() time.Duration {
	return time.Duration(c.PollMS) * time.Millisecond
}

// newLogger builds the process logger. With the TUI on, output goes to a
// file so it does not tear the screen.
func newLogger(c Config, tui bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.LogFormat != "json" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	out := c.LogFile
	if out == "" && tui {
		out = "gosrix.log"
	}
	if out != "" {
		zc.OutputPaths = []string{out}
		zc.ErrorOutputPaths = []string{out}
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return zc.Build()
}
