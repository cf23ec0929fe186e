package reader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gosrix/dump"
	"gosrix/srix"
)

// Transport is a tag transport bound to an open reader.
type Transport interface {
	srix.Transport

	// Close releases the reader.
	Close() error
}

// Detector is implemented by transports that can tell whether a tag is in the field.
type Detector interface {
	Detect(ctx context.Context) (bool, error)
}

// Config holds common configuration for reader implementations.
type Config struct {
	Type      string `yaml:"type"`       // "pn532", "sim"
	Device    string `yaml:"device"`     // e.g., "/dev/ttyUSB0"
	Baud      int    `yaml:"baud"`       // baud rate for serial devices
	Driver    string `yaml:"driver"`     // serial driver: "bugst" (default) or "tarm"
	TimeoutMS int    `yaml:"timeout_ms"` // per-command response timeout
	Image     string `yaml:"image"`      // dump loaded into the simulated tag
}

// Timeout returns the per-command timeout, defaulting to one second.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// New creates a Transport based on the provided configuration.
func New(ctx context.Context, cfg Config, log *zap.Logger) (Transport, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch cfg.Type {
	case "sim":
		if cfg.Image == "" {
			log.Info("Simulated tag with blank image")
			return NewSim(DefaultSimUID, srix.Image{}), nil
		}
		d, err := dump.Load(cfg.Image)
		if err != nil {
			return nil, fmt.Errorf("load sim image: %w", err)
		}
		uid := d.UID
		if uid == 0 {
			uid = DefaultSimUID
		}
		log.Info("Simulated tag", zap.String("image", cfg.Image), zap.String("uid", fmt.Sprintf("%016X", uid)))
		return NewSim(uid, d.Image), nil

	case "pn532", "":
		port, err := OpenPort(cfg)
		if err != nil {
			return nil, err
		}
		dev := NewPN532(port, cfg.Timeout(), log)
		if err := dev.Begin(ctx); err != nil {
			port.Close()
			return nil, fmt.Errorf("init pn532 on %s: %w", cfg.Device, err)
		}
		return dev, nil

	default:
		return nil, fmt.Errorf("unknown reader type %q", cfg.Type)
	}
}
