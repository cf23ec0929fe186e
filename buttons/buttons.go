// Package buttons turns physical inputs into navigation presses.
package buttons

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Button is one navigation input.
type Button int

const (
	Up Button = iota
	Down
	Left
	Right
	Select
	Back
)

var names = [...]string{"up", "down", "left", "right", "select", "back"}

func (b Button) String() string {
	if int(b) < len(names) {
		return names[b]
	}
	return fmt.Sprintf("button(%d)", int(b))
}

// Parse returns the button with the given name.
func Parse(name string) (Button, error) {
	name = strings.ToLower(name)
	if name == "enter" || name == "ok" {
		name = "select"
	}
	if name == "esc" || name == "escape" {
		name = "back"
	}
	for i, n := range names {
		if n == name {
			return Button(i), nil
		}
	}
	return 0, fmt.Errorf("unknown button: %s", name)
}

// ErrNotSupported is returned for input types this platform cannot drive.
var ErrNotSupported = errors.New("button input not supported on this platform")

// Config holds configuration for button inputs. Pin numbers of 0 are unused.
type Config struct {
	Type   string `yaml:"type"`   // "gpio", "gpiomem", "evdev" or empty
	Chip   string `yaml:"chip"`   // gpio character device, default gpiochip0
	Device string `yaml:"device"` // evdev input device
	Up     int    `yaml:"up"`
	Down   int    `yaml:"down"`
	Left   int    `yaml:"left"`
	Right  int    `yaml:"right"`
	Select int    `yaml:"select"`
	Back   int    `yaml:"back"`
}

// pins returns the configured pin for each button.
func (c Config) pins() map[Button]int {
	out := make(map[Button]int)
	for b, pin := range map[Button]int{
		Up: c.Up, Down: c.Down, Left: c.Left, Right: c.Right, Select: c.Select, Back: c.Back,
	} {
		if pin > 0 {
			out[b] = pin
		}
	}
	return out
}

// Handler receives button presses. It may be called from driver goroutines.
type Handler func(Button)

// Source is an open button input.
type Source interface {
	Release() error
}

// New opens the configured input. Returns nil if no type is configured.
func New(cfg Config, h Handler, log *zap.Logger) (Source, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Type {
	case "":
		return nil, nil
	case "gpio":
		if len(cfg.pins()) == 0 {
			return nil, errors.New("gpio buttons: no pins configured")
		}
		return newGPIO(cfg, h, log)
	case "gpiomem":
		if len(cfg.pins()) == 0 {
			return nil, errors.New("gpiomem buttons: no pins configured")
		}
		return newGPIOMem(cfg, h, log)
	case "evdev":
		if cfg.Device == "" {
			return nil, errors.New("evdev buttons: no device configured")
		}
		return newEvdev(cfg, h, log)
	default:
		return nil, fmt.Errorf("unknown button type: %s", cfg.Type)
	}
}
