package indicator

import "gosrix/session"

// Indicator is the interface for status indicator implementations (LEDs, neopixels, etc).
type Indicator interface {
	// Idle sets the indicator to idle/ready state, no tag loaded.
	Idle()

	// Busy is shown while the reader talks to the tag.
	Busy()

	// Synced means the loaded memory matches the tag.
	Synced()

	// Dirty means blocks were modified and wait to be written.
	Dirty()

	// Failed means the last tag operation failed.
	Failed()

	// ConnectionLost sets the indicator to connection lost state.
	ConnectionLost()

	// Shutdown sets the indicator to shutdown state.
	Shutdown()

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for indicator implementations.
type Config struct {
	// GPIO LED pins (nil = not configured)
	GreenPin  *uint8 `yaml:"green_pin"`
	YellowPin *uint8 `yaml:"yellow_pin"`
	RedPin    *uint8 `yaml:"red_pin"`

	// Neopixel pipe path (empty = not configured)
	NeopixelPipe string `yaml:"neopixel_pipe"`
}

// New creates an Indicator based on the provided configuration.
// Returns a Multi indicator if both GPIO and Neopixel are configured.
func New(cfg Config) (Indicator, error) {
	var indicators []Indicator

	if cfg.GreenPin != nil || cfg.YellowPin != nil || cfg.RedPin != nil {
		gpio, err := NewGPIO(cfg.GreenPin, cfg.YellowPin, cfg.RedPin)
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, gpio)
	}

	if cfg.NeopixelPipe != "" {
		neo, err := NewNeopixel(cfg.NeopixelPipe)
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, neo)
	}

	switch len(indicators) {
	case 0:
		return &Noop{}, nil
	case 1:
		return indicators[0], nil
	}
	return NewMulti(indicators...), nil
}

// Observer drives an Indicator from session events.
type Observer struct {
	Indicator Indicator
}

// Observe implements session.Observer.
func (o Observer) Observe(e session.Event) {
	Show(o.Indicator, e)
}

// Show maps one session event onto the indicator.
func Show(ind Indicator, e session.Event) {
	switch e.Type {
	case session.EventBusy:
		ind.Busy()
	case session.EventFailed:
		ind.Failed()
	case session.EventLost:
		ind.Idle()
	case session.EventRead, session.EventModified, session.EventWritten, session.EventImported:
		if e.Snapshot.DirtyCount() > 0 {
			ind.Dirty()
		} else {
			ind.Synced()
		}
	}
}
