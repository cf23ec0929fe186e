//go:build linux

package buttons

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"
)

const debounce = 5 * time.Millisecond

// GPIO reads push buttons wired to ground on GPIO character device lines.
type GPIO struct {
	lines []*gpiocdev.Line
}

func newGPIO(cfg Config, h Handler, log *zap.Logger) (Source, error) {
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}

	g := &GPIO{}
	for b, pin := range cfg.pins() {
		line, err := gpiocdev.RequestLine(cfg.Chip, pin,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(debounce),
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				if evt.Type != gpiocdev.LineEventFallingEdge {
					return
				}
				log.Debug("Button pressed", zap.Stringer("button", b), zap.Int("pin", pin))
				if h != nil {
					h(b)
				}
			}))
		if err != nil {
			g.Release()
			return nil, fmt.Errorf("request %s line %d: %w", b, pin, err)
		}
		g.lines = append(g.lines, line)
	}
	log.Info("GPIO buttons ready", zap.String("chip", cfg.Chip), zap.Int("buttons", len(g.lines)))
	return g, nil
}

// Release implements Source.
func (g *GPIO) Release() error {
	var lastErr error
	for _, l := range g.lines {
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	g.lines = nil
	return lastErr
}
