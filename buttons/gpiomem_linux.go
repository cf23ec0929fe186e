//go:build linux

package buttons

import (
	"fmt"
	"time"

	"github.com/warthog618/gpio"
	"go.uber.org/zap"
)

// GPIOMem reads push buttons through the Raspberry Pi /dev/gpiomem
// registers, for kernels without the GPIO character device.
type GPIOMem struct {
	pins []*gpio.Pin
}

func newGPIOMem(cfg Config, h Handler, log *zap.Logger) (Source, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}

	g := &GPIOMem{}
	for b, num := range cfg.pins() {
		pin := gpio.NewPin(num)
		pin.Input()
		pin.PullUp()

		var last time.Time
		err := pin.Watch(gpio.EdgeFalling, func(*gpio.Pin) {
			// No hardware debounce on this path.
			if now := time.Now(); now.Sub(last) > 4*debounce {
				last = now
				log.Debug("Button pressed", zap.Stringer("button", b), zap.Int("pin", num))
				if h != nil {
					h(b)
				}
			}
		})
		if err != nil {
			g.Release()
			return nil, fmt.Errorf("watch %s pin %d: %w", b, num, err)
		}
		g.pins = append(g.pins, pin)
	}
	log.Info("gpiomem buttons ready", zap.Int("buttons", len(g.pins)))
	return g, nil
}

// Release implements Source.
func (g *GPIOMem) Release() error {
	for _, p := range g.pins {
		p.Unwatch()
	}
	g.pins = nil
	return gpio.Close()
}
