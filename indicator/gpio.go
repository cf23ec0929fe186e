package indicator

import (
	"fmt"

	"github.com/hjkoskel/govattu"
)

// GPIO implements Indicator using discrete GPIO LED pins.
//
//	green          synced
//	green+yellow   modified, waiting to be written
//	yellow         talking to the tag
//	red            last operation failed
//	yellow+red     broker connection lost
type GPIO struct {
	hw        govattu.Vattu
	greenPin  *uint8
	yellowPin *uint8
	redPin    *uint8
}

// NewGPIO creates a new GPIO-based indicator.
func NewGPIO(greenPin, yellowPin, redPin *uint8) (*GPIO, error) {
	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	g := &GPIO{
		hw:        hw,
		greenPin:  greenPin,
		yellowPin: yellowPin,
		redPin:    redPin,
	}
	for _, pin := range g.pins() {
		hw.PinMode(*pin, govattu.ALToutput)
		hw.PinClear(*pin)
	}
	return g, nil
}

func (g *GPIO) pins() []*uint8 {
	var out []*uint8
	for _, p := range []*uint8{g.greenPin, g.yellowPin, g.redPin} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// show switches on exactly the given pins.
func (g *GPIO) show(on ...*uint8) {
	g.allOff()
	for _, pin := range on {
		if pin != nil {
			g.hw.PinSet(*pin)
		}
	}
}

// Idle implements Indicator.Idle.
func (g *GPIO) Idle() { g.allOff() }

// Busy implements Indicator.Busy.
func (g *GPIO) Busy() { g.show(g.yellowPin) }

// Synced implements Indicator.Synced.
func (g *GPIO) Synced() { g.show(g.greenPin) }

// Dirty implements Indicator.Dirty.
func (g *GPIO) Dirty() { g.show(g.greenPin, g.yellowPin) }

// Failed implements Indicator.Failed.
func (g *GPIO) Failed() { g.show(g.redPin) }

// ConnectionLost implements Indicator.ConnectionLost.
func (g *GPIO) ConnectionLost() { g.show(g.yellowPin, g.redPin) }

// Shutdown implements Indicator.Shutdown.
func (g *GPIO) Shutdown() { g.allOff() }

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	g.allOff()
	return g.hw.Close()
}

func (g *GPIO) allOff() {
	for _, pin := range g.pins() {
		g.hw.PinClear(*pin)
	}
}
