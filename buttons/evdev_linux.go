//go:build linux

package buttons

import (
	"context"
	"fmt"

	"github.com/kenshaw/evdev"
	"go.uber.org/zap"
)

// Evdev reads arrow, enter and escape keys from an input device such as a
// USB keypad.
type Evdev struct {
	device *evdev.Evdev
	cancel context.CancelFunc
	done   chan struct{}
}

func newEvdev(cfg Config, h Handler, log *zap.Logger) (Source, error) {
	dev, err := evdev.OpenFile(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", cfg.Device, err)
	}
	log.Info("Opened key device",
		zap.String("name", dev.Name()),
		zap.String("vendor", fmt.Sprintf("0x%04x", dev.ID().Vendor)),
		zap.String("product", fmt.Sprintf("0x%04x", dev.ID().Product)))

	ctx, cancel := context.WithCancel(context.Background())
	e := &Evdev{device: dev, cancel: cancel, done: make(chan struct{})}
	go e.run(ctx, h, log)
	return e, nil
}

func (e *Evdev) run(ctx context.Context, h Handler, log *zap.Logger) {
	defer close(e.done)
	ch := e.device.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			if event == nil {
				log.Warn("Key device closed")
				return
			}
			if _, ok := event.Type.(evdev.KeyType); !ok || event.Value != 1 {
				continue
			}
			if b, ok := keyButton(evdev.KeyType(event.Code)); ok && h != nil {
				h(b)
			}
		}
	}
}

// keyButton maps a key code onto a navigation button.
func keyButton(k evdev.KeyType) (Button, bool) {
	switch k {
	case evdev.KeyUp:
		return Up, true
	case evdev.KeyDown:
		return Down, true
	case evdev.KeyLeft:
		return Left, true
	case evdev.KeyRight:
		return Right, true
	case evdev.KeyEnter, evdev.KeySpace:
		return Select, true
	case evdev.KeyEscape, evdev.KeyBackSpace:
		return Back, true
	}
	return 0, false
}

// Release implements Source.
func (e *Evdev) Release() error {
	e.cancel()
	err := e.device.Close()
	<-e.done
	return err
}
