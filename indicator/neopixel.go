package indicator

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Neopixel command strings for the external neopixel tool.
const (
	neoConnectionLost = "@2 !150000 001010"
	neoIdle           = "@3 !150000 400000"
	neoBusy           = "@1 !20000 202000"
	neoSynced         = "@0 008000"
	neoDirty          = "@3 !80000 404000"
	neoFailed         = "@2 !10000 ff"
	neoTerminated     = "@0 010101"
)

// Neopixel implements Indicator using an external neopixel tool via named pipe.
type Neopixel struct {
	mu   sync.Mutex
	pipe io.WriteCloser
}

// NewNeopixel opens the neopixel tool's pipe.
func NewNeopixel(pipePath string) (*Neopixel, error) {
	f, err := os.OpenFile(pipePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open neopixel pipe %s: %w", pipePath, err)
	}
	return newNeopixel(f), nil
}

func newNeopixel(w io.WriteCloser) *Neopixel {
	return &Neopixel{pipe: w}
}

// Idle implements Indicator.Idle.
func (n *Neopixel) Idle() { n.write(neoIdle) }

// Busy implements Indicator.Busy.
func (n *Neopixel) Busy() { n.write(neoBusy) }

// Synced implements Indicator.Synced.
func (n *Neopixel) Synced() { n.write(neoSynced) }

// Dirty implements Indicator.Dirty.
func (n *Neopixel) Dirty() { n.write(neoDirty) }

// Failed implements Indicator.Failed.
func (n *Neopixel) Failed() { n.write(neoFailed) }

// ConnectionLost implements Indicator.ConnectionLost.
func (n *Neopixel) ConnectionLost() { n.write(neoConnectionLost) }

// Shutdown implements Indicator.Shutdown.
func (n *Neopixel) Shutdown() { n.write(neoTerminated) }

// Release implements Indicator.Release.
func (n *Neopixel) Release() error {
	if n.pipe == nil {
		return nil
	}
	return n.pipe.Close()
}

func (n *Neopixel) write(s string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pipe != nil {
		n.pipe.Write([]byte(s + "\n"))
	}
}
