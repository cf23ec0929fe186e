package reader

import (
	"fmt"
	"io"
	"time"

	bugst "go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/tarm/serial"
)

// pollTimeout bounds a single port read so response deadlines can be checked.
const pollTimeout = 50 * time.Millisecond

// OpenPort opens the serial device named in cfg with the configured driver.
func OpenPort(cfg Config) (io.ReadWriteCloser, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("no reader device configured")
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = 115200
	}

	switch cfg.Driver {
	case "tarm":
		c := &serial.Config{
			Name:        cfg.Device,
			Baud:        baud,
			ReadTimeout: pollTimeout,
		}
		port, err := serial.OpenPort(c)
		if err != nil {
			return nil, fmt.Errorf("open serial %s: %w", cfg.Device, err)
		}
		return port, nil

	case "bugst", "":
		mode := &bugst.Mode{
			BaudRate: baud,
			Parity:   bugst.NoParity,
			DataBits: 8,
			StopBits: bugst.OneStopBit,
		}
		port, err := bugst.Open(cfg.Device, mode)
		if err != nil {
			return nil, fmt.Errorf("open serial %s: %w", cfg.Device, err)
		}
		if err := port.SetReadTimeout(pollTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
		return port, nil

	default:
		return nil, fmt.Errorf("unknown serial driver %q", cfg.Driver)
	}
}

// PortInfo describes a serial port that may host a reader.
type PortInfo struct {
	Name         string
	USB          bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

func (p PortInfo) String() string {
	if !p.USB {
		return p.Name
	}
	s := fmt.Sprintf("%s (USB %s:%s", p.Name, p.VID, p.PID)
	if p.Product != "" {
		s += " " + p.Product
	}
	if p.SerialNumber != "" {
		s += " sn " + p.SerialNumber
	}
	return s + ")"
}

// List enumerates the serial ports available on this host.
func List() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}
	out := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		out = append(out, PortInfo{
			Name:         p.Name,
			USB:          p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return out, nil
}
