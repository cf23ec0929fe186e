//go:build !linux

package buttons

import "go.uber.org/zap"

func newGPIO(cfg Config, h Handler, log *zap.Logger) (Source, error) {
	return nil, ErrNotSupported
}

func newGPIOMem(cfg Config, h Handler, log *zap.Logger) (Source, error) {
	return nil, ErrNotSupported
}

func newEvdev(cfg Config, h Handler, log *zap.Logger) (Source, error) {
	return nil, ErrNotSupported
}
