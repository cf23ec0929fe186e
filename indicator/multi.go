package indicator

// Multi combines multiple Indicator implementations.
type Multi struct {
	indicators []Indicator
}

// NewMulti fans every call out to inds in order.
func NewMulti(inds ...Indicator) *Multi {
	return &Multi{indicators: inds}
}

func (m *Multi) each(fn func(Indicator)) {
	for _, ind := range m.indicators {
		fn(ind)
	}
}

// Idle implements Indicator.Idle.
func (m *Multi) Idle() { m.each(Indicator.Idle) }

// Busy implements Indicator.Busy.
func (m *Multi) Busy() { m.each(Indicator.Busy) }

// Synced implements Indicator.Synced.
func (m *Multi) Synced() { m.each(Indicator.Synced) }

// Dirty implements Indicator.Dirty.
func (m *Multi) Dirty() { m.each(Indicator.Dirty) }

// Failed implements Indicator.Failed.
func (m *Multi) Failed() { m.each(Indicator.Failed) }

// ConnectionLost implements Indicator.ConnectionLost.
func (m *Multi) ConnectionLost() { m.each(Indicator.ConnectionLost) }

// Shutdown implements Indicator.Shutdown.
func (m *Multi) Shutdown() { m.each(Indicator.Shutdown) }

// Release implements Indicator.Release. Every indicator is released; the
// last error is returned.
func (m *Multi) Release() error {
	var lastErr error
	for _, ind := range m.indicators {
		if err := ind.Release(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
