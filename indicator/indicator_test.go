package indicator

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosrix/session"
	"gosrix/srix"
)

type recording struct {
	calls []string
	err   error
}

func (r *recording) Idle()           { r.calls = append(r.calls, "idle") }
func (r *recording) Busy()           { r.calls = append(r.calls, "busy") }
func (r *recording) Synced()         { r.calls = append(r.calls, "synced") }
func (r *recording) Dirty()          { r.calls = append(r.calls, "dirty") }
func (r *recording) Failed()         { r.calls = append(r.calls, "failed") }
func (r *recording) ConnectionLost() { r.calls = append(r.calls, "lost") }
func (r *recording) Shutdown()       { r.calls = append(r.calls, "shutdown") }
func (r *recording) Release() error {
	r.calls = append(r.calls, "release")
	return r.err
}

func TestNew_NothingConfigured(t *testing.T) {
	ind, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Noop{}, ind)
}

func TestMulti(t *testing.T) {
	a, b := &recording{}, &recording{err: errors.New("stuck")}
	m := NewMulti(a, b)

	m.Busy()
	m.Dirty()
	err := m.Release()
	assert.EqualError(t, err, "stuck")

	want := []string{"busy", "dirty", "release"}
	assert.Equal(t, want, a.calls)
	assert.Equal(t, want, b.calls)
}

func TestShow(t *testing.T) {
	var dirty srix.Snapshot
	dirty.State = srix.StateDirty
	dirty.Dirty[20] = true

	tests := []struct {
		name  string
		event session.Event
		want  string
	}{
		{"busy", session.Event{Type: session.EventBusy}, "busy"},
		{"read clean", session.Event{Type: session.EventRead}, "synced"},
		{"modified", session.Event{Type: session.EventModified, Snapshot: dirty}, "dirty"},
		{"written", session.Event{Type: session.EventWritten}, "synced"},
		{"failed", session.Event{Type: session.EventFailed, Err: srix.ErrTransport}, "failed"},
		{"lost", session.Event{Type: session.EventLost}, "idle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recording{}
			Observer{Indicator: r}.Observe(tt.event)
			assert.Equal(t, []string{tt.want}, r.calls)
		})
	}
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestNeopixel(t *testing.T) {
	var buf bytes.Buffer
	n := newNeopixel(nopCloser{&buf})

	n.ConnectionLost()
	n.Idle()
	n.Busy()
	n.Failed()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{neoConnectionLost, neoIdle, neoBusy, neoFailed}, lines)
	assert.NoError(t, n.Release())
}
