// Package tui is the terminal front end: home, tag info, block list, block
// detail and a nibble editor, driven by keys or physical buttons.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"gosrix/buttons"
	"gosrix/session"
	"gosrix/srix"
)

// Controller is the tag session the UI drives.
type Controller interface {
	Read(ctx context.Context) error
	Write(ctx context.Context) (int, error)
	Modify(index int, word uint32) error
	Snapshot() srix.Snapshot
}

type screen int

const (
	screenHome screen = iota
	screenTagInfo
	screenBlocks
	screenDetail
	screenEdit
)

// Tag info menu entries.
const (
	menuReadBlocks = iota
	menuWriteBlocks
	menuReload
	menuLen
)

var menuLabels = [menuLen]string{"Read blocks", "Write blocks", "Reload tag"}

// nibbles per block word.
const nibbles = 2 * srix.BlockSize

// EventMsg carries a session event into the program.
type EventMsg session.Event

// ButtonMsg is a physical button press.
type ButtonMsg struct {
	Button buttons.Button
}

// resultMsg reports the end of an asynchronous tag operation.
type resultMsg struct {
	op      string
	written int
	err     error
}

// Model is the bubbletea model.
type Model struct {
	ctx  context.Context
	ctl  Controller
	keys KeyMap
	help help.Model

	screen screen
	snap   srix.Snapshot
	busy   bool
	status string
	err    error

	menu   int // tag info cursor
	block  int // selected block
	offset int // first visible row in the block list

	editWord   uint32
	editNibble int // 0 is the most significant nibble

	width, height int
}

// New creates the model. ctx bounds the tag operations it starts.
func New(ctx context.Context, ctl Controller) Model {
	m := Model{
		ctx:    ctx,
		ctl:    ctl,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		height: 24,
	}
	m.setSnapshot(ctl.Snapshot())
	return m
}

// NewProgram wraps the model in a full-screen program.
func NewProgram(ctx context.Context, ctl Controller) *tea.Program {
	return tea.NewProgram(New(ctx, ctl), tea.WithAltScreen(), tea.WithContext(ctx))
}

// Observer forwards session events to a running program. Send blocks while
// Update runs, so Update never calls into the session directly.
type Observer struct {
	Program *tea.Program
}

// Observe implements session.Observer.
func (o Observer) Observe(e session.Event) {
	o.Program.Send(EventMsg(e))
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) setSnapshot(s srix.Snapshot) {
	m.snap = s
	if s.State == srix.StateUninitialized {
		m.screen = screenHome
		return
	}
	if m.screen == screenHome {
		m.screen = screenTagInfo
		m.menu = menuReadBlocks
	}
}

func (m Model) readCmd() tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		return resultMsg{op: "read", err: ctl.Read(ctx)}
	}
}

func (m Model) writeCmd() tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		n, err := ctl.Write(ctx)
		return resultMsg{op: "write", written: n, err: err}
	}
}

func (m Model) modifyCmd(index int, word uint32) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		return resultMsg{op: "modify", err: ctl.Modify(index, word)}
	}
}

func (m *Model) finish(r resultMsg) {
	m.busy = false
	m.setSnapshot(m.ctl.Snapshot())

	switch {
	case errors.Is(r.err, session.ErrNoChanges):
		m.err = nil
		m.status = "No change"
	case r.err != nil:
		m.err = r.err
		m.status = ""
		if r.op == "write" && r.written > 0 {
			m.status = fmt.Sprintf("Wrote %d blocks before failing", r.written)
		}
	case r.op == "read":
		m.err = nil
		m.status = fmt.Sprintf("Read tag %016X", m.snap.UID)
	case r.op == "modify":
		m.err = nil
		m.status = "Block modified, write to apply"
	default:
		m.err = nil
		m.status = fmt.Sprintf("Wrote %d blocks", r.written)
	}
}
