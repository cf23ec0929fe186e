package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"gosrix/buttons"
	"gosrix/session"
	"gosrix/srix"
)

// action is a navigation input, from a key or a button.
type action int

const (
	actNone action = iota
	actUp
	actDown
	actLeft
	actRight
	actSelect
	actBack
	actPgUp
	actPgDown
	actRead
	actWrite
)

func buttonAction(b buttons.Button) action {
	switch b {
	case buttons.Up:
		return actUp
	case buttons.Down:
		return actDown
	case buttons.Left:
		return actLeft
	case buttons.Right:
		return actRight
	case buttons.Select:
		return actSelect
	case buttons.Back:
		return actBack
	}
	return actNone
}

func (m Model) keyAction(msg tea.KeyMsg) action {
	switch {
	case key.Matches(msg, m.keys.Up):
		return actUp
	case key.Matches(msg, m.keys.Down):
		return actDown
	case key.Matches(msg, m.keys.Left):
		return actLeft
	case key.Matches(msg, m.keys.Right):
		return actRight
	case key.Matches(msg, m.keys.Enter):
		return actSelect
	case key.Matches(msg, m.keys.Esc):
		return actBack
	case key.Matches(msg, m.keys.PgUp):
		return actPgUp
	case key.Matches(msg, m.keys.PgDown):
		return actPgDown
	case key.Matches(msg, m.keys.Read):
		return actRead
	case key.Matches(msg, m.keys.Write):
		return actWrite
	}
	return actNone
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.scrollTo(m.block)
		return m, nil

	case EventMsg:
		if msg.Type == session.EventLost {
			m.status = "Tag lost"
			m.err = nil
		}
		if msg.Type != session.EventBusy {
			m.setSnapshot(msg.Snapshot)
		}
		return m, nil

	case resultMsg:
		m.finish(msg)
		return m, nil

	case ButtonMsg:
		return m.apply(buttonAction(msg.Button))

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		return m.apply(m.keyAction(msg))
	}
	return m, nil
}

func (m Model) apply(a action) (tea.Model, tea.Cmd) {
	if a == actNone || m.busy {
		return m, nil
	}

	switch a {
	case actRead:
		return m.startRead()
	case actWrite:
		if m.snap.State != srix.StateUninitialized {
			return m.startWrite()
		}
		return m, nil
	}

	switch m.screen {
	case screenHome:
		if a == actSelect {
			return m.startRead()
		}
	case screenTagInfo:
		return m.updateTagInfo(a)
	case screenBlocks:
		m.updateBlocks(a)
	case screenDetail:
		m.updateDetail(a)
	case screenEdit:
		cmd := m.updateEdit(a)
		return m, cmd
	}
	return m, nil
}

func (m Model) startRead() (tea.Model, tea.Cmd) {
	m.busy = true
	m.status = "Reading..."
	m.err = nil
	return m, m.readCmd()
}

func (m Model) startWrite() (tea.Model, tea.Cmd) {
	m.busy = true
	m.status = "Writing..."
	m.err = nil
	return m, m.writeCmd()
}

func (m Model) updateTagInfo(a action) (tea.Model, tea.Cmd) {
	switch a {
	case actUp:
		m.menu = (m.menu + menuLen - 1) % menuLen
	case actDown:
		m.menu = (m.menu + 1) % menuLen
	case actSelect:
		switch m.menu {
		case menuReadBlocks:
			m.screen = screenBlocks
		case menuWriteBlocks:
			return m.startWrite()
		case menuReload:
			return m.startRead()
		}
	}
	return m, nil
}

// listHeight is the number of block rows shown at once.
func (m Model) listHeight() int {
	h := m.height - 8
	if h < 4 {
		h = 4
	}
	return h
}

func (m *Model) scrollTo(block int) {
	h := m.listHeight()
	if block < m.offset {
		m.offset = block
	}
	if block >= m.offset+h {
		m.offset = block - h + 1
	}
}

func (m *Model) updateBlocks(a action) {
	switch a {
	case actUp:
		m.block = (m.block + srix.Blocks - 1) % srix.Blocks
	case actDown:
		m.block = (m.block + 1) % srix.Blocks
	case actPgUp, actLeft:
		m.block = max(m.block-m.listHeight(), 0)
	case actPgDown, actRight:
		m.block = min(m.block+m.listHeight(), srix.Blocks-1)
	case actSelect:
		m.screen = screenDetail
	case actBack:
		m.screen = screenTagInfo
	}
	m.scrollTo(m.block)
}

func (m *Model) updateDetail(a action) {
	switch a {
	case actSelect:
		m.screen = screenEdit
		m.editWord = m.snap.Words[m.block]
		m.editNibble = 0
	case actBack:
		m.screen = screenBlocks
	case actUp:
		m.block = (m.block + srix.Blocks - 1) % srix.Blocks
		m.scrollTo(m.block)
	case actDown:
		m.block = (m.block + 1) % srix.Blocks
		m.scrollTo(m.block)
	}
}

// updateEdit changes the selected nibble with wraparound on both axes.
// Confirming hands the word to the controller asynchronously.
func (m *Model) updateEdit(a action) tea.Cmd {
	shift := uint(4 * (nibbles - 1 - m.editNibble))
	nib := (m.editWord >> shift) & 0xF

	switch a {
	case actUp:
		nib = (nib + 1) & 0xF
	case actDown:
		nib = (nib + 0xF) & 0xF
	case actLeft:
		m.editNibble = (m.editNibble + nibbles - 1) % nibbles
		return nil
	case actRight:
		m.editNibble = (m.editNibble + 1) % nibbles
		return nil
	case actSelect:
		m.screen = screenDetail
		if m.editWord == m.snap.Words[m.block] {
			m.status = "No change"
			m.err = nil
			return nil
		}
		m.busy = true
		return m.modifyCmd(m.block, m.editWord)
	case actBack:
		m.screen = screenDetail
		return nil
	default:
		return nil
	}
	m.editWord = m.editWord&^(0xF<<shift) | nib<<shift
	return nil
}
