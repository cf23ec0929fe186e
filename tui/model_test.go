package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosrix/buttons"
	"gosrix/session"
	"gosrix/srix"
)

type modifyCall struct {
	index int
	word  uint32
}

type fakeController struct {
	snap     srix.Snapshot
	readErr  error
	writeErr error
	written  int
	reads    int
	modifies []modifyCall
}

func (f *fakeController) Read(ctx context.Context) error {
	f.reads++
	if f.readErr != nil {
		return f.readErr
	}
	f.snap.UID = 0xD002000000C0FFEE
	f.snap.State = srix.StateSynced
	return nil
}

func (f *fakeController) Write(ctx context.Context) (int, error) {
	return f.written, f.writeErr
}

func (f *fakeController) Modify(index int, word uint32) error {
	f.modifies = append(f.modifies, modifyCall{index, word})
	f.snap.Words[index] = word
	f.snap.Dirty[index] = true
	f.snap.State = srix.StateDirty
	return nil
}

func (f *fakeController) Snapshot() srix.Snapshot { return f.snap }

// harness drives a Model and runs the commands it returns synchronously.
type harness struct {
	t     *testing.T
	model Model
}

func newHarness(t *testing.T, ctl Controller) *harness {
	return &harness{t: t, model: New(context.Background(), ctl)}
}

func (h *harness) send(msg tea.Msg) *harness {
	updated, cmd := h.model.Update(msg)
	h.model = updated.(Model)
	if cmd != nil {
		if res, ok := cmd().(resultMsg); ok {
			updated, _ = h.model.Update(res)
			h.model = updated.(Model)
		}
	}
	return h
}

func (h *harness) key(k tea.KeyType) *harness {
	return h.send(tea.KeyMsg{Type: k})
}

func (h *harness) rune(r rune) *harness {
	return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func TestModel_ReadFromHome(t *testing.T) {
	ctl := &fakeController{}
	h := newHarness(t, ctl)
	assert.Equal(t, screenHome, h.model.screen)
	assert.Contains(t, h.model.View(), "Place a tag")

	h.key(tea.KeyEnter)
	assert.Equal(t, 1, ctl.reads)
	assert.Equal(t, screenTagInfo, h.model.screen)
	assert.False(t, h.model.busy)
	assert.Contains(t, h.model.View(), "D002000000C0FFEE")
}

func TestModel_ReadFailureStaysHome(t *testing.T) {
	ctl := &fakeController{readErr: errors.New("no tag in field")}
	h := newHarness(t, ctl)

	h.rune('r')
	assert.Equal(t, screenHome, h.model.screen)
	assert.Contains(t, h.model.View(), "no tag in field")
}

func TestModel_BlockNavigation(t *testing.T) {
	ctl := &fakeController{}
	h := newHarness(t, ctl)
	h.key(tea.KeyEnter) // read
	h.key(tea.KeyEnter) // Read blocks
	require.Equal(t, screenBlocks, h.model.screen)

	h.key(tea.KeyDown).key(tea.KeyDown)
	assert.Equal(t, 2, h.model.block)

	h.key(tea.KeyUp).key(tea.KeyUp).key(tea.KeyUp)
	assert.Equal(t, srix.Blocks-1, h.model.block, "wraps to the last block")
	assert.GreaterOrEqual(t, srix.Blocks-1, h.model.offset)
	assert.Contains(t, h.model.View(), "generic[111]")

	h.key(tea.KeyEsc)
	assert.Equal(t, screenTagInfo, h.model.screen)
}

func TestModel_NibbleEditor(t *testing.T) {
	ctl := &fakeController{}
	h := newHarness(t, ctl)
	h.key(tea.KeyEnter).key(tea.KeyEnter)
	for i := 0; i < 20; i++ {
		h.key(tea.KeyDown)
	}
	h.key(tea.KeyEnter) // detail
	require.Equal(t, screenDetail, h.model.screen)
	h.key(tea.KeyEnter) // edit
	require.Equal(t, screenEdit, h.model.screen)

	h.key(tea.KeyUp)
	assert.Equal(t, uint32(0x10000000), h.model.editWord)

	h.key(tea.KeyLeft)
	assert.Equal(t, nibbles-1, h.model.editNibble, "cursor wraps left")
	h.key(tea.KeyDown)
	assert.Equal(t, uint32(0x1000000F), h.model.editWord, "0 wraps to F")
	h.key(tea.KeyRight)
	assert.Equal(t, 0, h.model.editNibble, "cursor wraps right")

	h.key(tea.KeyEnter)
	assert.Equal(t, screenDetail, h.model.screen)
	assert.Equal(t, []modifyCall{{20, 0x1000000F}}, ctl.modifies)
	assert.Equal(t, "Block modified, write to apply", h.model.status)
	assert.True(t, h.model.snap.Dirty[20])
}

func TestModel_EditWithoutChange(t *testing.T) {
	ctl := &fakeController{}
	h := newHarness(t, ctl)
	h.key(tea.KeyEnter).key(tea.KeyEnter).key(tea.KeyEnter).key(tea.KeyEnter)
	require.Equal(t, screenEdit, h.model.screen)

	h.key(tea.KeyUp).key(tea.KeyDown).key(tea.KeyEnter)
	assert.Empty(t, ctl.modifies)
	assert.Equal(t, "No change", h.model.status)

	h.key(tea.KeyEnter).key(tea.KeyUp).key(tea.KeyEsc)
	assert.Equal(t, screenDetail, h.model.screen)
	assert.Empty(t, ctl.modifies)
}

func TestModel_Write(t *testing.T) {
	ctl := &fakeController{writeErr: session.ErrNoChanges}
	h := newHarness(t, ctl)
	h.key(tea.KeyEnter)

	h.rune('w')
	assert.Equal(t, "No change", h.model.status)
	assert.NoError(t, h.model.err)

	ctl.writeErr, ctl.written = nil, 3
	h.key(tea.KeyDown).key(tea.KeyEnter) // Write blocks
	assert.Equal(t, "Wrote 3 blocks", h.model.status)

	ctl.writeErr, ctl.written = srix.ErrVerification, 1
	h.rune('w')
	assert.ErrorIs(t, h.model.err, srix.ErrVerification)
	assert.Equal(t, "Wrote 1 blocks before failing", h.model.status)
}

func TestModel_Buttons(t *testing.T) {
	ctl := &fakeController{}
	h := newHarness(t, ctl)

	h.send(ButtonMsg{Button: buttons.Select})
	assert.Equal(t, screenTagInfo, h.model.screen)

	h.send(ButtonMsg{Button: buttons.Up})
	assert.Equal(t, menuReload, h.model.menu, "menu wraps")

	h.send(ButtonMsg{Button: buttons.Down}).send(ButtonMsg{Button: buttons.Select})
	assert.Equal(t, screenBlocks, h.model.screen)

	h.send(ButtonMsg{Button: buttons.Back})
	assert.Equal(t, screenTagInfo, h.model.screen)
}

func TestModel_SessionEvents(t *testing.T) {
	ctl := &fakeController{}
	h := newHarness(t, ctl)

	var snap srix.Snapshot
	snap.State = srix.StateSynced
	snap.UID = 0xD0020000000000AA
	h.send(EventMsg(session.Event{Type: session.EventRead, Snapshot: snap}))
	assert.Equal(t, screenTagInfo, h.model.screen)

	h.send(EventMsg(session.Event{Type: session.EventBusy}))
	assert.Equal(t, screenTagInfo, h.model.screen)

	h.send(EventMsg(session.Event{Type: session.EventLost}))
	assert.Equal(t, screenHome, h.model.screen)
	assert.Equal(t, "Tag lost", h.model.status)
}

func TestModel_Quit(t *testing.T) {
	h := newHarness(t, &fakeController{})
	_, cmd := h.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
