package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gosrix/srix"
)

// View implements tea.Model.
func (m Model) View() string {
	var body string
	switch m.screen {
	case screenHome:
		body = m.viewHome()
	case screenTagInfo:
		body = m.viewTagInfo()
	case screenBlocks:
		body = m.viewBlocks()
	case screenDetail:
		body = m.viewDetail()
	case screenEdit:
		body = m.viewEdit()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render("SRIX4K"),
		body,
		m.viewStatus(),
		m.help.View(m.keys),
	)
}

func (m Model) viewHome() string {
	if m.busy {
		return "Reading tag..."
	}
	return "Place a tag on the reader and press enter to read it."
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

func (m Model) lockText() string {
	if m.snap.Locked {
		return dirtyStyle.Render("personalized (block 7 set)")
	}
	return okStyle.Render("blank key")
}

func (m Model) viewTagInfo() string {
	var b strings.Builder
	b.WriteString(field("UID", fmt.Sprintf("%016X", m.snap.UID)) + "\n")
	b.WriteString(field("Type", "SRIX4K, 128 blocks") + "\n")
	b.WriteString(field("Lock", m.lockText()) + "\n")

	dirty := fmt.Sprintf("%d", m.snap.DirtyCount())
	if m.snap.DirtyCount() > 0 {
		dirty = dirtyStyle.Render(dirty + " to write")
	}
	b.WriteString(field("Modified", dirty) + "\n\n")

	for i, label := range menuLabels {
		line := "  " + label
		if i == m.menu {
			line = selectedStyle.Render("> " + label)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func blockLabel(i int) string {
	ref, ok := srix.GroupOf(i)
	if !ok {
		return ""
	}
	return ref.String()
}

func (m Model) blockRow(i int) string {
	mark := " "
	if m.snap.Dirty[i] {
		mark = "*"
	}
	row := fmt.Sprintf("%3d  %-14s %08X %s", i, blockLabel(i), m.snap.Words[i], mark)
	switch {
	case i == m.block:
		return selectedStyle.Render(row)
	case m.snap.Dirty[i]:
		return dirtyStyle.Render(row)
	}
	return row
}

func (m Model) viewBlocks() string {
	end := min(m.offset+m.listHeight(), srix.Blocks)
	rows := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		rows = append(rows, m.blockRow(i))
	}
	return strings.Join(rows, "\n")
}

func (m Model) viewDetail() string {
	w := m.snap.Words[m.block]
	blk := srix.BlockOf(w)

	var b strings.Builder
	b.WriteString(field("Block", fmt.Sprintf("%d (%s)", m.block, blockLabel(m.block))) + "\n")
	b.WriteString(field("Hex", fmt.Sprintf("%08X", w)) + "\n")
	b.WriteString(field("Bytes", fmt.Sprintf("% X", blk[:])) + "\n")
	b.WriteString(field("Decimal", fmt.Sprintf("%d", w)) + "\n")
	b.WriteString(field("Binary", fmt.Sprintf("%032b", w)) + "\n")
	if m.snap.Dirty[m.block] {
		b.WriteString(dirtyStyle.Render("modified, not written yet") + "\n")
	}
	b.WriteString("\nenter to edit")
	return b.String()
}

func (m Model) viewEdit() string {
	hex := fmt.Sprintf("%08X", m.editWord)
	var b strings.Builder
	for i, c := range hex {
		s := string(c)
		if i == m.editNibble {
			s = cursorStyle.Render(s)
		}
		b.WriteString(s)
	}
	return field("Block", fmt.Sprintf("%d (%s)", m.block, blockLabel(m.block))) + "\n" +
		field("Was", fmt.Sprintf("%08X", m.snap.Words[m.block])) + "\n" +
		field("New", b.String()) + "\n\n" +
		"enter confirms, esc cancels"
}

func (m Model) viewStatus() string {
	if m.err != nil {
		return statusStyle.Render(errorStyle.Render("Error: " + m.err.Error()))
	}
	return statusStyle.Render(m.status)
}
