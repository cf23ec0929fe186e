package srix

import (
	"context"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Memory.
type State int

const (
	StateUninitialized State = iota // no identity or image loaded
	StateSynced                     // image loaded, nothing pending
	StateDirty                      // one or more blocks modified since the last flush
)

func (s State) String() string {
	switch s {
	case StateSynced:
		return "synced"
	case StateDirty:
		return "dirty"
	default:
		return "uninitialized"
	}
}

// Memory is the in-memory model of one SRIX4K tag: its UID, the 128-word
// EEPROM image and the set of blocks waiting to be written back.
//
// A Memory is not safe for concurrent use. It borrows a Transport for the
// duration of Init and WriteBlocks and never closes it.
type Memory struct {
	eeprom Image
	uid    uint64
	flags  BlockFlags
	loaded bool
}

// New returns an uninitialized Memory.
func New() *Memory {
	return &Memory{}
}

// Init reads the UID and all 128 blocks from t.
// On failure the memory is left uninitialized and its image must not be trusted.
func (m *Memory) Init(ctx context.Context, t Transport) error {
	m.flags.Reset()
	m.loaded = false
	m.uid = 0

	if t == nil {
		return newErr(KindTransport, "init", -1, "nfc reader not initialized")
	}

	raw, err := t.GetUID(ctx)
	if err != nil {
		return transportErr("get uid", -1, err)
	}
	uid, err := ParseUID(raw)
	if err != nil {
		return err
	}

	for i := 0; i < Blocks; i++ {
		b, err := readBlock(ctx, t, uint8(i))
		if err != nil {
			return err
		}
		m.eeprom[i] = b.Word()
	}

	m.uid = uid
	m.loaded = true
	Logger().Debug("tag read", zap.Uint64("uid", uid))
	return nil
}

// MemoryInit loads a previously captured image without touching a transport.
//
// If the current image is already personalized (lockable[0] != 0) only the
// generic group is copied and every generic block is flagged for writing.
// Otherwise the whole image is copied and no flag is set.
func (m *Memory) MemoryInit(img Image, uid uint64) {
	if m.Locked() {
		g := GroupGeneric.Group()
		copy(m.eeprom[g.Start:g.End()], img[g.Start:g.End()])
		for i := g.Start; i < g.End(); i++ {
			m.flags.Add(uint8(i))
		}
	} else {
		m.eeprom = img
	}
	m.uid = uid
	m.loaded = true
}

// UID returns the tag UID as a little-endian integer.
func (m *Memory) UID() uint64 {
	return m.uid
}

// GetBlock returns the word stored at index, or false if index >= 128.
func (m *Memory) GetBlock(index uint8) (uint32, bool) {
	if int(index) >= Blocks {
		return 0, false
	}
	return m.eeprom[index], true
}

// ModifyBlock overwrites the word at index and flags it for writing.
func (m *Memory) ModifyBlock(word uint32, index uint8) error {
	if int(index) >= Blocks {
		return newErr(KindRange, "modify", int(index), "block index out of range")
	}
	if !m.loaded {
		return newErr(KindNotInitialized, "modify", int(index), "no tag loaded")
	}
	m.eeprom[index] = word
	m.flags.Add(index)
	return nil
}

// WriteBlocks flushes flagged blocks to t in the order counter, OTP,
// lockable, generic. Every write is read back and compared.
//
// A block's flag is cleared as soon as its write is verified. On the first
// failure the flush stops: the failing block and every block not yet
// attempted stay flagged, so calling WriteBlocks again resumes from there.
func (m *Memory) WriteBlocks(ctx context.Context, t Transport) error {
	if t == nil {
		return newErr(KindTransport, "write", -1, "nfc reader not initialized")
	}
	if !m.loaded {
		return newErr(KindNotInitialized, "write", -1, "no tag loaded")
	}

	for _, id := range WriteOrder {
		if err := m.writeGroup(ctx, t, id.Group()); err != nil {
			return err
		}
	}

	m.flags.Reset()
	return nil
}

func (m *Memory) writeGroup(ctx context.Context, t Transport, g Group) error {
	for i := g.Start; i < g.End(); i++ {
		index := uint8(i)
		if !m.flags.Get(index) {
			continue
		}

		want := BlockOf(m.eeprom[i])
		if err := t.WriteBlock(ctx, index, want); err != nil {
			return transportErr("write", i, err)
		}
		got, err := readBlock(ctx, t, index)
		if err != nil {
			return err
		}
		if got != want {
			return newErr(KindVerification, "write", i, "wrote %X, read back %X", want[:], got[:])
		}

		m.flags.Clear(index)
		Logger().Debug("block written",
			zap.Int("block", i),
			zap.Stringer("group", g.ID),
			zap.Uint32("word", m.eeprom[i]))
	}
	return nil
}

func readBlock(ctx context.Context, t Transport, index uint8) (Block, error) {
	raw, err := t.ReadBlock(ctx, index)
	if err != nil {
		return Block{}, transportErr("read", int(index), err)
	}
	if len(raw) != BlockSize {
		return Block{}, newErr(KindTransport, "read", int(index), "response length %d, want %d", len(raw), BlockSize)
	}
	var b Block
	copy(b[:], raw)
	return b, nil
}

// State returns the lifecycle state.
func (m *Memory) State() State {
	switch {
	case !m.loaded:
		return StateUninitialized
	case m.flags.Count() > 0:
		return StateDirty
	default:
		return StateSynced
	}
}

// Locked reports whether the key word lockable[0] (block 7) is non-zero.
func (m *Memory) Locked() bool {
	return m.eeprom[GroupLockable.Group().Start] != 0
}

// Flags returns a copy of the dirty set.
func (m *Memory) Flags() BlockFlags {
	return m.flags
}

// Dirty returns the flagged block indices in ascending order.
func (m *Memory) Dirty() []uint8 {
	var out []uint8
	for i := 0; i < Blocks; i++ {
		if m.flags.Get(uint8(i)) {
			out = append(out, uint8(i))
		}
	}
	return out
}

// DirtyCount returns the number of flagged blocks.
func (m *Memory) DirtyCount() int {
	return m.flags.Count()
}

// Image returns a copy of the EEPROM image.
func (m *Memory) Image() Image {
	return m.eeprom
}

// Snapshot is a point-in-time copy of a Memory for presentation layers.
type Snapshot struct {
	UID    uint64
	State  State
	Locked bool
	Words  Image
	Dirty  [Blocks]bool
}

// DirtyCount returns the number of flagged blocks in the snapshot.
func (s Snapshot) DirtyCount() int {
	n := 0
	for _, d := range s.Dirty {
		if d {
			n++
		}
	}
	return n
}

// Snapshot copies the current state.
func (m *Memory) Snapshot() Snapshot {
	s := Snapshot{
		UID:    m.uid,
		State:  m.State(),
		Locked: m.Locked(),
		Words:  m.eeprom,
	}
	for i := range s.Dirty {
		s.Dirty[i] = m.flags.Get(uint8(i))
	}
	return s
}
