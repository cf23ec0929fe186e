package reader

import (
	"context"
	"fmt"
	"sync"

	"gosrix/srix"
)

// DefaultSimUID is used by simulated tags created without a UID.
const DefaultSimUID = uint64(0xD002000000C0FFEE)

// Fault makes a simulated block misbehave.
type Fault int

const (
	FaultNone    Fault = iota
	FaultRead          // reads of the block fail
	FaultWrite         // writes to the block fail
	FaultCorrupt       // writes store different data, so read-back mismatches
)

// Sim implements Transport with an emulated tag in memory. It applies the
// hardware write rules: OTP blocks only gain bits, counter blocks only
// decrease, and lockable blocks ignore writes when the tag entered the field
// with block 7 already non-zero.
type Sim struct {
	mu      sync.Mutex
	uid     [srix.UIDSize]byte
	blocks  [srix.Blocks]srix.Block
	present bool
	locked  bool
	writes  []uint8
	faults  map[uint8]Fault
}

// NewSim creates a simulated tag in the field.
func NewSim(uid uint64, img srix.Image) *Sim {
	s := &Sim{
		uid:     srix.UIDBytes(uid),
		faults:  make(map[uint8]Fault),
		present: true,
	}
	for i, w := range img {
		s.blocks[i] = srix.BlockOf(w)
	}
	s.locked = s.keySet()
	return s
}

func (s *Sim) keySet() bool {
	return s.blocks[srix.GroupLockable.Group().Start] != srix.Block{}
}

// SetPresent moves the tag into or out of the field. Entering the field
// latches the lock state from block 7.
func (s *Sim) SetPresent(present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if present && !s.present {
		s.locked = s.keySet()
	}
	s.present = present
}

// SetFault installs a fault on block index.
func (s *Sim) SetFault(index uint8, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f == FaultNone {
		delete(s.faults, index)
		return
	}
	s.faults[index] = f
}

// Writes returns the block indices written so far, in order.
func (s *Sim) Writes() []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint8(nil), s.writes...)
}

// Image returns the current tag content.
func (s *Sim) Image() srix.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	var img srix.Image
	for i, b := range s.blocks {
		img[i] = b.Word()
	}
	return img
}

// Detect implements Detector.
func (s *Sim) Detect(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present, nil
}

// GetUID implements srix.Transport.
func (s *Sim) GetUID(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.present {
		return nil, ErrNoTag
	}
	return append([]byte(nil), s.uid[:]...), nil
}

// ReadBlock implements srix.Transport.
func (s *Sim) ReadBlock(ctx context.Context, index uint8) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(index); err != nil {
		return nil, err
	}
	if s.faults[index] == FaultRead {
		return nil, fmt.Errorf("read block %d: %w", index, ErrTimeout)
	}
	b := s.blocks[index]
	return b[:], nil
}

// WriteBlock implements srix.Transport.
func (s *Sim) WriteBlock(ctx context.Context, index uint8, data srix.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(index); err != nil {
		return err
	}
	s.writes = append(s.writes, index)

	switch s.faults[index] {
	case FaultWrite:
		return fmt.Errorf("write block %d: %w", index, ErrTimeout)
	case FaultCorrupt:
		data[srix.BlockSize-1] ^= 0xFF
	}

	ref, _ := srix.GroupOf(int(index))
	old := s.blocks[index].Word()
	word := data.Word()
	switch ref.Group {
	case srix.GroupOTP:
		word |= old
	case srix.GroupCounter:
		if word > old {
			return nil
		}
	case srix.GroupLockable:
		if s.locked {
			return nil
		}
	}
	s.blocks[index] = srix.BlockOf(word)
	return nil
}

// Close implements Transport.
func (s *Sim) Close() error {
	return nil
}

func (s *Sim) check(index uint8) error {
	if !s.present {
		return ErrNoTag
	}
	if int(index) >= srix.Blocks {
		return fmt.Errorf("block %d out of range", index)
	}
	return nil
}
