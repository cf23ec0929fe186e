package srix

import "fmt"

// GroupID identifies one of the four fixed partitions of tag memory.
type GroupID int

const (
	GroupOTP      GroupID = iota // 0-4 resettable OTP bits
	GroupCounter                 // 5-6 count down counter
	GroupLockable                // 7-15 lockable EEPROM
	GroupGeneric                 // 16-127 EEPROM
)

// Group describes a contiguous range of blocks sharing hardware write semantics.
type Group struct {
	ID    GroupID
	Name  string
	Start int
	Len   int
}

// End returns the index one past the last block of the group.
func (g Group) End() int {
	return g.Start + g.Len
}

// Contains reports whether block index belongs to the group.
func (g Group) Contains(index int) bool {
	return index >= g.Start && index < g.End()
}

var groups = [...]Group{
	GroupOTP:      {ID: GroupOTP, Name: "otp", Start: 0, Len: 5},
	GroupCounter:  {ID: GroupCounter, Name: "counter", Start: 5, Len: 2},
	GroupLockable: {ID: GroupLockable, Name: "lockable", Start: 7, Len: 9},
	GroupGeneric:  {ID: GroupGeneric, Name: "generic", Start: 16, Len: 112},
}

// WriteOrder is the order in which WriteBlocks flushes groups.
var WriteOrder = [...]GroupID{GroupCounter, GroupOTP, GroupLockable, GroupGeneric}

// Groups returns the group table in index order.
func Groups() []Group {
	out := make([]Group, len(groups))
	copy(out, groups[:])
	return out
}

// Group returns the descriptor for id.
func (id GroupID) Group() Group {
	if id < 0 || int(id) >= len(groups) {
		return Group{ID: id, Name: "unknown"}
	}
	return groups[id]
}

func (id GroupID) String() string {
	return id.Group().Name
}

// BlockRef addresses a block by group and group-relative offset.
type BlockRef struct {
	Group  GroupID
	Offset int
}

// Index returns the flat block index.
func (r BlockRef) Index() int {
	return r.Group.Group().Start + r.Offset
}

func (r BlockRef) String() string {
	return fmt.Sprintf("%s[%d]", r.Group, r.Offset)
}

// GroupOf maps a flat block index to its group and offset.
// It returns false for indices outside 0..127.
func GroupOf(index int) (BlockRef, bool) {
	switch {
	case index < 0 || index >= Blocks:
		return BlockRef{}, false
	case index < 5:
		return BlockRef{Group: GroupOTP, Offset: index}, true
	case index < 7:
		return BlockRef{Group: GroupCounter, Offset: index - 5}, true
	case index < 16:
		return BlockRef{Group: GroupLockable, Offset: index - 7}, true
	default:
		return BlockRef{Group: GroupGeneric, Offset: index - 16}, true
	}
}
