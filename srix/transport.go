package srix

import (
	"context"
	"encoding/binary"
)

// Tag geometry for SRIX4K-class tags.
const (
	Blocks    = 128
	BlockSize = 4
	UIDSize   = 8
	ImageSize = Blocks * BlockSize
)

// Tag command bytes.
const (
	CmdReadBlock  = 0x08
	CmdWriteBlock = 0x09
	CmdGetUID     = 0x0B
)

// Block is one block in tag byte order.
type Block [BlockSize]byte

// BlockOf packs word big-endian, the order the tag stores it.
func BlockOf(word uint32) Block {
	var b Block
	binary.BigEndian.PutUint32(b[:], word)
	return b
}

// Word unpacks a block as byte0<<24 | byte1<<16 | byte2<<8 | byte3.
func (b Block) Word() uint32 {
	return binary.BigEndian.Uint32(b[:])
}

// Image is the full 128-word EEPROM content.
type Image [Blocks]uint32

// Transport issues the three tag commands through a reader.
// Implementations block until the reader answers or their own timeout elapses.
// Response length and write verification are checked by Memory, not here.
type Transport interface {
	// GetUID returns the raw UID as sent by the tag.
	GetUID(ctx context.Context) ([]byte, error)

	// ReadBlock returns the raw content of block index.
	ReadBlock(ctx context.Context, index uint8) ([]byte, error)

	// WriteBlock stores data into block index. It does not read back.
	WriteBlock(ctx context.Context, index uint8, data Block) error
}
