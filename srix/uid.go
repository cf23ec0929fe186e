package srix

import "encoding/binary"

// Manufacturer code bytes at UID offsets 6 and 7 (SRIX4K / ST25TB04K datasheets).
const (
	ManufacturerCode0 = 0x02 // uid[6]
	ManufacturerCode1 = 0xD0 // uid[7]
)

// ParseUID validates a raw 8-byte UID and returns it as a little-endian uint64.
func ParseUID(raw []byte) (uint64, error) {
	if len(raw) != UIDSize {
		return 0, newErr(KindTransport, "get uid", -1, "response length %d, want %d", len(raw), UIDSize)
	}
	if raw[6] != ManufacturerCode0 || raw[7] != ManufacturerCode1 {
		return 0, newErr(KindIdentity, "get uid", -1, "invalid tag manufacturer code %02X%02X", raw[7], raw[6])
	}
	return binary.LittleEndian.Uint64(raw), nil
}

// ValidUID reports whether uid carries the SRIX manufacturer code.
func ValidUID(uid uint64) bool {
	b := UIDBytes(uid)
	return b[6] == ManufacturerCode0 && b[7] == ManufacturerCode1
}

// UIDBytes returns uid in tag byte order (byte 0 least significant).
func UIDBytes(uid uint64) [UIDSize]byte {
	var b [UIDSize]byte
	binary.LittleEndian.PutUint64(b[:], uid)
	return b
}
