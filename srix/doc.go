// Package srix models the EEPROM of an SRIX4K-class contactless tag and the
// three-command protocol used to synchronize it with a reader.
//
// Tag memory is 128 blocks of 32 bits, split into four groups:
//
//	otp       0-4    resettable OTP bits, writes only add bits
//	counter   5-6    count down counter, decrement only
//	lockable  7-15   read-only once block 7 is non-zero
//	generic   16-127 free EEPROM
//
// A Memory is filled with Init (from a Transport) or MemoryInit (from a
// captured image), edited with ModifyBlock and flushed with WriteBlocks,
// which writes only flagged blocks, group by group, verifying each one.
package srix
