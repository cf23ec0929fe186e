package srix

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUID(t *testing.T) {
	raw := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x02, 0xD0}
	uid, err := ParseUID(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xD002665544332211), uid)
	assert.True(t, ValidUID(uid))

	b := UIDBytes(uid)
	assert.Equal(t, raw, b[:])
}

func TestParseUID_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		kind *Error
	}{
		{"wrong byte 7", []byte{1, 2, 3, 4, 5, 6, 0x02, 0xD1}, ErrIdentity},
		{"wrong byte 6", []byte{1, 2, 3, 4, 5, 6, 0x03, 0xD0}, ErrIdentity},
		{"swapped", []byte{1, 2, 3, 4, 5, 6, 0xD0, 0x02}, ErrIdentity},
		{"short", []byte{1, 2, 3, 4, 5, 6, 0x02}, ErrTransport},
		{"long", []byte{1, 2, 3, 4, 5, 6, 0x02, 0xD0, 0}, ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUID(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}
