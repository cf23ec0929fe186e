//go:build linux

package buttons

import (
	"testing"

	"github.com/kenshaw/evdev"
	"github.com/stretchr/testify/assert"
)

func TestKeyButton(t *testing.T) {
	b, ok := keyButton(evdev.KeyEnter)
	assert.True(t, ok)
	assert.Equal(t, Select, b)

	b, ok = keyButton(evdev.KeyLeft)
	assert.True(t, ok)
	assert.Equal(t, Left, b)

	_, ok = keyButton(evdev.KeyA)
	assert.False(t, ok)
}
