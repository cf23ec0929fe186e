package reader

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosrix/srix"
)

// fakePN532 answers command frames like a PN532 with an SRIX tag in the field.
type fakePN532 struct {
	t       *testing.T
	out     bytes.Buffer
	cmds    []byte
	chipID  byte
	uid     []byte
	blocks  [srix.Blocks]srix.Block
	noTag   bool
	mute    bool
	garbage []byte
	empty   bool
}

func newFakePN532(t *testing.T) *fakePN532 {
	return &fakePN532{
		t:      t,
		chipID: 0x5A,
		uid:    []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x02, 0xD0},
	}
}

// emptyFrame is an information frame with LEN 0, which still passes the length checksum.
var emptyFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00}

func responseFrame(code byte, payload []byte) []byte {
	body := append([]byte{pn532ToHost, code}, payload...)
	n := byte(len(body))
	frame := []byte{0x00, 0x00, 0xFF, n, -n}
	frame = append(frame, body...)
	var sum byte
	for _, b := range body {
		sum += b
	}
	return append(frame, -sum, 0x00)
}

func (f *fakePN532) Write(p []byte) (int, error) {
	if len(p) > 0 && p[0] == 0x55 {
		return len(p), nil
	}
	require.GreaterOrEqual(f.t, len(p), 9)
	require.Equal(f.t, []byte{0x00, 0x00, 0xFF}, p[:3])
	n := int(p[3])
	payload := p[5 : 5+n]
	require.Equal(f.t, byte(hostToPN532), payload[0])
	cmd, data := payload[1], payload[2:]
	f.cmds = append(f.cmds, cmd)

	if f.mute {
		return len(p), nil
	}
	if f.empty {
		f.out.Write(ackFrame)
		f.out.Write(emptyFrame)
		return len(p), nil
	}
	f.out.Write(f.garbage)
	f.out.Write(ackFrame)
	f.out.Write(responseFrame(cmd+1, f.answer(cmd, data)))
	return len(p), nil
}

func (f *fakePN532) answer(cmd byte, data []byte) []byte {
	switch cmd {
	case cmdGetFirmwareVersion:
		return []byte{0x32, 0x01, 0x06, 0x07}
	case cmdSAMConfiguration:
		return nil
	case cmdInListPassiveTarget:
		return []byte{0x00}
	case cmdInCommunicateThru:
		if f.noTag {
			return []byte{statusTimeout}
		}
		switch data[0] {
		case srixInitiate0, srixSelect:
			return []byte{0x00, f.chipID}
		case srix.CmdGetUID:
			return append([]byte{0x00}, f.uid...)
		case srix.CmdReadBlock:
			b := f.blocks[data[1]]
			return append([]byte{0x00}, b[:]...)
		case srix.CmdWriteBlock:
			copy(f.blocks[data[1]][:], data[2:6])
			return []byte{statusTimeout}
		}
	}
	f.t.Fatalf("unexpected command %02X % X", cmd, data)
	return nil
}

func (f *fakePN532) Read(p []byte) (int, error) {
	// An empty buffer behaves like a serial read timeout.
	return f.out.Read(p)
}

func TestEncodeFrame(t *testing.T) {
	frame, err := encodeFrame(cmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}, frame)

	frame, err = encodeFrame(cmdInCommunicateThru, []byte{0x08, 0x10})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x04, 0xFC, 0xD4, 0x42, 0x08, 0x10, 0xD2, 0x00}, frame)

	_, err = encodeFrame(0x42, make([]byte, 300))
	assert.Error(t, err)
}

func TestFrameReader(t *testing.T) {
	deadline := time.Now().Add(time.Second)

	t.Run("skips noise before start code", func(t *testing.T) {
		var buf bytes.Buffer
		buf.Write([]byte{0x12, 0x00, 0x34})
		buf.Write(ackFrame)
		buf.Write(responseFrame(0x03, []byte{0x32}))
		r := frameReader{r: &buf, deadline: deadline}

		ack, err := r.next()
		require.NoError(t, err)
		assert.Nil(t, ack)

		resp, err := r.next()
		require.NoError(t, err)
		assert.Equal(t, []byte{0xD5, 0x03, 0x32}, resp)
	})

	t.Run("bad data checksum", func(t *testing.T) {
		frame := responseFrame(0x03, []byte{0x32})
		frame[len(frame)-2]++
		r := frameReader{r: bytes.NewReader(frame), deadline: deadline}
		_, err := r.next()
		assert.ErrorContains(t, err, "data checksum")
	})

	t.Run("bad length checksum", func(t *testing.T) {
		r := frameReader{r: bytes.NewReader([]byte{0x00, 0x00, 0xFF, 0x03, 0x00}), deadline: deadline}
		_, err := r.next()
		assert.ErrorContains(t, err, "length checksum")
	})

	t.Run("empty information frame", func(t *testing.T) {
		r := frameReader{r: bytes.NewReader(emptyFrame), deadline: deadline}
		_, err := r.next()
		assert.ErrorContains(t, err, "empty information frame")
	})

	t.Run("timeout", func(t *testing.T) {
		r := frameReader{r: &bytes.Buffer{}, deadline: time.Now().Add(10 * time.Millisecond)}
		_, err := r.next()
		assert.ErrorIs(t, err, ErrTimeout)
	})
}

func TestPN532_Begin(t *testing.T) {
	f := newFakePN532(t)
	d := NewPN532(f, time.Second, nil)
	require.NoError(t, d.Begin(context.Background()))
	assert.Equal(t, []byte{cmdGetFirmwareVersion, cmdSAMConfiguration}, f.cmds)
}

func TestPN532_Timeout(t *testing.T) {
	f := newFakePN532(t)
	f.mute = true
	d := NewPN532(f, 20*time.Millisecond, nil)
	err := d.Begin(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestPN532_CancelledContext(t *testing.T) {
	d := NewPN532(newFakePN532(t), time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.ReadBlock(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPN532_Detect(t *testing.T) {
	f := newFakePN532(t)
	d := NewPN532(f, time.Second, nil)

	ok, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, d.Selected())

	f.noTag = true
	ok, err = d.Detect(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, d.Selected())
}

func TestPN532_MemoryRoundTrip(t *testing.T) {
	f := newFakePN532(t)
	f.garbage = []byte{0x00}
	for i := range f.blocks {
		f.blocks[i] = srix.Block{byte(i), 0xAA, 0x55, byte(^i)}
	}
	d := NewPN532(f, time.Second, nil)
	ctx := context.Background()

	m := srix.New()
	require.NoError(t, m.Init(ctx, d))
	assert.Equal(t, uint64(0xD002060504030201), m.UID())
	w, _ := m.GetBlock(3)
	assert.Equal(t, uint32(0x03AA55FC), w)

	require.NoError(t, m.ModifyBlock(0xDEADBEEF, 50))
	require.NoError(t, m.WriteBlocks(ctx, d))
	assert.Equal(t, srix.Block{0xDE, 0xAD, 0xBE, 0xEF}, f.blocks[50])
	assert.Equal(t, srix.StateSynced, m.State())
}

func TestPN532_NoTag(t *testing.T) {
	f := newFakePN532(t)
	f.noTag = true
	d := NewPN532(f, time.Second, nil)

	err := srix.New().Init(context.Background(), d)
	assert.ErrorIs(t, err, srix.ErrTransport)
	assert.ErrorIs(t, err, ErrNoTag)
}

func TestPN532_EmptyFrame(t *testing.T) {
	f := newFakePN532(t)
	f.empty = true
	d := NewPN532(f, time.Second, nil)

	var err error
	require.NotPanics(t, func() {
		_, err = d.ReadBlock(context.Background(), 3)
	})
	assert.ErrorContains(t, err, "empty information frame")
	assert.False(t, d.Selected())

	err = srix.New().Init(context.Background(), d)
	assert.ErrorIs(t, err, srix.ErrTransport)
}
