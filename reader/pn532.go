package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"gosrix/srix"
)

// Frame direction bytes (TFI).
const (
	hostToPN532 = 0xD4
	pn532ToHost = 0xD5
	errorFrame  = 0x7F
)

// PN532 command codes.
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdInListPassiveTarget = 0x4A
	cmdInCommunicateThru   = 0x42
)

// SRIX selection commands, sent raw through InCommunicateThru.
const (
	srixInitiate0 = 0x06
	srixInitiate1 = 0x00
	srixSelect    = 0x0E
)

// brTy106B selects ISO14443B at 106 kbps in InListPassiveTarget.
const brTy106B = 0x03

// statusTimeout is the InCommunicateThru status reported when the target
// does not answer. WRITE_BLOCK never gets an answer from the tag.
const statusTimeout = 0x01

var (
	ackFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	wakeUp   = []byte{0x55, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

// ErrTimeout is returned when the PN532 does not answer in time.
var ErrTimeout = errors.New("pn532 response timeout")

// ErrNoTag is returned when no SRIX tag answers the selection.
var ErrNoTag = errors.New("no tag in field")

// StatusError is a non-zero status byte returned by InCommunicateThru.
type StatusError struct {
	Status byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pn532 status 0x%02X", e.Status)
}

// PN532 implements Transport for an NXP PN532 on a HSU (UART) link.
// Tag commands are relayed with InCommunicateThru; the PN532 adds and
// checks the CRC.
type PN532 struct {
	port     io.ReadWriter
	timeout  time.Duration
	log      *zap.Logger
	selected bool
}

// NewPN532 wraps an open serial port. Call Begin before issuing tag commands.
func NewPN532(port io.ReadWriter, timeout time.Duration, log *zap.Logger) *PN532 {
	if log == nil {
		log = zap.NewNop()
	}
	return &PN532{port: port, timeout: timeout, log: log}
}

// Begin wakes the PN532, checks it answers and configures the SAM for normal mode.
func (d *PN532) Begin(ctx context.Context) error {
	if _, err := d.port.Write(wakeUp); err != nil {
		return fmt.Errorf("wake up: %w", err)
	}

	fw, err := d.call(ctx, cmdGetFirmwareVersion)
	if err != nil {
		return fmt.Errorf("get firmware version: %w", err)
	}
	if len(fw) != 4 {
		return fmt.Errorf("firmware version length %d", len(fw))
	}
	d.log.Info("PN532 ready",
		zap.String("ic", fmt.Sprintf("0x%02X", fw[0])),
		zap.String("firmware", fmt.Sprintf("%d.%d", fw[1], fw[2])))

	// Normal mode, 1 s virtual card timeout, use IRQ.
	if _, err := d.call(ctx, cmdSAMConfiguration, 0x01, 0x14, 0x01); err != nil {
		return fmt.Errorf("sam configuration: %w", err)
	}
	return nil
}

// Detect reports whether an SRIX tag answers the selection sequence.
func (d *PN532) Detect(ctx context.Context) (bool, error) {
	d.selected = false
	err := d.selectTag(ctx)
	if errors.Is(err, ErrNoTag) {
		return false, nil
	}
	return err == nil, err
}

// GetUID implements srix.Transport. Every call reselects the tag since it
// starts a new read of whatever tag is in the field.
func (d *PN532) GetUID(ctx context.Context) ([]byte, error) {
	d.selected = false
	if err := d.selectTag(ctx); err != nil {
		return nil, err
	}
	return d.tag(ctx, srix.CmdGetUID)
}

// Selected reports whether a tag is currently selected.
func (d *PN532) Selected() bool {
	return d.selected
}

// ReadBlock implements srix.Transport.
func (d *PN532) ReadBlock(ctx context.Context, index uint8) ([]byte, error) {
	return d.tag(ctx, srix.CmdReadBlock, index)
}

// WriteBlock implements srix.Transport. The tag sends no answer to a write,
// so a target timeout is the expected outcome.
func (d *PN532) WriteBlock(ctx context.Context, index uint8, data srix.Block) error {
	_, err := d.tag(ctx, srix.CmdWriteBlock, index, data[0], data[1], data[2], data[3])
	var se *StatusError
	if errors.As(err, &se) && se.Status == statusTimeout {
		d.selected = true
		return nil
	}
	return err
}

// Close implements Transport.
func (d *PN532) Close() error {
	if c, ok := d.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// selectTag tunes the RF front end for type B and runs SRIX INITIATE / SELECT.
func (d *PN532) selectTag(ctx context.Context) error {
	// The SRIX does not answer REQB; the call only switches the CIU to 106B.
	if _, err := d.call(ctx, cmdInListPassiveTarget, 0x01, brTy106B, 0x00); err != nil {
		return fmt.Errorf("configure type B: %w", err)
	}

	resp, err := d.thru(ctx, srixInitiate0, srixInitiate1)
	if err != nil || len(resp) != 1 {
		return ErrNoTag
	}
	chipID := resp[0]

	resp, err = d.thru(ctx, srixSelect, chipID)
	if err != nil {
		return fmt.Errorf("select chip 0x%02X: %w", chipID, err)
	}
	if len(resp) != 1 || resp[0] != chipID {
		return fmt.Errorf("select chip 0x%02X: unexpected answer % X", chipID, resp)
	}

	d.selected = true
	d.log.Debug("Tag selected", zap.Uint8("chip_id", chipID))
	return nil
}

// tag relays a tag command and drops the selection on failure.
func (d *PN532) tag(ctx context.Context, data ...byte) ([]byte, error) {
	resp, err := d.thru(ctx, data...)
	if err != nil {
		d.selected = false
	}
	return resp, err
}

// thru sends raw bytes to the tag through InCommunicateThru.
func (d *PN532) thru(ctx context.Context, data ...byte) ([]byte, error) {
	resp, err := d.call(ctx, cmdInCommunicateThru, data...)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, errors.New("empty InCommunicateThru response")
	}
	if status := resp[0] & 0x3F; status != 0 {
		return nil, &StatusError{Status: status}
	}
	return resp[1:], nil
}

// call sends one command frame and returns the response payload after the
// response code.
func (d *PN532) call(ctx context.Context, cmd byte, data ...byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(d.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	frame, err := encodeFrame(cmd, data)
	if err != nil {
		return nil, err
	}
	d.log.Debug("PN532 >", zap.Binary("frame", frame))
	if _, err := d.port.Write(frame); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	r := frameReader{r: d.port, deadline: deadline}
	ack, err := r.next()
	if err != nil {
		return nil, fmt.Errorf("read ack: %w", err)
	}
	if ack != nil {
		return nil, errors.New("expected ack frame")
	}

	resp, err := r.next()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp == nil {
		return nil, errors.New("unexpected ack frame")
	}
	d.log.Debug("PN532 <", zap.Binary("payload", resp))

	if len(resp) == 0 {
		return nil, errors.New("empty response frame")
	}
	if resp[0] == errorFrame {
		return nil, errors.New("pn532 application error frame")
	}
	if len(resp) < 2 || resp[0] != pn532ToHost || resp[1] != cmd+1 {
		return nil, fmt.Errorf("unexpected response % X to command 0x%02X", resp, cmd)
	}
	return resp[2:], nil
}

// encodeFrame builds a normal information frame:
// 00 00 FF LEN LCS D4 CMD data DCS 00.
func encodeFrame(cmd byte, data []byte) ([]byte, error) {
	n := 2 + len(data)
	if n > 0xFE {
		return nil, fmt.Errorf("frame payload too long: %d", n)
	}

	frame := make([]byte, 0, n+7)
	frame = append(frame, 0x00, 0x00, 0xFF, byte(n), byte(-n))
	frame = append(frame, hostToPN532, cmd)
	frame = append(frame, data...)

	sum := byte(hostToPN532) + cmd
	for _, b := range data {
		sum += b
	}
	frame = append(frame, -sum, 0x00)
	return frame, nil
}

// frameReader reads PN532 frames from a port whose reads may return no data.
type frameReader struct {
	r        io.Reader
	deadline time.Time
}

// next returns the next frame payload (TFI onwards), or nil for an ACK frame.
func (f *frameReader) next() ([]byte, error) {
	if err := f.syncStart(); err != nil {
		return nil, err
	}

	var hdr [2]byte
	if err := f.readFull(hdr[:]); err != nil {
		return nil, err
	}
	n, lcs := hdr[0], hdr[1]

	switch {
	case n == 0x00 && lcs == 0xFF:
		var post [1]byte
		return nil, f.readFull(post[:])
	case n == 0xFF && lcs == 0x00:
		return nil, errors.New("nack frame")
	case n+lcs != 0:
		return nil, fmt.Errorf("bad length checksum %02X %02X", n, lcs)
	case n == 0:
		return nil, errors.New("empty information frame")
	}

	body := make([]byte, int(n)+2)
	if err := f.readFull(body); err != nil {
		return nil, err
	}
	payload, dcs := body[:n], body[n]

	var sum byte
	for _, b := range payload {
		sum += b
	}
	if sum+dcs != 0 {
		return nil, fmt.Errorf("bad data checksum %02X", dcs)
	}
	return payload, nil
}

// syncStart consumes bytes up to and including the 00 FF start code.
func (f *frameReader) syncStart() error {
	var prev byte = 0xFF
	var b [1]byte
	for {
		if err := f.readFull(b[:]); err != nil {
			return err
		}
		if prev == 0x00 && b[0] == 0xFF {
			return nil
		}
		if time.Now().After(f.deadline) {
			return ErrTimeout
		}
		prev = b[0]
	}
}

func (f *frameReader) readFull(buf []byte) error {
	got := 0
	for got < len(buf) {
		n, err := f.r.Read(buf[got:])
		got += n
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if got < len(buf) && n == 0 && time.Now().After(f.deadline) {
			return ErrTimeout
		}
	}
	return nil
}
