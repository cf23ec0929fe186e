// Package dump reads and writes captured tag images.
//
// Two layouts are supported. The binary layout is the 128 blocks as
// big-endian words (512 bytes) followed by the 8 UID bytes in tag order.
// The YAML layout stores the UID and every block as hex strings.
package dump

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"gosrix/srix"
)

// BinarySize is the size of a binary dump including the UID.
const BinarySize = srix.ImageSize + srix.UIDSize

// Dump is a captured tag.
type Dump struct {
	UID   uint64
	Image srix.Image
}

// Format selects a file layout.
type Format int

const (
	FormatBinary Format = iota
	FormatYAML
)

// FormatFor picks a layout from the file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatBinary
	}
}

// MarshalBinary encodes d in the binary layout.
func (d Dump) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, BinarySize)
	for _, w := range d.Image {
		buf = binary.BigEndian.AppendUint32(buf, w)
	}
	buf = binary.LittleEndian.AppendUint64(buf, d.UID)
	return buf, nil
}

// UnmarshalBinary decodes the binary layout. A bare 512-byte image is
// accepted and leaves UID at zero.
func (d *Dump) UnmarshalBinary(data []byte) error {
	if len(data) != BinarySize && len(data) != srix.ImageSize {
		return fmt.Errorf("dump size %d, want %d or %d", len(data), BinarySize, srix.ImageSize)
	}
	for i := range d.Image {
		d.Image[i] = binary.BigEndian.Uint32(data[i*srix.BlockSize:])
	}
	d.UID = 0
	if len(data) == BinarySize {
		d.UID = binary.LittleEndian.Uint64(data[srix.ImageSize:])
	}
	return d.validate()
}

type yamlDump struct {
	UID    string   `yaml:"uid"`
	Blocks []string `yaml:"blocks"`
}

// encodeYAML encodes d in the YAML layout.
func (d Dump) encodeYAML() ([]byte, error) {
	y := yamlDump{
		UID:    fmt.Sprintf("%016X", d.UID),
		Blocks: make([]string, srix.Blocks),
	}
	for i, w := range d.Image {
		y.Blocks[i] = fmt.Sprintf("%08X", w)
	}
	return yaml.Marshal(y)
}

// decodeYAML decodes the YAML layout.
func (d *Dump) decodeYAML(data []byte) error {
	var y yamlDump
	if err := yaml.Unmarshal(data, &y); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	if len(y.Blocks) != srix.Blocks {
		return fmt.Errorf("dump has %d blocks, want %d", len(y.Blocks), srix.Blocks)
	}

	d.UID = 0
	if y.UID != "" {
		uid, err := parseHex(y.UID, 64)
		if err != nil {
			return fmt.Errorf("parse uid %q: %w", y.UID, err)
		}
		d.UID = uid
	}
	for i, s := range y.Blocks {
		w, err := parseHex(s, 32)
		if err != nil {
			return fmt.Errorf("parse block %d %q: %w", i, s, err)
		}
		d.Image[i] = uint32(w)
	}
	return d.validate()
}

// parseHex accepts hex digits with an optional 0x or 0X prefix.
func parseHex(s string, bits int) (uint64, error) {
	s = strings.TrimSpace(s)
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return strconv.ParseUint(s, 16, bits)
}

func (d Dump) validate() error {
	if d.UID != 0 && !srix.ValidUID(d.UID) {
		return &srix.Error{
			Kind:   srix.KindIdentity,
			Op:     "load dump",
			Block:  -1,
			Detail: fmt.Sprintf("uid %016X has no SRIX manufacturer code", d.UID),
		}
	}
	return nil
}

// Encode serializes d in format f.
func Encode(d Dump, f Format) ([]byte, error) {
	if f == FormatYAML {
		return d.encodeYAML()
	}
	return d.MarshalBinary()
}

// Decode parses data in format f.
func Decode(data []byte, f Format) (Dump, error) {
	var d Dump
	var err error
	if f == FormatYAML {
		err = d.decodeYAML(data)
	} else {
		err = d.UnmarshalBinary(data)
	}
	return d, err
}

// Load reads a dump file, choosing the layout by extension.
func Load(path string) (Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dump{}, fmt.Errorf("read dump: %w", err)
	}
	d, err := Decode(data, FormatFor(path))
	if err != nil {
		return Dump{}, fmt.Errorf("load %s: %w", path, err)
	}
	return d, nil
}

// Save writes a dump file atomically, choosing the layout by extension.
func Save(path string, d Dump) error {
	data, err := Encode(d, FormatFor(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dump directory: %w", err)
		}
	}
	if err := os.WriteFile(path+".tmp", data, 0644); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		return fmt.Errorf("rename dump: %w", err)
	}
	return nil
}
