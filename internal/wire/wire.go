package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version   byte = 1
	kindEntry byte = 1
)

// MaxFieldLen bounds the generation and URL carried in an entry header.
const MaxFieldLen = 0xFFFF

var (
	ErrCorrupt = errors.New("assetcache: corrupt entry")
	// ErrTooLong is returned by EncodeEntry for an empty generation or a
	// generation or URL longer than MaxFieldLen bytes.
	ErrTooLong = errors.New("assetcache: entry field length out of range")
	magic4     = [...]byte{'A', 'S', 'W', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | kind(1=entry) | genLen(u16 be) | gen | urlLen(u16 be) | url | plen(u32 be) | payload(plen)
//
// The generation and URL ride along with the payload so a reader can tell an
// entry that landed under the wrong key (hash collision, foreign writer) from
// a genuine hit.
func EncodeEntry(gen, url string, payload []byte) ([]byte, error) {
	if len(gen) == 0 || len(gen) > MaxFieldLen {
		return nil, fmt.Errorf("%w: generation is %d bytes", ErrTooLong, len(gen))
	}
	if len(url) > MaxFieldLen {
		return nil, fmt.Errorf("%w: url is %d bytes", ErrTooLong, len(url))
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 2 + len(gen) + 2 + len(url) + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint16(u2[:], uint16(len(gen)))
	buf.Write(u2[:])
	buf.WriteString(gen)

	binary.BigEndian.PutUint16(u2[:], uint16(len(url)))
	buf.Write(u2[:])
	buf.WriteString(url)

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes(), nil
}

func DecodeEntry(b []byte) (gen, url string, payload []byte, err error) {
	const hdr = 4 + 1 + 1
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return "", "", nil, ErrCorrupt
	}
	off := hdr

	// gen
	if off+2 > len(b) {
		return "", "", nil, ErrCorrupt
	}
	glen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if glen == 0 || glen > len(b)-off {
		return "", "", nil, ErrCorrupt
	}
	gen = string(b[off : off+glen])
	off += glen

	// url
	if off+2 > len(b) {
		return "", "", nil, ErrCorrupt
	}
	ulen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if ulen > len(b)-off {
		return "", "", nil, ErrCorrupt
	}
	url = string(b[off : off+ulen])
	off += ulen

	// payload
	if off+4 > len(b) {
		return "", "", nil, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen != len(b)-off { // exact: trailing bytes are corruption too
		return "", "", nil, ErrCorrupt
	}

	return gen, url, b[off : off+plen], nil
}
