package file

import (
	"encoding/binary"
)

// Page is a fixed-size in-memory buffer the size of one block. Bounds
// checking on the offsets below is the caller's responsibility; an
// out-of-range access panics the same way a raw slice index would.
// The one exception is GetBytes (and so GetString): when the stored
// length runs past the end of the page it returns an empty slice
// instead of panicking.
type Page struct {
	bytes []byte
}

// NewPage creates a new page with the specified block size
func NewPage(blockSize int) *Page {
	return &Page{
		bytes: make([]byte, blockSize),
	}
}

// NewPageFromBytes creates a new page from an existing byte array
func NewPageFromBytes(b []byte) *Page {
	return &Page{
		bytes: b,
	}
}

// Bytes returns the underlying byte array
func (p *Page) Bytes() []byte {
	return p.bytes
}

// GetInt reads a signed 32-bit big-endian integer from the given offset.
func (p *Page) GetInt(offset int) int {
	return int(int32(binary.BigEndian.Uint32(p.bytes[offset : offset+4])))
}

// SetInt writes a signed 32-bit big-endian integer at the given offset.
func (p *Page) SetInt(offset int, val int) {
	binary.BigEndian.PutUint32(p.bytes[offset:offset+4], uint32(int32(val)))
}

// GetBytes reads a length-prefixed byte array from the given offset.
// The format is a 4-byte big-endian length followed by that many bytes.
func (p *Page) GetBytes(offset int) []byte {
	length := p.GetInt(offset)

	// Guard against garbage lengths so a corrupt page can't panic a reader.
	if length < 0 || offset+4+length > len(p.bytes) {
		return []byte{}
	}

	return p.bytes[offset+4 : offset+4+length]
}

// SetBytes writes a length-prefixed byte array at the given offset.
func (p *Page) SetBytes(offset int, val []byte) {
	p.SetInt(offset, len(val))
	copy(p.bytes[offset+4:offset+4+len(val)], val)
}

// GetString reads a UTF-8 string from the given offset.
func (p *Page) GetString(offset int) string {
	return string(p.GetBytes(offset))
}

// SetString writes a UTF-8 string at the given offset.
func (p *Page) SetString(offset int, val string) {
	p.SetBytes(offset, []byte(val))
}

// MaxLength returns the number of bytes occupied by a length-prefixed
// value of strLen bytes: 4 bytes for the length plus the bytes
// themselves. strLen counts bytes, not runes; MaxStringBytes gives the
// worst-case bound for a string of strLen runes.
func MaxLength(strLen int) int {
	return 4 + strLen
}

// MaxStringBytes bounds the worst-case UTF-8 encoding (4 bytes/rune)
// of a string of strLen runes, plus its 4-byte length prefix.
func MaxStringBytes(strLen int) int {
	return 4 + 4*strLen
}
