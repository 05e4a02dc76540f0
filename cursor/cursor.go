// Package cursor provides a positioned reader over an in-memory buffer with
// bounds-checked big/little-endian integer and slice primitives. It is the
// foundation every framer in this module is built on: st_parser's manual
// binary.BigEndian reads (see the teacher, SMerrony-aosvs-tools) are
// generalized here into a stateful reader that returns a *decerr.Error
// instead of calling log.Fatal.
package cursor

import "github.com/mainframed/xmi/decerr"

// Cursor is a positioned, bounds-checked reader over a fixed buffer.
// A Cursor is not safe for concurrent use; callers needing concurrent
// access should clone the underlying buffer.
type Cursor struct {
	buf []byte
	pos int64
}

// New wraps buf in a Cursor positioned at offset 0.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current absolute offset.
func (c *Cursor) Pos() int64 { return c.pos }

// Len returns the total buffer length.
func (c *Cursor) Len() int64 { return int64(len(c.buf)) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int64 { return int64(len(c.buf)) - c.pos }

// EOF reports whether the cursor has consumed the entire buffer.
func (c *Cursor) EOF() bool { return c.pos >= int64(len(c.buf)) }

// Seek repositions the cursor to an absolute offset. It fails if offset
// falls outside [0, len(buf)].
func (c *Cursor) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(c.buf)) {
		return decerr.Truncated(offset, 0, len(c.buf))
	}
	c.pos = offset
	return nil
}

func (c *Cursor) need(n int) ([]byte, error) {
	if n < 0 || c.pos+int64(n) > int64(len(c.buf)) {
		return nil, decerr.Truncated(c.pos, n, int(c.Remaining()))
	}
	b := c.buf[c.pos : c.pos+int64(n)]
	return b, nil
}

// PeekBytes returns the next n bytes without advancing the cursor.
func (c *Cursor) PeekBytes(n int) ([]byte, error) {
	return c.need(n)
}

// ReadBytes returns a copy of the next n bytes and advances the cursor.
// The returned slice is a copy so callers may retain it past the lifetime
// of the underlying buffer.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	b, err := c.need(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	c.pos += int64(n)
	return out, nil
}

// ReadU8 reads a single unsigned byte.
func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.need(1)
	if err != nil {
		return 0, err
	}
	c.pos++
	return b[0], nil
}

// ReadU16BE reads a big-endian uint16.
func (c *Cursor) ReadU16BE() (uint16, error) {
	b, err := c.need(2)
	if err != nil {
		return 0, err
	}
	c.pos += 2
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// ReadU16LE reads a little-endian uint16.
func (c *Cursor) ReadU16LE() (uint16, error) {
	b, err := c.need(2)
	if err != nil {
		return 0, err
	}
	c.pos += 2
	return uint16(b[1])<<8 | uint16(b[0]), nil
}

// ReadU32BE reads a big-endian uint32.
func (c *Cursor) ReadU32BE() (uint32, error) {
	b, err := c.need(4)
	if err != nil {
		return 0, err
	}
	c.pos += 4
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// ReadU32LE reads a little-endian uint32.
func (c *Cursor) ReadU32LE() (uint32, error) {
	b, err := c.need(4)
	if err != nil {
		return 0, err
	}
	c.pos += 4
	return uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0]), nil
}

// ReadUintBE reads an n-byte (1..8) big-endian unsigned integer. This
// covers the odd widths that appear throughout the format (3-byte TTRs,
// 3-byte Julian dates) without implicit sign extension.
func (c *Cursor) ReadUintBE(n int) (uint64, error) {
	if n < 1 || n > 8 {
		return 0, decerr.Malformed(c.pos, "unsupported integer width")
	}
	b, err := c.need(n)
	if err != nil {
		return 0, err
	}
	c.pos += int64(n)
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v, nil
}

// Skip advances the cursor by n bytes without materializing them.
func (c *Cursor) Skip(n int) error {
	if n < 0 || c.pos+int64(n) > int64(len(c.buf)) {
		return decerr.Truncated(c.pos, n, int(c.Remaining()))
	}
	c.pos += int64(n)
	return nil
}
