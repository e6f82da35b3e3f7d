package proto

import "bytes"

// Cursor tracks a read position over an immutable byte buffer.
// A Cursor is not safe for concurrent use.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a cursor positioned at the start of b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Pos returns the current read position.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the number of unread bytes.
func (c *Cursor) Len() int { return len(c.buf) - c.pos }

// Peek returns the byte at the current position without advancing.
// ok is false when the buffer is exhausted.
func (c *Cursor) Peek() (b byte, ok bool) {
	if c.pos >= len(c.buf) {
		return 0, false
	}
	return c.buf[c.pos], true
}

// Advance moves the position forward by n bytes.
// The caller guarantees that n bytes remain.
func (c *Cursor) Advance(n int) { c.pos += n }

// ReadLine returns the bytes up to the next CRLF and moves past the
// terminator. The returned slice aliases the underlying buffer.
func (c *Cursor) ReadLine() ([]byte, error) {
	rest := c.buf[c.pos:]
	i := bytes.Index(rest, crlf)
	if i < 0 {
		return nil, shortErr(ErrUnterminatedLine, len(c.buf))
	}

	c.pos += i + len(crlf)
	return rest[:i:i], nil
}

// ReadExact returns the next n bytes, which must be followed by CRLF,
// and moves past the terminator. The returned slice aliases the
// underlying buffer.
func (c *Cursor) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, decodeErr(ErrInvalidInteger, c.pos)
	}

	remaining := c.Len()
	if remaining < len(crlf) || n > remaining-len(crlf) {
		return nil, shortErr(ErrTruncated, len(c.buf))
	}

	end := c.pos + n
	if c.buf[end] != CR || c.buf[end+1] != NL {
		return nil, decodeErr(ErrTruncated, end)
	}

	b := c.buf[c.pos:end:end]
	c.pos = end + len(crlf)
	return b, nil
}
