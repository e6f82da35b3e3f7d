package proto

import (
	"bytes"
	"strconv"

	log "github.com/marcybelardo/lilykv/logger"
)

// Decoder reads protocol values from a Cursor.
// The zero value is ready to use and limits nesting to DefaultMaxDepth.
// A Decoder holds no state between calls and is safe for concurrent use.
type Decoder struct {
	// MaxDepth is the deepest array nesting accepted. Zero means
	// DefaultMaxDepth.
	MaxDepth int
}

// Decode decodes the first message in b. It returns the value and the
// number of bytes the message occupies. Trailing bytes are not inspected.
func Decode(b []byte) (Value, int, error) {
	return Decoder{}.DecodeBytes(b)
}

// DecodeBytes is like Decode but honours the decoder's limits.
func (d Decoder) DecodeBytes(b []byte) (Value, int, error) {
	c := NewCursor(b)
	v, err := d.Decode(c)
	if err != nil {
		return nil, 0, err
	}
	return v, c.Pos(), nil
}

// Decode reads exactly one value from c. On error no value is returned
// and the position of c is unspecified.
// It should never panic because of user input.
func (d Decoder) Decode(c *Cursor) (v Value, err error) {
	defer func() {
		if e := recover(); e != nil {
			log.Err("unknown decoding error: %v", e)
			v, err = nil, decodeErr(ErrUnknown, c.Pos())
		}
	}()

	return d.decodeValue(c, d.maxDepth())
}

func (d Decoder) maxDepth() int {
	if d.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return d.MaxDepth
}

func (d Decoder) decodeValue(c *Cursor, depth int) (Value, error) {
	tag, ok := c.Peek()
	if !ok {
		return nil, shortErr(ErrIncomplete, c.Pos())
	}

	switch Kind(tag) {
	case SimpleStringKind:
		c.Advance(1)
		return decodeSimpleString(c)
	case ErrorKind:
		c.Advance(1)
		return decodeError(c)
	case IntegerKind:
		c.Advance(1)
		return decodeInteger(c)
	case BulkStringKind:
		c.Advance(1)
		return decodeBulkString(c)
	case ArrayKind:
		if depth <= 0 {
			return nil, decodeErr(ErrTooDeep, c.Pos())
		}
		c.Advance(1)
		return d.decodeArray(c, depth-1)
	}

	return nil, decodeErr(ErrUnknownType, c.Pos())
}

func decodeSimpleString(c *Cursor) (Value, error) {
	b, err := c.ReadLine()
	if err != nil {
		return nil, err
	}
	return SimpleString(b), nil
}

func decodeError(c *Cursor) (Value, error) {
	b, err := c.ReadLine()
	if err != nil {
		return nil, err
	}
	return Error(b), nil
}

func decodeInteger(c *Cursor) (Value, error) {
	n, err := readInteger(c)
	if err != nil {
		return nil, err
	}
	return Integer(n), nil
}

func decodeBulkString(c *Cursor) (Value, error) {
	size, err := readSize(c)
	if err != nil {
		return nil, err
	}

	b, err := c.ReadExact(size)
	if err != nil {
		return nil, err
	}

	return BulkString(bytes.Clone(b)), nil
}

func (d Decoder) decodeArray(c *Cursor, depth int) (Value, error) {
	size, err := readSize(c)
	if err != nil {
		return nil, err
	}

	// Every element takes at least three bytes, so a count larger than
	// that cannot be satisfied by the buffer and must not size the slice.
	list := make(Array, 0, min(size, c.Len()/3))
	for i := 0; i < size; i++ {
		v, err := d.decodeValue(c, depth)
		if err != nil {
			return nil, elementErr(err)
		}

		list = append(list, v)
	}

	return list, nil
}

// elementErr reports input ending before a declared array element as a
// truncated array. It stays short input.
func elementErr(err error) error {
	if de, ok := err.(*DecodeError); ok && de.Kind == ErrIncomplete {
		return shortErr(ErrTruncated, de.Offset)
	}
	return err
}

// readInteger reads a line holding an optionally negative decimal int64.
func readInteger(c *Cursor) (int64, error) {
	off := c.Pos()
	b, err := c.ReadLine()
	if err != nil {
		return 0, err
	}

	digits := b
	if len(digits) > 0 && digits[0] == '-' {
		digits = digits[1:]
	}
	if !isDigits(digits) {
		return 0, decodeErr(ErrInvalidInteger, off)
	}

	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, decodeErr(ErrInvalidInteger, off)
	}

	return n, nil
}

// readSize reads a line holding a non-negative decimal length or count.
func readSize(c *Cursor) (int, error) {
	off := c.Pos()
	b, err := c.ReadLine()
	if err != nil {
		return 0, err
	}

	if !isDigits(b) {
		return 0, decodeErr(ErrInvalidInteger, off)
	}

	size, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, decodeErr(ErrInvalidInteger, off)
	}

	return size, nil
}

func isDigits(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
