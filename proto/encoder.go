package proto

import (
	"strconv"
	"strings"
)

// Encoder writes protocol values.
// The zero value is ready to use and limits nesting to DefaultMaxDepth.
type Encoder struct {
	// MaxDepth is the deepest array nesting accepted. Zero means
	// DefaultMaxDepth.
	MaxDepth int
}

// Encode returns the wire encoding of v.
func Encode(v Value) ([]byte, error) {
	return Encoder{}.Append(nil, v)
}

// Append appends the wire encoding of v to dst.
func Append(dst []byte, v Value) ([]byte, error) {
	return Encoder{}.Append(dst, v)
}

// Append appends the wire encoding of v to dst and returns the extended
// buffer. On error dst is returned unchanged.
func (e Encoder) Append(dst []byte, v Value) ([]byte, error) {
	depth := e.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}

	res, err := appendValue(dst, v, depth)
	if err != nil {
		return dst, err
	}
	return res, nil
}

func appendValue(dst []byte, v Value, depth int) ([]byte, error) {
	switch t := v.(type) {
	case SimpleString:
		return appendLine(dst, SimpleStringKind, string(t))
	case Error:
		return appendLine(dst, ErrorKind, string(t))
	case Integer:
		dst = append(dst, byte(IntegerKind))
		dst = strconv.AppendInt(dst, int64(t), 10)
		return append(dst, crlf...), nil
	case BulkString:
		dst = appendHeader(dst, BulkStringKind, len(t))
		dst = append(dst, t...)
		return append(dst, crlf...), nil
	case Array:
		if depth <= 0 {
			return nil, ErrTooDeep
		}
		return appendArray(dst, t, depth-1)
	}

	return nil, ErrUnsupportedType
}

func appendLine(dst []byte, k Kind, s string) ([]byte, error) {
	if strings.Contains(s, "\r\n") {
		return nil, ErrInvalidContent
	}

	dst = append(dst, byte(k))
	dst = append(dst, s...)
	return append(dst, crlf...), nil
}

func appendHeader(dst []byte, k Kind, size int) []byte {
	dst = append(dst, byte(k))
	dst = strconv.AppendInt(dst, int64(size), 10)
	return append(dst, crlf...)
}

func appendArray(dst []byte, in Array, depth int) ([]byte, error) {
	dst = appendHeader(dst, ArrayKind, len(in))

	var err error
	for _, v := range in {
		if dst, err = appendValue(dst, v, depth); err != nil {
			return nil, err
		}
	}

	return dst, nil
}
