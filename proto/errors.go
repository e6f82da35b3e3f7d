package proto

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Decode errors.
var (
	ErrIncomplete       = errors.New("incomplete message")
	ErrUnterminatedLine = errors.New("unterminated line")
	ErrTruncated        = errors.New("truncated payload")
	ErrInvalidInteger   = errors.New("invalid integer")
	ErrUnknownType      = errors.New("unknown type")
	ErrTooDeep          = errors.New("nesting too deep")
)

// Encode errors.
var (
	ErrInvalidContent  = errors.New("invalid content")
	ErrUnsupportedType = errors.New("unsupported type")
)

// ErrUnknown is reported when decoding fails for a reason the framing
// rules do not cover. Decode returns it inside a *DecodeError.
var ErrUnknown = errors.New("unknown error")

// DecodeError describes why a buffer could not be decoded.
// It unwraps to one of the decode sentinel errors.
type DecodeError struct {
	// Kind is one of the Err* decode sentinels.
	Kind error
	// Offset is the position in the input where decoding failed.
	Offset int

	short bool
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("proto: %v at offset %d", e.Kind, e.Offset)
}

func (e *DecodeError) Unwrap() error { return e.Kind }

// NeedMore reports whether the input ended before the message did, so
// that appending more bytes may turn the failure into a success.
func (e *DecodeError) NeedMore() bool { return e.short }

// IsNeedMore reports whether err is a DecodeError caused by short input.
func IsNeedMore(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.NeedMore()
}

func decodeErr(kind error, off int) *DecodeError {
	return &DecodeError{Kind: kind, Offset: off}
}

func shortErr(kind error, off int) *DecodeError {
	return &DecodeError{Kind: kind, Offset: off, short: true}
}
