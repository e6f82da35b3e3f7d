package proto

// Kind identifies a value variant. Its numeric value is the leading
// (tag) byte of the variant on the wire.
type Kind byte

// Supported datatypes.
const (
	SimpleStringKind Kind = '+'
	ErrorKind        Kind = '-'
	IntegerKind      Kind = ':'
	BulkStringKind   Kind = '$'
	ArrayKind        Kind = '*'
)

func (k Kind) String() string {
	switch k {
	case SimpleStringKind:
		return "simple string"
	case ErrorKind:
		return "error"
	case IntegerKind:
		return "integer"
	case BulkStringKind:
		return "bulk string"
	case ArrayKind:
		return "array"
	}
	return "unknown"
}

// Escape chars.
const (
	CR = '\r'
	NL = '\n'
)

// DefaultMaxDepth bounds array nesting when a Decoder or Encoder has no
// explicit limit.
const DefaultMaxDepth = 512

var crlf = []byte{CR, NL}
