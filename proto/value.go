package proto

// Value is a decoded or encodable protocol value. The set of
// implementations is closed: SimpleString, Error, Integer, BulkString
// and Array.
type Value interface {
	Kind() Kind
	value()
}

// SimpleString is a short status payload. It must not contain CRLF.
type SimpleString string

// Error is an error reply payload. It must not contain CRLF.
type Error string

// Integer is a signed 64-bit integer.
type Integer int64

// BulkString is a length-prefixed binary-safe payload.
type BulkString []byte

// Array is an ordered sequence of values.
type Array []Value

func (SimpleString) Kind() Kind { return SimpleStringKind }
func (Error) Kind() Kind        { return ErrorKind }
func (Integer) Kind() Kind      { return IntegerKind }
func (BulkString) Kind() Kind   { return BulkStringKind }
func (Array) Kind() Kind        { return ArrayKind }

func (SimpleString) value() {}
func (Error) value()        {}
func (Integer) value()      {}
func (BulkString) value()   {}
func (Array) value()        {}

// Error implements error so that error replies can be returned as is.
func (e Error) Error() string { return string(e) }

// Bulk is a shorthand for BulkString([]byte(s)).
func Bulk(s string) BulkString { return BulkString(s) }

// BulkArray builds an array of bulk strings, the shape requests take.
func BulkArray(args ...string) Array {
	a := make(Array, len(args))
	for i, s := range args {
		a[i] = BulkString(s)
	}
	return a
}
