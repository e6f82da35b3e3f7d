package proto

import (
	"io"

	log "github.com/marcybelardo/lilykv/logger"
)

// Write encodes v and writes it into w. A value that cannot be encoded
// is replaced by an encoded ErrUnknown reply; Write fails only if it
// can not write to w.
func Write(w io.Writer, v Value) error {
	encoded, err := Encode(v)
	if err != nil {
		log.Err("unable to encode reply %T: %v", v, err)
		return WriteUnknownErr(w)
	}

	_, err = w.Write(encoded)
	return err
}

// WriteErr writes err as an Error reply prefixed with "ERR ".
func WriteErr(w io.Writer, err error) error {
	return Write(w, ErrorReply(err))
}

var unknownErrEncoded = makeErrEncoded()

// WriteUnknownErr writes encoded ErrUnknown to writer w.
func WriteUnknownErr(w io.Writer) error {
	_, err := w.Write(unknownErrEncoded)
	return err
}

func makeErrEncoded() []byte {
	b, _ := Encode(ErrorReply(ErrUnknown))
	return b
}

// ErrorReply turns err into an Error value prefixed with "ERR ".
// Line breaks in the message are replaced by spaces.
func ErrorReply(err error) Error {
	msg := []byte("ERR " + err.Error())
	for i, b := range msg {
		if b == CR || b == NL {
			msg[i] = ' '
		}
	}
	return Error(msg)
}
