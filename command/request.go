package command

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/marcybelardo/lilykv/proto"
)

// ErrBadRequest is returned for requests that are not a non-empty array
// of bulk strings.
var ErrBadRequest = errors.New("Protocol error: expected a non-empty array of bulk strings")

// Req is a decoded command invocation.
type Req struct {
	// Cmd is the upper-cased command name.
	Cmd  string
	Args [][]byte
}

// ParseReq turns a decoded value into a request.
func ParseReq(v proto.Value) (*Req, error) {
	a, ok := v.(proto.Array)
	if !ok || len(a) == 0 {
		return nil, ErrBadRequest
	}

	parts := make([][]byte, len(a))
	for i, el := range a {
		b, ok := el.(proto.BulkString)
		if !ok {
			return nil, ErrBadRequest
		}
		parts[i] = b
	}

	return &Req{
		Cmd:  strings.ToUpper(string(parts[0])),
		Args: parts[1:],
	}, nil
}
