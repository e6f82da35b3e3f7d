package proto

import (
	"bufio"
	"io"
)

// Split implements bufio.SplitFunc. Each token is the raw encoding of
// one complete message. Short input asks the scanner for more data;
// malformed input, or a partial message at EOF, stops the scan with a
// *DecodeError.
func (d Decoder) Split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}

	n, err := d.Frame(data)
	if err != nil {
		if IsNeedMore(err) && !atEOF {
			return 0, nil, nil
		}
		return 0, nil, err
	}

	return n, data[:n], nil
}

// NewScanner wraps reader r into a scanner yielding one raw message per
// token. Messages longer than maxSize bytes fail with bufio.ErrTooLong.
func NewScanner(r io.Reader, d Decoder, maxSize int) *bufio.Scanner {
	if maxSize <= 0 {
		maxSize = bufio.MaxScanTokenSize
	}

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, min(4096, maxSize)), maxSize)
	s.Split(d.Split)
	return s
}
