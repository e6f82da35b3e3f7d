package proto

import (
	"bufio"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func scanAll(s *bufio.Scanner) []string {
	var tokens []string
	for s.Scan() {
		tokens = append(tokens, s.Text())
	}
	return tokens
}

func TestScannerPipelined(t *testing.T) {
	in := "+OK\r\n$3\r\nfoo\r\n*2\r\n:1\r\n$0\r\n\r\n*0\r\n"
	r := iotest.OneByteReader(strings.NewReader(in))

	s := NewScanner(r, Decoder{}, 1024)
	got := scanAll(s)

	require.NoError(t, s.Err())
	require.Equal(t, []string{"+OK\r\n", "$3\r\nfoo\r\n", "*2\r\n:1\r\n$0\r\n\r\n", "*0\r\n"}, got)
}

func TestScannerMalformed(t *testing.T) {
	s := NewScanner(strings.NewReader("+OK\r\n!bad\r\n+NEXT\r\n"), Decoder{}, 1024)
	got := scanAll(s)

	require.Equal(t, []string{"+OK\r\n"}, got)
	require.ErrorIs(t, s.Err(), ErrUnknownType)
}

func TestScannerPartialAtEOF(t *testing.T) {
	s := NewScanner(strings.NewReader("+OK\r\n$5\r\nab"), Decoder{}, 1024)
	got := scanAll(s)

	require.Equal(t, []string{"+OK\r\n"}, got)
	require.ErrorIs(t, s.Err(), ErrTruncated)
	require.True(t, IsNeedMore(s.Err()))
}

func TestScannerTooLong(t *testing.T) {
	s := NewScanner(strings.NewReader("$20\r\n01234567890123456789\r\n"), Decoder{}, 16)
	got := scanAll(s)

	require.Empty(t, got)
	require.True(t, errors.Is(s.Err(), bufio.ErrTooLong))
}

func TestScannerDecodesTokens(t *testing.T) {
	s := NewScanner(strings.NewReader("*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n"), Decoder{}, 0)
	require.True(t, s.Scan())

	v, n, err := Decode(s.Bytes())
	require.NoError(t, err)
	require.Equal(t, len(s.Bytes()), n)
	require.Equal(t, BulkArray("ECHO", "hi"), v)
}
