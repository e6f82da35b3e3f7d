package server

import (
	"bufio"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcybelardo/lilykv/config"
	"github.com/marcybelardo/lilykv/proto"
	"github.com/marcybelardo/lilykv/store/mstore"
	"github.com/marcybelardo/lilykv/store/snapshot"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = 5 * time.Second
	return cfg
}

func startServer(t *testing.T, cfg config.Config) *server {
	t.Helper()

	st := mstore.New(4, time.Hour)
	t.Cleanup(func() { st.Close() })

	s, err := New(cfg, st)
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })
	return s
}

type testConn struct {
	net.Conn
	scanner *bufio.Scanner
}

func dial(t *testing.T, s *server) *testConn {
	t.Helper()

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return &testConn{Conn: conn, scanner: proto.NewScanner(conn, proto.Decoder{}, 0)}
}

func (c *testConn) send(t *testing.T, args ...string) {
	t.Helper()
	require.NoError(t, proto.Write(c, proto.BulkArray(args...)))
}

func (c *testConn) reply(t *testing.T) proto.Value {
	t.Helper()

	require.True(t, c.scanner.Scan(), "no reply: %v", c.scanner.Err())
	v, _, err := proto.Decode(c.scanner.Bytes())
	require.NoError(t, err)
	return v
}

func TestServeCommands(t *testing.T) {
	s := startServer(t, testConfig(t))
	c := dial(t, s)

	c.send(t, "PING")
	require.Equal(t, proto.SimpleString("PONG"), c.reply(t))

	c.send(t, "SET", "key", "line\r\nbreak")
	require.Equal(t, proto.SimpleString("OK"), c.reply(t))

	c.send(t, "GET", "key")
	require.Equal(t, proto.Bulk("line\r\nbreak"), c.reply(t))

	c.send(t, "GET", "missing")
	require.Equal(t, proto.Error("ERR not found"), c.reply(t))
}

func TestServePipelinedSplitWrites(t *testing.T) {
	s := startServer(t, testConfig(t))
	c := dial(t, s)

	var msg []byte
	for _, args := range [][]string{{"SET", "a", "1"}, {"ECHO", "hi"}, {"GET", "a"}} {
		var err error
		msg, err = proto.Append(msg, proto.BulkArray(args...))
		require.NoError(t, err)
	}

	for _, b := range msg {
		_, err := c.Write([]byte{b})
		require.NoError(t, err)
	}

	require.Equal(t, proto.SimpleString("OK"), c.reply(t))
	require.Equal(t, proto.Bulk("hi"), c.reply(t))
	require.Equal(t, proto.Bulk("1"), c.reply(t))
}

func TestServeBadRequest(t *testing.T) {
	s := startServer(t, testConfig(t))
	c := dial(t, s)

	_, err := c.Write([]byte("+PING\r\n"))
	require.NoError(t, err)
	require.Equal(t, proto.Error("ERR Protocol error: expected a non-empty array of bulk strings"), c.reply(t))

	c.send(t, "PING")
	require.Equal(t, proto.SimpleString("PONG"), c.reply(t))
}

func TestServeMalformedClosesConnection(t *testing.T) {
	s := startServer(t, testConfig(t))
	c := dial(t, s)

	_, err := c.Write([]byte("!oops\r\n"))
	require.NoError(t, err)

	v := c.reply(t)
	e, ok := v.(proto.Error)
	require.True(t, ok, "got %v", v)
	require.Contains(t, string(e), "ERR Protocol error")
	require.Contains(t, string(e), "unknown type")

	_, err = c.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestServeMessageTooLong(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxMessageBytes = 64
	s := startServer(t, cfg)
	c := dial(t, s)

	c.send(t, "SET", "key", string(make([]byte, 128)))

	e, ok := c.reply(t).(proto.Error)
	require.True(t, ok)
	require.Contains(t, string(e), "Protocol error")
}

func TestIdleTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.IdleTimeout = 50 * time.Millisecond
	s := startServer(t, cfg)
	c := dial(t, s)

	_, err := c.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestStopWithIdleClients(t *testing.T) {
	s := startServer(t, testConfig(t))
	c := dial(t, s)

	c.send(t, "PING")
	require.Equal(t, proto.SimpleString("PONG"), c.reply(t))

	start := time.Now()
	require.NoError(t, s.Stop())
	require.Less(t, time.Since(start), s.cfg.ShutdownTimeout)

	select {
	case <-s.Done():
	default:
		t.Fatal("done should be closed after stop")
	}

	_, err := net.DialTimeout("tcp", s.Addr().String(), time.Second)
	require.Error(t, err)
	require.NoError(t, s.Stop())
}

func TestSnapshotOnSaveAndStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "dump.lily")
	s := startServer(t, cfg)
	c := dial(t, s)

	c.send(t, "SET", "a", "1")
	require.Equal(t, proto.SimpleString("OK"), c.reply(t))
	c.send(t, "SAVE")
	require.Equal(t, proto.SimpleString("OK"), c.reply(t))

	entries, err := snapshot.LoadFile(cfg.SnapshotPath, proto.Decoder{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	c.send(t, "SET", "b", "2")
	require.Equal(t, proto.SimpleString("OK"), c.reply(t))
	require.NoError(t, s.Stop())

	entries, err = snapshot.LoadFile(cfg.SnapshotPath, proto.Decoder{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Buckets = 0

	st := mstore.New(1, time.Hour)
	defer st.Close()

	_, err := New(cfg, st)
	require.Error(t, err)
}
