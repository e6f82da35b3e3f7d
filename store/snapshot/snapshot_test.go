package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/marcybelardo/lilykv/proto"
	"github.com/marcybelardo/lilykv/store"
)

func sortEntries(entries []store.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}

func TestSaveLoad(t *testing.T) {
	expires := time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())
	entries := []store.Entry{
		{Key: "plain", Val: []byte("value")},
		{Key: "binary", Val: []byte("a\r\nb\x00")},
		{Key: "empty", Val: []byte{}},
		{Key: "ttl", Val: []byte("soon"), ExpiresAt: expires},
		{Key: "gone", Val: []byte("old"), ExpiresAt: time.Now().Add(-time.Minute)},
	}

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, entries))

	got, err := Load(&buf, proto.Decoder{})
	require.NoError(t, err)

	want := entries[:4]
	sortEntries(want)
	sortEntries(got)
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].Key, got[i].Key)
		require.Equal(t, string(want[i].Val), string(got[i].Val))
		require.True(t, want[i].ExpiresAt.Equal(got[i].ExpiresAt), "%s expires", want[i].Key)
	}
}

func compressed(t *testing.T, raw string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return &buf
}

func TestLoadCorrupt(t *testing.T) {
	for i, tc := range []struct {
		raw  string
		desc string
	}{
		{
			raw:  "",
			desc: "empty",
		}, {
			raw:  "+OTHER\r\n",
			desc: "wrong header",
		}, {
			raw:  "+LILYKV1\r\n*2\r\n$1\r\nk\r\n$1\r\nv\r\n",
			desc: "short entry",
		}, {
			raw:  "+LILYKV1\r\n*3\r\n$1\r\nk\r\n$1\r\nv\r\n+0\r\n",
			desc: "wrong expiry type",
		}, {
			raw:  "+LILYKV1\r\n*3\r\n$1\r\nk\r\n$1\r\nv",
			desc: "truncated entry",
		},
	} {
		if _, err := Load(compressed(t, tc.raw), proto.Decoder{}); err == nil {
			t.Errorf("[%d] %s: should fail", i, tc.desc)
		} else {
			require.True(t, errors.Is(err, ErrCorrupt), "[%d] %s: %v", i, tc.desc, err)
		}
	}

	_, err := Load(bytes.NewReader([]byte("not zstd at all")), proto.Decoder{})
	require.Error(t, err)
}

func TestLoadCorruptKeepsCause(t *testing.T) {
	_, err := Load(compressed(t, "+LILYKV1\r\n*3\r\n$1\r\nk\r\n$1\r\nv"), proto.Decoder{})
	require.True(t, errors.Is(err, ErrCorrupt), "%v", err)
	require.True(t, errors.Is(err, proto.ErrTruncated), "%v", err)
	require.True(t, proto.IsNeedMore(err), "%v", err)

	var de *proto.DecodeError
	require.True(t, errors.As(err, &de))
	require.Equal(t, 26, de.Offset)

	_, err = Load(compressed(t, "+LILYKV1\r\n!x\r\n"), proto.Decoder{})
	require.True(t, errors.Is(err, ErrCorrupt), "%v", err)
	require.True(t, errors.Is(err, proto.ErrUnknownType), "%v", err)
	require.False(t, proto.IsNeedMore(err))
}

func TestFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.lily")

	got, err := LoadFile(path, proto.Decoder{})
	require.NoError(t, err)
	require.Empty(t, got)

	entries := []store.Entry{{Key: "k", Val: []byte("v")}}
	require.NoError(t, SaveFile(path, entries))
	require.NoError(t, SaveFile(path, entries))

	got, err = LoadFile(path, proto.Decoder{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "k", got[0].Key)

	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, files, 1)
}
