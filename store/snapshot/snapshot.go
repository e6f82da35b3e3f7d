// Package snapshot persists store entries as a zstd compressed stream of
// protocol messages: a header line followed by one array per entry,
//
//	+LILYKV1\r\n
//	*3\r\n$<key>\r\n$<value>\r\n:<expires at, unix ms, 0 for never>\r\n
//	...
package snapshot

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"

	"github.com/marcybelardo/lilykv/proto"
	"github.com/marcybelardo/lilykv/store"
)

const header = proto.SimpleString("LILYKV1")

// ErrCorrupt is returned when a snapshot does not follow the format.
// Match it with errors.Is from github.com/cockroachdb/errors, which also
// matches the underlying proto errors.
var ErrCorrupt = errors.New("corrupt snapshot")

func corrupt(err error) error {
	return errors.Mark(errors.Wrap(err, "corrupt snapshot"), ErrCorrupt)
}

// Save writes entries to w.
func Save(w io.Writer, entries []store.Entry) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(zw)
	if err := proto.Write(bw, header); err != nil {
		zw.Close()
		return err
	}

	buf := make([]byte, 0, 256)
	for _, e := range entries {
		buf, err = proto.Append(buf[:0], entryValue(e))
		if err != nil {
			zw.Close()
			return errors.Wrapf(err, "encode entry %q", e.Key)
		}
		if _, err := bw.Write(buf); err != nil {
			zw.Close()
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func entryValue(e store.Entry) proto.Value {
	var expires int64
	if !e.ExpiresAt.IsZero() {
		expires = e.ExpiresAt.UnixMilli()
	}

	return proto.Array{
		proto.BulkString(e.Key),
		proto.BulkString(e.Val),
		proto.Integer(expires),
	}
}

// Load reads a snapshot written by Save. Entries already expired are
// skipped.
func Load(r io.Reader, d proto.Decoder) ([]store.Entry, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "decompress snapshot")
	}

	c := proto.NewCursor(data)
	v, err := d.Decode(c)
	if err != nil {
		return nil, corrupt(err)
	}
	if v != header {
		return nil, errors.Wrapf(ErrCorrupt, "unexpected header %v", v)
	}

	now := time.Now()
	var entries []store.Entry
	for c.Len() > 0 {
		v, err := d.Decode(c)
		if err != nil {
			return nil, corrupt(err)
		}

		e, err := parseEntry(v)
		if err != nil {
			return nil, err
		}
		if e.Expired(now) {
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func parseEntry(v proto.Value) (store.Entry, error) {
	a, ok := v.(proto.Array)
	if !ok || len(a) != 3 {
		return store.Entry{}, errors.Wrapf(ErrCorrupt, "entry is not a 3 element array: %v", v)
	}

	key, ok1 := a[0].(proto.BulkString)
	val, ok2 := a[1].(proto.BulkString)
	expires, ok3 := a[2].(proto.Integer)
	if !ok1 || !ok2 || !ok3 {
		return store.Entry{}, errors.Wrap(ErrCorrupt, "malformed entry fields")
	}

	e := store.Entry{Key: string(key), Val: []byte(val)}
	if expires != 0 {
		e.ExpiresAt = time.UnixMilli(int64(expires))
	}
	return e, nil
}

// SaveFile writes entries to path atomically.
func SaveFile(path string, entries []store.Entry) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create snapshot")
	}
	defer os.Remove(tmp.Name())

	if err := Save(tmp, entries); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write snapshot %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return errors.Wrap(os.Rename(tmp.Name(), path), "rename snapshot")
}

// LoadFile reads the snapshot at path. A missing file holds no entries.
func LoadFile(path string, d proto.Decoder) ([]store.Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := Load(bufio.NewReader(f), d)
	if err != nil {
		return nil, errors.Wrapf(err, "load snapshot %s", path)
	}
	return entries, nil
}
