package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lilykv.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
addr = "127.0.0.1:7000"
buckets = 4
purge_interval = "250ms"
idle_timeout = "1m"
snapshot_path = "/tmp/lilykv.snap"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.Addr = "127.0.0.1:7000"
	want.Buckets = 4
	want.PurgeInterval = 250 * time.Millisecond
	want.IdleTimeout = time.Minute
	want.SnapshotPath = "/tmp/lilykv.snap"
	require.Equal(t, want, cfg)
	require.Equal(t, want.MaxDepth, cfg.Decoder().MaxDepth)
}

func TestLoadInvalid(t *testing.T) {
	for i, tc := range []struct {
		body string
		desc string
	}{
		{
			body: `addr = `,
			desc: "syntax error",
		}, {
			body: `port = 6380`,
			desc: "unknown key",
		}, {
			body: `buckets = 0`,
			desc: "no buckets",
		}, {
			body: `purge_interval = "soon"`,
			desc: "bad duration",
		}, {
			body: `max_message_bytes = 1`,
			desc: "tiny messages",
		}, {
			body: `addr = " "`,
			desc: "blank addr",
		},
	} {
		if _, err := Load(writeConfig(t, tc.body)); err == nil {
			t.Errorf("[%d] %s: should fail", i, tc.desc)
		}
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}
