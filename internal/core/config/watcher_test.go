package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFile_DeliversReloadedConfig(t *testing.T) {
	path := writeConfig(t, "version = 1\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := WatchFile(ctx, path)
	require.NoError(t, err)
	defer r.Close()

	// An invalid save is rejected and never delivered.
	require.NoError(t, os.WriteFile(path, []byte("version = 9\n"), 0o644))
	time.Sleep(4 * reloadSettle)
	require.NoError(t, os.WriteFile(path, []byte("version = 1\n[watch]\nburst = 7\n"), 0o644))

	select {
	case cfg := <-r.C():
		assert.Equal(t, 7, cfg.Watch.Burst)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload delivered")
	}
}

func TestWatchFile_CloseIsIdempotent(t *testing.T) {
	r, err := WatchFile(context.Background(), writeConfig(t, "version = 1\n"))
	require.NoError(t, err)
	r.Close()
	r.Close()
}

func TestWatchFile_MissingDirectory(t *testing.T) {
	_, err := WatchFile(context.Background(), "/does/not/exist/sfclink.toml")
	assert.Error(t, err)
}
