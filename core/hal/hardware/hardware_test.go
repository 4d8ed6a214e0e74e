package hardware

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zeroos-project/zeroos/core/hal"
)

func newTestHAL(t *testing.T) *HAL {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "init"), []byte{0xde, 0xad, 0xbe, 0xef}, 0644))

	h, err := New(Config{
		BinDir:         filepath.Join(dir, "bin"),
		StorageDBPath:  filepath.Join(dir, "storage.db"),
		KeystoreDBPath: filepath.Join(dir, "keystore.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestLoadBinaryFromDisk(t *testing.T) {
	h := newTestHAL(t)
	data, err := h.LoadBinary(context.Background(), "init")
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data)
}

func TestLoadBinaryMissingReturnsNilNoError(t *testing.T) {
	h := newTestHAL(t)
	data, err := h.LoadBinary(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestWatcherPicksUpNewBinary(t *testing.T) {
	h := newTestHAL(t)
	newPath := filepath.Join(h.binDir, "svc")
	require.NoError(t, os.WriteFile(newPath, []byte{0x01}, 0644))

	require.Eventually(t, func() bool {
		data, err := h.LoadBinary(context.Background(), "svc")
		return err == nil && len(data) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStorageAndKeystoreUseSeparateFiles(t *testing.T) {
	h := newTestHAL(t)
	res := h.Storage().Submit(context.Background(), 1, hal.StorageRequest{Key: []byte("k"), Payload: []byte("v")})
	require.GreaterOrEqual(t, res.Code, int64(0))

	res2 := h.Keystore().Submit(context.Background(), 1, hal.KeystoreRequest{Key: []byte("secret")})
	require.GreaterOrEqual(t, res2.Code, int64(0))
	require.NotEqual(t, h.storageDB, h.keystoreDB)
}

func TestEntropyReturnsRequestedLength(t *testing.T) {
	h := newTestHAL(t)
	b, err := h.Entropy(16)
	require.NoError(t, err)
	require.Len(t, b, 16)
}
