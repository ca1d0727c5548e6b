package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested")
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	_, err = b.Get(ctx, DefaultSessionKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, DefaultSessionKey, []byte(validEnvelope)))

	info, err := os.Stat(filepath.Join(dir, DefaultSessionKey+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePermissions), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(DirPermissions), dirInfo.Mode().Perm())

	data, err := b.Get(ctx, DefaultSessionKey)
	require.NoError(t, err)
	assert.Equal(t, validEnvelope, string(data))

	require.NoError(t, b.Delete(ctx, DefaultSessionKey))
	require.NoError(t, b.Delete(ctx, DefaultSessionKey))
	_, err = b.Get(ctx, DefaultSessionKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileBackendOverwriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	require.NoError(t, b.Set(ctx, "k", []byte("one")))
	require.NoError(t, b.Set(ctx, "k", []byte("two")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestFileBackendRejectsPathKeys(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", ".."} {
		_, err := b.Get(context.Background(), key)
		assert.Error(t, err, key)
		assert.NotErrorIs(t, err, ErrNotFound, key)
	}
}

func TestFileBackendDefaultDirUsesXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	b, err := NewFileBackend("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, DefaultDirName), b.Dir())
}
