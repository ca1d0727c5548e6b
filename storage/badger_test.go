package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBadgerBackend("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, "k", []byte("v1")))
	require.NoError(t, b.Set(ctx, "k", []byte("v2")))

	data, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	require.NoError(t, b.Delete(ctx, "k"))
	require.NoError(t, b.Delete(ctx, "k"))
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerBackendPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := OpenBadgerBackend(dir)
	require.NoError(t, err)
	require.NoError(t, NewGuard(b).Write(ctx, DefaultSessionKey, mustDecode(t, validEnvelope)))
	require.NoError(t, b.Close())

	reopened, err := OpenBadgerBackend(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	env, ok := NewGuard(reopened).Read(ctx, DefaultSessionKey)
	require.True(t, ok)
	assert.Equal(t, "u-1", env.State.User.ID)
}
