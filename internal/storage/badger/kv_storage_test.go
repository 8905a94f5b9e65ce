package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVSetGetDelete(t *testing.T) {
	kv := newTestManager(t).KVStorage()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "mode", "fast"))

	value, err := kv.Get(ctx, "mode")
	require.NoError(t, err)
	assert.Equal(t, "fast", value)

	// overwrite
	require.NoError(t, kv.Set(ctx, "mode", "slow"))
	value, err = kv.Get(ctx, "mode")
	require.NoError(t, err)
	assert.Equal(t, "slow", value)

	require.NoError(t, kv.Delete(ctx, "mode"))
	_, err = kv.Get(ctx, "mode")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKVMissingKey(t *testing.T) {
	kv := newTestManager(t).KVStorage()
	ctx := context.Background()

	_, err := kv.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.ErrorIs(t, kv.Delete(ctx, "absent"), ErrKeyNotFound)
}

func TestKVGetAll(t *testing.T) {
	kv := newTestManager(t).KVStorage()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "a", "1"))
	require.NoError(t, kv.Set(ctx, "b", "2"))

	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}
