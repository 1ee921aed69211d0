// Package cachetest holds the behavioral contract of cache.BlobStoreCache
// implementations and test doubles for the cache-aware store.
package cachetest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/cache"
)

// RunContract exercises c against the BlobStoreCache contract.
func RunContract(t *testing.T, c cache.BlobStoreCache) {
	t.Helper()
	factory := blob.NewDigestFactory()
	ctx := context.Background()

	t.Run("CacheThenRead", func(t *testing.T) {
		id := factory.Random()
		require.NoError(t, c.Cache(ctx, id, []byte("cached bytes")))

		got, ok, err := c.Read(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("cached bytes"), got)
	})

	t.Run("ReadAbsent", func(t *testing.T) {
		got, ok, err := c.Read(ctx, factory.Random())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		id := factory.Random()
		require.NoError(t, c.Cache(ctx, id, []byte("first")))
		require.NoError(t, c.Cache(ctx, id, []byte("second")))

		got, ok, err := c.Read(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("Remove", func(t *testing.T) {
		id := factory.Random()
		require.NoError(t, c.Cache(ctx, id, []byte("doomed")))
		require.NoError(t, c.Remove(ctx, id))

		_, ok, err := c.Read(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RemoveAbsent", func(t *testing.T) {
		assert.NoError(t, c.Remove(ctx, factory.Random()))
	})

	t.Run("ReadReturnsCopy", func(t *testing.T) {
		id := factory.Random()
		payload := []byte("immutable")
		require.NoError(t, c.Cache(ctx, id, payload))
		payload[0] = 'X'

		got, ok, err := c.Read(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("immutable"), got)

		got[0] = 'Y'
		again, _, err := c.Read(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []byte("immutable"), again)
	})

	t.Run("BinaryPayload", func(t *testing.T) {
		id := factory.Random()
		payload := bytes.Repeat([]byte{0x00, 0xff, 0x10}, 1000)
		require.NoError(t, c.Cache(ctx, id, payload))

		got, ok, err := c.Read(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, payload, got)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, c.Cache(cctx, factory.Random(), []byte("x")))
		_, _, err := c.Read(cctx, factory.Random())
		assert.Error(t, err)
	})
}
