// Package daotest holds the behavioral contract every objectstore.DAO
// implementation must satisfy.
package daotest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/blobstore/internal/blob"
	"github.com/dray-io/blobstore/internal/objectstore"
)

// RunContract exercises dao against the DAO contract. Every subtest uses its
// own bucket so a single DAO instance can be shared.
func RunContract(t *testing.T, dao objectstore.DAO) {
	t.Helper()
	factory := blob.NewDigestFactory()
	ctx := context.Background()
	seq := 0
	bucket := func() blob.BucketName {
		seq++
		return blob.BucketName(fmt.Sprintf("contract-%d-%s", seq, strings.ToLower(factory.Random().String()[:8])))
	}

	t.Run("SaveThenReadBytes", func(t *testing.T) {
		b := bucket()
		id := factory.ForPayload([]byte("hello"))
		require.NoError(t, dao.Save(ctx, b, id, []byte("hello")))

		got, err := dao.ReadBytes(ctx, b, id)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), got)
	})

	t.Run("SaveEmptyPayload", func(t *testing.T) {
		b := bucket()
		id := factory.ForPayload(nil)
		require.NoError(t, dao.Save(ctx, b, id, []byte{}))

		got, err := dao.ReadBytes(ctx, b, id)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		b := bucket()
		id := factory.Random()
		require.NoError(t, dao.Save(ctx, b, id, []byte("first")))
		require.NoError(t, dao.Save(ctx, b, id, []byte("second")))

		got, err := dao.ReadBytes(ctx, b, id)
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("SaveStreamThenRead", func(t *testing.T) {
		b := bucket()
		payload := bytes.Repeat([]byte("0123456789"), 10_000)
		id := factory.ForPayload(payload)
		require.NoError(t, dao.SaveStream(ctx, b, id, bytes.NewReader(payload)))

		rc, err := dao.Read(ctx, b, id)
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("ReadMissingBlob", func(t *testing.T) {
		b := bucket()
		require.NoError(t, dao.Save(ctx, b, factory.Random(), []byte("x")))

		_, err := dao.ReadBytes(ctx, b, factory.Random())
		assert.True(t, errors.Is(err, blob.ErrNotFound), "got %v", err)

		_, err = dao.Read(ctx, b, factory.Random())
		assert.True(t, errors.Is(err, blob.ErrNotFound), "got %v", err)
	})

	t.Run("ReadMissingBucket", func(t *testing.T) {
		_, err := dao.ReadBytes(ctx, bucket(), factory.Random())
		assert.True(t, blob.IsNotFound(err), "got %v", err)
	})

	t.Run("Exists", func(t *testing.T) {
		b := bucket()
		id := factory.Random()
		ok, err := dao.Exists(ctx, b, id)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, dao.Save(ctx, b, id, []byte("x")))
		ok, err = dao.Exists(ctx, b, id)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		b := bucket()
		id := factory.Random()
		require.NoError(t, dao.Save(ctx, b, id, []byte("x")))

		require.NoError(t, dao.Delete(ctx, b, id))
		require.NoError(t, dao.Delete(ctx, b, id))
		require.NoError(t, dao.Delete(ctx, bucket(), id))

		_, err := dao.ReadBytes(ctx, b, id)
		assert.True(t, errors.Is(err, blob.ErrNotFound))
	})

	t.Run("DeleteBatch", func(t *testing.T) {
		b := bucket()
		var ids []blob.ID
		for i := 0; i < 25; i++ {
			id := factory.Random()
			ids = append(ids, id)
			require.NoError(t, dao.Save(ctx, b, id, []byte{byte(i)}))
		}
		keep := ids[20:]

		require.NoError(t, dao.DeleteBatch(ctx, b, append(ids[:20:20], factory.Random())))

		assert.ElementsMatch(t, idStrings(keep), idStrings(collect(t, dao, b)))
	})

	t.Run("ListBlobs", func(t *testing.T) {
		b := bucket()
		want := make([]string, 0, 10)
		for i := 0; i < 10; i++ {
			id := factory.Random()
			want = append(want, id.String())
			require.NoError(t, dao.Save(ctx, b, id, []byte("x")))
		}
		assert.ElementsMatch(t, want, idStrings(collect(t, dao, b)))
	})

	t.Run("ListBlobsMissingBucket", func(t *testing.T) {
		assert.Empty(t, collect(t, dao, bucket()))
	})

	t.Run("ListBlobsStopsEarly", func(t *testing.T) {
		b := bucket()
		for i := 0; i < 5; i++ {
			require.NoError(t, dao.Save(ctx, b, factory.Random(), []byte("x")))
		}
		n := 0
		for _, err := range dao.ListBlobs(ctx, b) {
			require.NoError(t, err)
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)
	})

	t.Run("DeleteBucket", func(t *testing.T) {
		b := bucket()
		id := factory.Random()
		require.NoError(t, dao.Save(ctx, b, id, []byte("x")))

		require.NoError(t, dao.DeleteBucket(ctx, b))
		require.NoError(t, dao.DeleteBucket(ctx, b))

		_, err := dao.ReadBytes(ctx, b, id)
		assert.True(t, blob.IsNotFound(err))
		assert.Empty(t, collect(t, dao, b))

		buckets, err := dao.ListBuckets(ctx)
		require.NoError(t, err)
		assert.NotContains(t, buckets, b)
	})

	t.Run("ListBuckets", func(t *testing.T) {
		b1, b2 := bucket(), bucket()
		require.NoError(t, dao.Save(ctx, b1, factory.Random(), []byte("x")))
		require.NoError(t, dao.Save(ctx, b2, factory.Random(), []byte("x")))

		buckets, err := dao.ListBuckets(ctx)
		require.NoError(t, err)
		assert.Contains(t, buckets, b1)
		assert.Contains(t, buckets, b2)
	})
}

func collect(t *testing.T, dao objectstore.DAO, bucket blob.BucketName) []blob.ID {
	t.Helper()
	var ids []blob.ID
	for id, err := range dao.ListBlobs(context.Background(), bucket) {
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func idStrings(ids []blob.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
