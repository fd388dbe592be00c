package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apierrors "github.com/gridkv/gridkv/errors"
	"github.com/gridkv/gridkv/proto"
)

func TestMemStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	defer s.Close()

	entry := &proto.Entry{Key: []byte("k1"), Value: []byte("v1"), Created: 100}
	require.NoError(t, s.Write(ctx, entry))

	loaded, err := s.Load(ctx, []byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), loaded.Value)

	ok, err := s.Contains(ctx, []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)

	missing, err := s.Load(ctx, []byte("nope"))
	require.NoError(t, err)
	require.Nil(t, missing)

	removed, err := s.Delete(ctx, []byte("k1"))
	require.NoError(t, err)
	require.True(t, removed)
	removed, err = s.Delete(ctx, []byte("k1"))
	require.NoError(t, err)
	require.False(t, removed)
}

func TestMemStore_ScanOrderAndOptions(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	defer s.Close()

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, s.Write(ctx, &proto.Entry{
			Key: []byte(k), Value: []byte("v-" + k), Created: 7, Lifespan: 60,
		}))
	}

	var keys []string
	require.NoError(t, s.Scan(ctx, ScanOptions{}, func(entry *proto.Entry) bool {
		keys = append(keys, string(entry.Key))
		require.Nil(t, entry.Value)
		require.Zero(t, entry.Created)
		return true
	}))
	require.Equal(t, []string{"a", "b", "c"}, keys)

	n := 0
	require.NoError(t, s.Scan(ctx, ScanOptions{FetchValues: true, FetchMetadata: true}, func(entry *proto.Entry) bool {
		require.Equal(t, "v-"+string(entry.Key), string(entry.Value))
		require.Equal(t, int64(7), entry.Created)
		n++
		return n < 2 // early stop
	}))
	require.Equal(t, 2, n)
}

func TestMemStore_Purge(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	defer s.Close()

	now := time.Now()
	nowMs := now.UnixNano() / int64(time.Millisecond)
	require.NoError(t, s.Write(ctx, &proto.Entry{Key: []byte("stale"), Created: nowMs - 10_000, Lifespan: 5}))
	require.NoError(t, s.Write(ctx, &proto.Entry{Key: []byte("fresh"), Created: nowMs, Lifespan: 3600}))
	require.NoError(t, s.Write(ctx, &proto.Entry{Key: []byte("immortal"), Created: nowMs - 10_000}))

	require.NoError(t, s.Purge(ctx, now))

	size, err := s.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, size)
	ok, err := s.Contains(ctx, []byte("stale"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStore_Batch(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	defer s.Close()

	require.NoError(t, s.Write(ctx, &proto.Entry{Key: []byte("gone")}))

	batch := s.NewBatch()
	for i := 0; i < 3; i++ {
		batch.Put(&proto.Entry{Key: []byte(fmt.Sprintf("b%d", i))})
	}
	batch.Delete([]byte("gone"))

	// nothing lands before commit
	size, err := s.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, size)

	require.NoError(t, batch.Commit(ctx))
	batch.Close()

	size, err = s.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, size)
	ok, err := s.Contains(ctx, []byte("gone"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	s.Close()

	require.ErrorIs(t, s.Write(ctx, &proto.Entry{Key: []byte("k")}), apierrors.ErrStoreClosed)
	_, err := s.Load(ctx, []byte("k"))
	require.ErrorIs(t, err, apierrors.ErrStoreClosed)
	require.ErrorIs(t, s.Scan(ctx, ScanOptions{}, func(*proto.Entry) bool { return true }), apierrors.ErrStoreClosed)
}
