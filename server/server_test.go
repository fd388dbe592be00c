package server

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridkv/gridkv/common/sets"
	apierrors "github.com/gridkv/gridkv/errors"
	"github.com/gridkv/gridkv/proto"
	"github.com/gridkv/gridkv/server/iteration"
	"github.com/gridkv/gridkv/server/store"
)

// modHash assigns key "k-<i>" to segment i % numSegments.
type modHash struct {
	numSegments int
}

func (m *modHash) GetSegment(key []byte) int {
	var i int
	fmt.Sscanf(string(key), "k-%d", &i)
	return i % m.numSegments
}

func (m *modHash) GetServer(key []byte) string                      { return "node-a:9100" }
func (m *modHash) GetOwners(segment int) []string                   { return []string{"node-a:9100"} }
func (m *modHash) GetSegmentsByServer() map[string]*sets.SegmentSet { return nil }
func (m *modHash) NumSegments() int                                 { return m.numSegments }

func newTestService(t *testing.T, owned *sets.SegmentSet) *Service {
	service := NewService(&Config{Iteration: iteration.Config{TaskPoolNum: 2}})
	t.Cleanup(service.Close)

	s := store.NewMemStore()
	for i := 0; i < 16; i++ {
		require.NoError(t, s.Write(context.Background(), &proto.Entry{
			Key:   []byte(fmt.Sprintf("k-%d", i)),
			Value: []byte(fmt.Sprintf("v-%d", i)),
		}))
	}
	service.RegisterView("books", s, &modHash{numSegments: 4}, owned)
	return service
}

func TestService_UnknownView(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	_, err := service.StartIteration(ctx, &iteration.StartRequest{CacheName: "music", BatchSize: 4})
	require.ErrorIs(t, err, apierrors.ErrViewDoesNotExist)
}

func TestService_IterateWholeView(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	id, err := service.StartIteration(ctx, &iteration.StartRequest{CacheName: "books", BatchSize: 100})
	require.NoError(t, err)
	defer service.CloseIteration(ctx, id)

	result, err := service.NextIteration(ctx, id)
	require.NoError(t, err)
	require.Len(t, result.Entries, 16)
	require.Equal(t, 4, result.Completed.Len())
}

func TestService_OwnedSegmentRestriction(t *testing.T) {
	ctx := context.Background()
	// this node owns segments 0 and 1
	service := newTestService(t, sets.From(4, 0, 1))

	id, err := service.StartIteration(ctx, &iteration.StartRequest{CacheName: "books", BatchSize: 100})
	require.NoError(t, err)
	result, err := service.NextIteration(ctx, id)
	require.NoError(t, err)
	require.Len(t, result.Entries, 8)
	require.Equal(t, []int{0, 1}, result.Completed.Slice())

	// an explicit filter intersects with the owned set
	id, err = service.StartIteration(ctx, &iteration.StartRequest{
		CacheName: "books",
		Segments:  sets.From(4, 1, 3),
		BatchSize: 100,
	})
	require.NoError(t, err)
	result, err = service.NextIteration(ctx, id)
	require.NoError(t, err)
	require.Len(t, result.Entries, 4)
	require.Equal(t, []int{1}, result.Completed.Slice())
}

func TestService_AsyncIteration(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)

	id, err := service.StartIteration(ctx, &iteration.StartRequest{CacheName: "books", BatchSize: 7})
	require.NoError(t, err)
	res := <-service.NextIterationAsync(ctx, id)
	require.NoError(t, res.Err)
	require.Len(t, res.Result.Entries, 7)
	require.True(t, service.CloseIteration(ctx, id))
	require.False(t, service.CloseIteration(ctx, id))
}
