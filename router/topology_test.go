package router

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridkv/gridkv/proto"
)

var bootstrapServers = []string{"node-a:9100", "node-b:9100"}

func newTestTopology() *TopologyInfo {
	return NewTopologyInfo(0, bootstrapServers)
}

func segmentUpdate(cacheName string, topologyId int64, owners [][]string) *proto.TopologyUpdate {
	return &proto.TopologyUpdate{
		CacheName:     cacheName,
		TopologyId:    topologyId,
		HashVersion:   proto.HashVersionSegment,
		SegmentOwners: owners,
		NumSegments:   len(owners),
	}
}

func TestTopologyInfo_BootstrapFallback(t *testing.T) {
	topology := newTestTopology()

	// a cache with no recorded topology resolves the bootstrap list
	require.Equal(t, bootstrapServers, topology.GetServers("books"))
	require.Equal(t, bootstrapServers, topology.GetServers(proto.DefaultCacheName))
}

func TestTopologyInfo_UpdateTopology(t *testing.T) {
	ctx := context.Background()
	topology := newTestTopology()

	topology.ApplyUpdate(ctx, segmentUpdate("books", 5, [][]string{
		{"node-a:9100"},
		{"node-b:9100"},
	}))

	require.Equal(t, int64(5), topology.GetTopologyId("books"))
	require.True(t, topology.IsTopologyValid("books"))

	server := topology.GetHashAwareServer(ctx, []byte("some-key"), "books")
	require.Contains(t, []string{"node-a:9100", "node-b:9100"}, server)
}

func TestTopologyInfo_UnsupportedHashVersion(t *testing.T) {
	ctx := context.Background()
	topology := newTestTopology()

	update := segmentUpdate("books", 7, [][]string{{"node-a:9100"}})
	update.HashVersion = 99
	topology.ApplyUpdate(ctx, update)

	// topology id still advances, but routing degrades to non hash-aware
	require.Equal(t, int64(7), topology.GetTopologyId("books"))
	require.Equal(t, "", topology.GetHashAwareServer(ctx, []byte("k"), "books"))
}

func TestTopologyInfo_SwitchSentinel(t *testing.T) {
	ctx := context.Background()
	topology := newTestTopology()

	topology.ApplyUpdate(ctx, segmentUpdate("books", 3, [][]string{{"node-a:9100"}}))
	require.NotEqual(t, "", topology.GetHashAwareServer(ctx, []byte("k"), "books"))

	topology.SetAllTopologyIds(proto.SwitchClusterTopology)
	require.False(t, topology.IsTopologyValid("books"))
	require.Equal(t, "", topology.GetHashAwareServer(ctx, []byte("k"), "books"))

	// a fresh push resumes hash-aware routing
	topology.ApplyUpdate(ctx, segmentUpdate("books", 4, [][]string{{"node-a:9100"}}))
	require.True(t, topology.IsTopologyValid("books"))
	require.Equal(t, "node-a:9100", topology.GetHashAwareServer(ctx, []byte("k"), "books"))
}

func TestTopologyInfo_NoMixedVersions(t *testing.T) {
	// concurrent pushes with increasing ids: a reader must never observe
	// the hash of one version paired with the id of another
	ctx := context.Background()
	topology := newTestTopology()

	servers := []string{"node-a:9100", "node-b:9100", "node-c:9100"}
	for id := int64(1); id <= 3; id++ {
		topology.ApplyUpdate(ctx, segmentUpdate("books", id, [][]string{{servers[id-1]}}))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for id := int64(4); id <= 200; id++ {
			topology.ApplyUpdate(ctx, segmentUpdate("books", id, [][]string{{servers[id%3]}}))
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			require.Equal(t, int64(200), topology.GetTopologyId("books"))
			require.Equal(t, servers[200%3], topology.GetHashAwareServer(ctx, []byte("k"), "books"))
			return
		default:
			record := topology.caches.Get("books")
			require.NotNil(t, record)
			// the record's hash must be the one installed with its id
			owner := record.hash.GetOwners(0)[0]
			require.Equal(t, servers[record.topologyId%3], owner)
		}
	}
}

func TestTopologyInfo_UpdateServers(t *testing.T) {
	ctx := context.Background()
	topology := newTestTopology()
	topology.ApplyUpdate(ctx, segmentUpdate("books", 1, [][]string{{"node-a:9100"}}))
	topology.ApplyUpdate(ctx, segmentUpdate("music", 1, [][]string{{"node-b:9100"}}))

	refreshed := []string{"node-x:9100", "node-y:9100"}
	topology.UpdateServers(ctx, proto.DefaultCacheName, refreshed)

	require.Equal(t, refreshed, topology.GetServers("books"))
	require.Equal(t, refreshed, topology.GetServers("music"))
	require.Equal(t, refreshed, topology.GetServers(proto.DefaultCacheName))
	// hash and id survive a server list refresh
	require.Equal(t, int64(1), topology.GetTopologyId("books"))
	require.Equal(t, "node-a:9100", topology.GetHashAwareServer(ctx, []byte("k"), "books"))

	topology.UpdateServers(ctx, "books", []string{"node-z:9100"})
	require.Equal(t, []string{"node-z:9100"}, topology.GetServers("books"))
	require.Equal(t, refreshed, topology.GetServers("music"))
}

func TestTopologyInfo_CacheTopologyInfo(t *testing.T) {
	ctx := context.Background()
	topology := newTestTopology()

	topology.ApplyUpdate(ctx, segmentUpdate("books", 2, [][]string{
		{"node-a:9100"},
		{"node-b:9100"},
		{"node-a:9100"},
	}))

	info := topology.GetCacheTopologyInfo("books")
	require.Equal(t, 3, info.NumSegments)
	require.Equal(t, int64(2), info.TopologyId)
	require.Equal(t, []int{0, 2}, info.SegmentsByServer["node-a:9100"].Slice())
	require.Equal(t, []int{1}, info.SegmentsByServer["node-b:9100"].Slice())
}

func TestTopologyInfo_CacheTopologyInfoEstimate(t *testing.T) {
	ctx := context.Background()
	topology := newTestTopology()

	// segment count recorded but hash version unsupported: the snapshot
	// assumes every server may own every segment
	update := segmentUpdate("books", 1, [][]string{{"node-a:9100"}, {"node-b:9100"}})
	update.HashVersion = 42
	update.Servers = []string{"node-a:9100", "node-b:9100"}
	topology.ApplyUpdate(ctx, update)

	info := topology.GetCacheTopologyInfo("books")
	require.Equal(t, 2, info.NumSegments)
	for _, segments := range info.SegmentsByServer {
		require.Equal(t, []int{0, 1}, segments.Slice())
	}
}

func TestConcurrentCaches(t *testing.T) {
	caches := newConcurrentCaches(4)
	for i := 0; i < 64; i++ {
		name := fmt.Sprintf("cache-%d", i)
		caches.Put(name, &cacheRecord{topologyId: int64(i)})
	}
	for i := 0; i < 64; i++ {
		record := caches.Get(fmt.Sprintf("cache-%d", i))
		require.NotNil(t, record)
		require.Equal(t, int64(i), record.topologyId)
	}

	n := 0
	caches.Range(func(name string, record *cacheRecord) bool {
		n++
		return true
	})
	require.Equal(t, 64, n)
}
