package router

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"

	sc "github.com/gridkv/gridkv/client"
	apierrors "github.com/gridkv/gridkv/errors"
	"github.com/gridkv/gridkv/proto"
)

type Config struct {
	// InitialServers is the bootstrap server set used until the first
	// topology push.
	InitialServers []string           `json:"initial_servers"`
	Transport      sc.TransportConfig `json:"transport"`
}

// ViewFetcher pulls the current cluster-wide server list, typically from
// whichever grid server the client still has a healthy connection to.
type ViewFetcher interface {
	FetchView(ctx context.Context) ([]string, error)
}

// GridClient is the routing front door: it owns the topology registry and
// a connection pool, picks a server per key, and keeps the cluster view
// fresh.
type GridClient struct {
	rrCounter uint64

	topology  *TopologyInfo
	pool      *sc.Pool
	bootstrap string
	fetcher   ViewFetcher
	singleRun singleflight.Group
}

func NewGridClient(cfg *Config, fetcher ViewFetcher) *GridClient {
	return &GridClient{
		topology:  NewTopologyInfo(0, cfg.InitialServers),
		pool:      sc.NewPool(&cfg.Transport),
		bootstrap: sc.BootstrapTarget(strings.Join(cfg.InitialServers, ",")),
		fetcher:   fetcher,
	}
}

func (g *GridClient) Topology() *TopologyInfo {
	return g.topology
}

// PickServer routes a key: the consistent-hash owner when the cache has a
// valid topology, otherwise round robin over the cache's server list.
func (g *GridClient) PickServer(ctx context.Context, key []byte, cacheName string) (string, error) {
	if server := g.topology.GetHashAwareServer(ctx, key, cacheName); server != "" {
		return server, nil
	}

	servers := g.topology.GetServers(cacheName)
	if len(servers) == 0 {
		return "", apierrors.ErrNoServersAvailable
	}
	next := atomic.AddUint64(&g.rrCounter, 1)
	return servers[next%uint64(len(servers))], nil
}

// ConnFor resolves the pooled connection of a picked server.
func (g *GridClient) ConnFor(ctx context.Context, server string) (*grpc.ClientConn, error) {
	return g.pool.GetConn(ctx, server)
}

// BootstrapConn resolves a connection balanced round robin over the
// bootstrap servers, for calls made before any topology is known.
func (g *GridClient) BootstrapConn(ctx context.Context) (*grpc.ClientConn, error) {
	return g.pool.GetConn(ctx, g.bootstrap)
}

// ApplyTopologyPush absorbs one server-sent topology update.
func (g *GridClient) ApplyTopologyPush(ctx context.Context, update *proto.TopologyUpdate) {
	g.topology.ApplyUpdate(ctx, update)
}

// OnClusterSwitch invalidates every cache's topology id, forcing fresh
// pushes before hash-aware routing resumes. Called on reconnect.
func (g *GridClient) OnClusterSwitch() {
	g.topology.SetAllTopologyIds(proto.SwitchClusterTopology)
}

// RefreshView re-pulls the cluster view and replaces the server list of
// every cache. Concurrent callers share one in-flight fetch.
func (g *GridClient) RefreshView(ctx context.Context) error {
	span := trace.SpanFromContextSafe(ctx)
	_, err, _ := g.singleRun.Do("cluster-view", func() (interface{}, error) {
		servers, err := g.fetcher.FetchView(ctx)
		if err != nil {
			span.Errorf("fetch cluster view failed: %s", err)
			return nil, err
		}
		if len(servers) == 0 {
			return nil, apierrors.ErrNoServersAvailable
		}
		g.topology.UpdateServers(ctx, proto.DefaultCacheName, servers)
		return nil, nil
	})
	return err
}

func (g *GridClient) Close() {
	g.pool.Close()
}
