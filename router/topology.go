package router

import (
	"context"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/gridkv/gridkv/common/hashing"
	"github.com/gridkv/gridkv/common/sets"
	"github.com/gridkv/gridkv/metrics"
	"github.com/gridkv/gridkv/proto"
)

const defaultSplitMapNum = 16

// TopologyInfo tracks, per cache name, the server list, the installed
// consistent-hash snapshot and the topology id. The hash snapshot and the
// topology id of one cache always move together: a push replaces the whole
// per-cache record, so readers never see a hash from one topology version
// paired with the id of another.
type TopologyInfo struct {
	caches      *concurrentCaches
	hashFactory *hashing.Factory
}

// CacheTopologyInfo is a read-only routing snapshot of one cache.
type CacheTopologyInfo struct {
	SegmentsByServer map[string]*sets.SegmentSet
	NumSegments      int
	TopologyId       int64
}

type cacheRecord struct {
	servers     []string
	hash        hashing.ConsistentHash
	numSegments int
	topologyId  int64
}

func NewTopologyInfo(initialTopologyId int64, initialServers []string) *TopologyInfo {
	t := &TopologyInfo{
		caches:      newConcurrentCaches(defaultSplitMapNum),
		hashFactory: hashing.NewFactory(),
	}
	t.caches.Put(proto.DefaultCacheName, &cacheRecord{
		servers:    append([]string(nil), initialServers...),
		topologyId: initialTopologyId,
	})
	return t
}

// GetServers returns the cache's recorded server list, falling back to
// the bootstrap list while the cache has no topology of its own.
func (t *TopologyInfo) GetServers(cacheName string) []string {
	record := t.caches.Get(cacheName)
	if record == nil || len(record.servers) == 0 {
		record = t.caches.Get(proto.DefaultCacheName)
	}
	if record == nil {
		return nil
	}
	return append([]string(nil), record.servers...)
}

// AllServers flattens every recorded server list, duplicates removed.
func (t *TopologyInfo) AllServers() []string {
	seen := make(map[string]struct{})
	var servers []string
	t.caches.Range(func(name string, record *cacheRecord) bool {
		for _, server := range record.servers {
			if _, ok := seen[server]; !ok {
				seen[server] = struct{}{}
				servers = append(servers, server)
			}
		}
		return true
	})
	return servers
}

// UpdateRingTopology installs a ring-shape topology push for one cache.
// An unsupported hash version installs no hash function: routing for the
// cache degrades to round robin until a supported push arrives.
func (t *TopologyInfo) UpdateRingTopology(ctx context.Context, serverHashes map[string]uint32,
	numOwners int, hashVersion int, hashSpace uint32, cacheName string, topologyId int64,
) {
	span := trace.SpanFromContextSafe(ctx)

	var hash hashing.ConsistentHash
	if ring := t.hashFactory.NewRing(hashVersion); ring != nil {
		ring.Init(serverHashes, numOwners, hashSpace)
		hash = ring
	} else {
		span.Warnf("no consistent hash configured for version %d, cache[%s] routing falls back to round robin", hashVersion, cacheName)
	}

	t.caches.Update(cacheName, func(old *cacheRecord) *cacheRecord {
		record := &cacheRecord{
			hash:       hash,
			topologyId: topologyId,
		}
		if hash != nil {
			record.numSegments = hash.NumSegments()
		}
		if old != nil {
			record.servers = old.servers
		}
		return record
	})
	metrics.TopologyUpdates.WithLabelValues(cacheName).Inc()
}

// UpdateSegmentTopology installs a segment-table topology push for one
// cache. The segment count is recorded even when the hash version is
// unsupported, keeping diagnostic snapshots usable.
func (t *TopologyInfo) UpdateSegmentTopology(ctx context.Context, segmentOwners [][]string,
	numSegments int, hashVersion int, cacheName string, topologyId int64,
) {
	span := trace.SpanFromContextSafe(ctx)

	var hash hashing.ConsistentHash
	if hashVersion > 0 {
		if segmentHash := t.hashFactory.NewSegment(hashVersion); segmentHash != nil {
			segmentHash.Init(segmentOwners, numSegments)
			hash = segmentHash
		} else {
			span.Warnf("no consistent hash configured for version %d, cache[%s] routing falls back to round robin", hashVersion, cacheName)
		}
	}

	t.caches.Update(cacheName, func(old *cacheRecord) *cacheRecord {
		record := &cacheRecord{
			hash:        hash,
			numSegments: numSegments,
			topologyId:  topologyId,
		}
		if old != nil {
			record.servers = old.servers
		}
		return record
	})
	metrics.TopologyUpdates.WithLabelValues(cacheName).Inc()
}

// ApplyUpdate dispatches a wire-level topology push to the shape-specific
// update, then installs the pushed server list.
func (t *TopologyInfo) ApplyUpdate(ctx context.Context, update *proto.TopologyUpdate) {
	if update.SegmentOwners != nil || update.NumSegments > 0 {
		t.UpdateSegmentTopology(ctx, update.SegmentOwners, update.NumSegments,
			update.HashVersion, update.CacheName, update.TopologyId)
	} else {
		t.UpdateRingTopology(ctx, update.ServerHashes, update.NumOwners,
			update.HashVersion, update.HashSpace, update.CacheName, update.TopologyId)
	}
	if len(update.Servers) > 0 {
		t.UpdateServers(ctx, update.CacheName, update.Servers)
	}
}

// GetHashAwareServer returns the key's primary owner, or "" when the
// cache has no installed hash function or its topology is mid switch.
func (t *TopologyInfo) GetHashAwareServer(ctx context.Context, key []byte, cacheName string) string {
	record := t.caches.Get(cacheName)
	if record == nil || record.hash == nil {
		return ""
	}
	if record.topologyId == proto.SwitchClusterTopology {
		return ""
	}
	server := record.hash.GetServer(key)
	if server != "" {
		trace.SpanFromContextSafe(ctx).Debugf("consistent hash picked server %s for cache[%s]", server, cacheName)
	}
	return server
}

func (t *TopologyInfo) IsTopologyValid(cacheName string) bool {
	return t.GetTopologyId(cacheName) != proto.SwitchClusterTopology
}

// UpdateServers replaces the server list of one cache, or of every known
// cache when cacheName is empty, after a full cluster-view refresh.
func (t *TopologyInfo) UpdateServers(ctx context.Context, cacheName string, servers []string) {
	span := trace.SpanFromContextSafe(ctx)
	servers = append([]string(nil), servers...)

	replace := func(old *cacheRecord) *cacheRecord {
		record := &cacheRecord{servers: servers}
		if old != nil {
			record.hash = old.hash
			record.numSegments = old.numSegments
			record.topologyId = old.topologyId
		}
		return record
	}

	if cacheName != proto.DefaultCacheName {
		t.caches.Update(cacheName, replace)
		return
	}
	span.Infof("replacing server list of all caches with %v", servers)
	t.caches.UpdateAll(replace)
}

// CreateTopologyId records the initial topology id of a cache.
func (t *TopologyInfo) CreateTopologyId(cacheName string, topologyId int64) {
	t.setTopologyId(cacheName, topologyId)
}

func (t *TopologyInfo) SetTopologyId(cacheName string, topologyId int64) {
	t.setTopologyId(cacheName, topologyId)
}

func (t *TopologyInfo) setTopologyId(cacheName string, topologyId int64) {
	t.caches.Update(cacheName, func(old *cacheRecord) *cacheRecord {
		record := &cacheRecord{topologyId: topologyId}
		if old != nil {
			record.servers = old.servers
			record.hash = old.hash
			record.numSegments = old.numSegments
		}
		return record
	})
}

// SetAllTopologyIds moves every cache to the given topology id in one
// sweep. Setting the switch sentinel forces fresh topology pushes before
// hash-aware routing resumes, used on reconnect and cluster switch.
func (t *TopologyInfo) SetAllTopologyIds(topologyId int64) {
	t.caches.UpdateAll(func(old *cacheRecord) *cacheRecord {
		record := &cacheRecord{topologyId: topologyId}
		if old != nil {
			record.servers = old.servers
			record.hash = old.hash
			record.numSegments = old.numSegments
		}
		return record
	})
}

func (t *TopologyInfo) GetTopologyId(cacheName string) int64 {
	record := t.caches.Get(cacheName)
	if record == nil {
		record = t.caches.Get(proto.DefaultCacheName)
	}
	if record == nil {
		return proto.SwitchClusterTopology
	}
	return record.topologyId
}

// GetCacheTopologyInfo snapshots the cache's routing state. Without an
// installed hash function the per-server segment sets are a best-effort
// estimate assuming every server may own every segment.
func (t *TopologyInfo) GetCacheTopologyInfo(cacheName string) CacheTopologyInfo {
	record := t.caches.Get(cacheName)
	if record == nil {
		return CacheTopologyInfo{TopologyId: t.GetTopologyId(cacheName)}
	}

	info := CacheTopologyInfo{
		NumSegments: record.numSegments,
		TopologyId:  record.topologyId,
	}
	if record.hash != nil {
		info.SegmentsByServer = record.hash.GetSegmentsByServer()
		return info
	}

	info.SegmentsByServer = make(map[string]*sets.SegmentSet, len(record.servers))
	for _, server := range t.GetServers(cacheName) {
		info.SegmentsByServer[server] = sets.Full(record.numSegments)
	}
	return info
}

// concurrentCaches is an effective data struct (concurrent map implements)
type concurrentCaches struct {
	num     uint32
	nameMap map[uint32]map[string]*cacheRecord
	locks   map[uint32]*sync.RWMutex
}

func newConcurrentCaches(splitMapNum uint32) *concurrentCaches {
	caches := &concurrentCaches{
		num:     splitMapNum,
		nameMap: make(map[uint32]map[string]*cacheRecord),
		locks:   make(map[uint32]*sync.RWMutex),
	}
	for i := uint32(0); i < splitMapNum; i++ {
		caches.locks[i] = &sync.RWMutex{}
		caches.nameMap[i] = make(map[string]*cacheRecord)
	}
	return caches
}

func (c *concurrentCaches) Get(name string) *cacheRecord {
	idx := c.nameCharSum(name) % c.num
	c.locks[idx].RLock()
	defer c.locks[idx].RUnlock()
	return c.nameMap[idx][name]
}

func (c *concurrentCaches) Put(name string, record *cacheRecord) {
	idx := c.nameCharSum(name) % c.num
	c.locks[idx].Lock()
	c.nameMap[idx][name] = record
	c.locks[idx].Unlock()
}

// Update swaps the record of one cache through fn, whole-record so that
// concurrent readers observe either the old or the new state.
func (c *concurrentCaches) Update(name string, fn func(old *cacheRecord) *cacheRecord) {
	idx := c.nameCharSum(name) % c.num
	c.locks[idx].Lock()
	c.nameMap[idx][name] = fn(c.nameMap[idx][name])
	c.locks[idx].Unlock()
}

// UpdateAll applies fn to every known record bucket by bucket.
func (c *concurrentCaches) UpdateAll(fn func(old *cacheRecord) *cacheRecord) {
	for i := uint32(0); i < c.num; i++ {
		l := c.locks[i]
		l.Lock()
		for name, record := range c.nameMap[i] {
			c.nameMap[i][name] = fn(record)
		}
		l.Unlock()
	}
}

// Range walks all records. It holds each bucket's read lock across the
// callback, so keep the callback short.
func (c *concurrentCaches) Range(f func(name string, record *cacheRecord) bool) {
	for i := uint32(0); i < c.num; i++ {
		l := c.locks[i]
		l.RLock()
		for name, record := range c.nameMap[i] {
			if !f(name, record) {
				l.RUnlock()
				return
			}
		}
		l.RUnlock()
	}
}

func (c *concurrentCaches) nameCharSum(name string) (ret uint32) {
	for i := range name {
		ret += uint32(name[i])
	}
	return
}
