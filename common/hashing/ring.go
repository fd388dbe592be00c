package hashing

import (
	"sort"

	"github.com/gridkv/gridkv/common/sets"
	"github.com/gridkv/gridkv/util"
)

// RingHash is the legacy consistent-hash shape: every server sits on a
// hash ring at the position pushed by the cluster, and a key is owned by
// the first server at or after the key's normalized hash. The ring has
// no native segment table, so each server is treated as one segment, in
// server-name order.
type RingHash struct {
	version   int
	hashFn    func([]byte) uint32
	hashSpace uint32
	numOwners int

	// ring positions ascending by hash code
	positions []ringPosition
	// servers ascending by name; index doubles as the segment id
	servers []string
}

type ringPosition struct {
	hash   uint32
	server string
}

func newRingHash(version int) *RingHash {
	fn := hashV1
	if version != 1 {
		fn = hashV2
	}
	return &RingHash{version: version, hashFn: fn}
}

// Init installs the pushed server→hash-code placement. numOwners bounds
// the owner list length per key, hashSpace the normalized hash range.
func (r *RingHash) Init(serverHashes map[string]uint32, numOwners int, hashSpace uint32) {
	if hashSpace == 0 {
		hashSpace = 1
	}
	if numOwners < 1 {
		numOwners = 1
	}
	r.hashSpace = hashSpace
	r.numOwners = numOwners
	r.positions = make([]ringPosition, 0, len(serverHashes))
	r.servers = make([]string, 0, len(serverHashes))
	for server, hash := range serverHashes {
		r.positions = append(r.positions, ringPosition{hash: hash % hashSpace, server: server})
		r.servers = append(r.servers, server)
	}
	sort.Slice(r.positions, func(i, j int) bool { return r.positions[i].hash < r.positions[j].hash })
	sort.Strings(r.servers)
}

func (r *RingHash) ringIndex(key []byte) int {
	h := r.hashFn(key) % r.hashSpace
	idx := sort.Search(len(r.positions), func(i int) bool { return r.positions[i].hash >= h })
	if idx == len(r.positions) {
		idx = 0
	}
	return idx
}

func (r *RingHash) GetServer(key []byte) string {
	if len(r.positions) == 0 {
		return ""
	}
	return r.positions[r.ringIndex(key)].server
}

func (r *RingHash) GetSegment(key []byte) int {
	if len(r.positions) == 0 {
		return 0
	}
	return sort.SearchStrings(r.servers, r.GetServer(key))
}

func (r *RingHash) GetOwners(segment int) []string {
	if segment < 0 || segment >= len(r.servers) {
		return nil
	}
	primary := r.servers[segment]
	owners := []string{primary}
	// walk the ring from the primary's position for the backups
	start := 0
	for i, pos := range r.positions {
		if pos.server == primary {
			start = i
			break
		}
	}
	for i := 1; i <= len(r.positions); i++ {
		pos := r.positions[(start+i)%len(r.positions)]
		if len(owners) == r.numOwners {
			break
		}
		if pos.server != primary && !containsServer(owners, pos.server) {
			owners = append(owners, pos.server)
		}
	}
	return owners
}

func (r *RingHash) GetSegmentsByServer() map[string]*sets.SegmentSet {
	byServer := make(map[string]*sets.SegmentSet, len(r.servers))
	for i, server := range r.servers {
		byServer[server] = sets.From(len(r.servers), i)
	}
	return byServer
}

func (r *RingHash) NumSegments() int { return len(r.servers) }

// HashString is the normalized position of a raw string key, exposed for
// diagnostics.
func (r *RingHash) HashString(key string) uint32 {
	return r.hashFn(util.StringsToBytes(key)) % r.hashSpace
}

func containsServer(servers []string, server string) bool {
	for _, s := range servers {
		if s == server {
			return true
		}
	}
	return false
}
